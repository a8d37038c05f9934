package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/iltransform/internal/cache"
	"github.com/panbanda/iltransform/internal/output"
	"github.com/panbanda/iltransform/pkg/config"
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Rewrite cache management commands",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show how many rewritten files the cache remembers",
				Action: runCacheStats,
			},
			{
				Name:  "clear",
				Usage: "Forget every recorded rewrite",
				Description: `Removes the cache directory so that the next rewrite run processes
every file again.

Examples:
  iltransform cache clear
  iltransform -c iltransform.toml cache clear`,
				Action: runCacheClear,
			},
		},
	}
}

// openCache opens the configured cache directory. It returns nil when the
// cache is disabled.
func openCache(cfg *config.Config) (*cache.Cache, error) {
	c, err := cache.New(cfg.Cache.Dir, "", cfg.Cache.Enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", cfg.Cache.Dir, err)
	}
	if !c.Enabled() {
		return nil, nil
	}
	return c, nil
}

func runCacheStats(c *cli.Context) error {
	res, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := res.Config

	cc, err := openCache(cfg)
	if err != nil {
		return err
	}
	if cc == nil {
		color.Yellow("Cache is disabled")
		return nil
	}
	stats, err := cc.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(output.NewTable(
		"Cache "+cfg.Cache.Dir,
		[]string{"Entries", "Size", "Oldest", "Newest"},
		[][]string{{
			strconv.Itoa(stats.Entries),
			strconv.FormatInt(stats.TotalSize, 10),
			stats.OldestAge.Round(time.Second).String(),
			stats.NewestAge.Round(time.Second).String(),
		}},
		nil,
		stats,
	))
}

func runCacheClear(c *cli.Context) error {
	res, err := loadConfig(c)
	if err != nil {
		return err
	}
	cc, err := openCache(res.Config)
	if err != nil {
		return err
	}
	if cc == nil {
		color.Yellow("Cache is disabled")
		return nil
	}
	if err := cc.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	color.Green("Cleared %s", res.Config.Cache.Dir)
	return nil
}

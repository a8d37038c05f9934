package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/panbanda/iltransform/internal/output"
	"github.com/panbanda/iltransform/internal/progress"
	"github.com/panbanda/iltransform/internal/scanner"
	"github.com/panbanda/iltransform/internal/store"
	"github.com/panbanda/iltransform/pkg/config"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

const loggerKey = "logger"

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		color.Red("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "iltransform",
		Usage:    "Convert standalone runtime tests into merged xunit test groups",
		Version:  version,
		Metadata: make(map[string]interface{}),
		Description: `iltransform rewrites C# and IL test sources and their project descriptors
so that many tests can be compiled into one assembly: entry points become
[Fact] methods, colliding class names get distinct namespaces, and project
names are made unique.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"ILTRANSFORM_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon, yaml (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable caching",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Modify files even when the working tree has uncommitted changes",
			},
		},
		Before: func(c *cli.Context) error {
			logger, err := newLogger(c.Bool("verbose"))
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			c.App.Metadata[loggerKey] = logger
			return nil
		},
		After: func(c *cli.Context) error {
			if logger, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			rewriteCmd(),
			scanCmd(),
			dedupProjectsCmd(),
			wrappersCmd(),
			subsetsCmd(),
			replaceCmd(),
			sanitizeCmd(),
			initCmd(),
			configCmd(),
			cacheCmd(),
		},
	}
}

// newLogger builds the diagnostics logger. Diagnostics go to stderr so that
// reports on stdout stay machine readable.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func getLogger(c *cli.Context) *zap.Logger {
	if logger, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// loadConfig loads the config named by --config, or searches the standard
// locations. The color setting is applied globally.
func loadConfig(c *cli.Context) (*config.LoadResult, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	res, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := res.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", res.Source, err)
	}
	if !res.Config.Output.Color {
		color.NoColor = true
	}
	return res, nil
}

// newFormatter creates the report formatter. --format wins over the
// configured format.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := cfg.Output.Format
	if f := c.String("format"); f != "" {
		format = f
	}
	return output.NewFormatter(output.ParseFormat(format), c.String("output"), cfg.Output.Color)
}

// loadProjects scans every root for project descriptors and loads them.
// Descriptors that fail to load are logged and skipped.
func loadProjects(c *cli.Context, cfg *config.Config, roots []string) (*store.Store, error) {
	logger := getLogger(c)
	scan := scanner.NewScanner(cfg, scanner.WithInclude(c.StringSlice("include")...))
	visible := progress.WithVisible(showProgress(c, cfg))
	s := store.New(store.WithLogger(logger), store.WithWorkers(cfg.Rewrite.Workers))

	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", root, err)
		}

		spinner := progress.NewSpinner(fmt.Sprintf("Scanning %s...", root), visible)
		files, err := scan.ScanDir(absRoot)
		if err != nil {
			spinner.FinishError(err)
			return nil, fmt.Errorf("failed to scan directory %s: %w", root, err)
		}
		spinner.FinishSuccess()
		if len(files) == 0 {
			continue
		}

		tracker := progress.NewTracker("Loading projects...", len(files), visible)
		errs := s.Load(c.Context, absRoot, files, tracker.Tick)
		tracker.FinishSuccess()
		if errs != nil {
			color.Yellow("%d of %d projects under %s could not be loaded", errs.Len(), len(files), root)
		}
	}
	return s, nil
}

// includeFlag limits project discovery to matching relative paths.
func includeFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "include",
		Usage: "Only load projects whose path relative to the root matches this glob (repeatable)",
	}
}

// showProgress hides progress bars when the report is meant for a machine.
func showProgress(c *cli.Context, cfg *config.Config) bool {
	format := cfg.Output.Format
	if f := c.String("format"); f != "" {
		format = f
	}
	return output.ParseFormat(format) == output.FormatText
}

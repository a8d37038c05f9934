package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/panbanda/iltransform/internal/cache"
	"github.com/panbanda/iltransform/internal/output"
	"github.com/panbanda/iltransform/internal/progress"
	"github.com/panbanda/iltransform/internal/store"
	"github.com/panbanda/iltransform/pkg/disambig"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func rewriteCmd() *cli.Command {
	return &cli.Command{
		Name:      "rewrite",
		Aliases:   []string{"rw"},
		Usage:     "Rewrite test sources and descriptors into xunit form",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			includeFlag(),
			&cli.BoolFlag{
				Name:  "deduplicate-class-names",
				Usage: "Rename colliding main classes instead of wrapping them in namespaces",
			},
			&cli.StringFlag{
				Name:  "class",
				Usage: "Only process projects whose main class has this name",
			},
			&cli.BoolFlag{
				Name:  "rename-il-sources",
				Usage: "Rename IL sources after their project before rewriting",
			},
			&cli.BoolFlag{
				Name:  "no-namespaces",
				Usage: "Skip namespace deduplication",
			},
		},
		Action: runRewriteCmd,
	}
}

func runRewriteCmd(c *cli.Context) error {
	paths := getPaths(c)
	logger := getLogger(c)

	res, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := res.Config
	rc := cfg.Rewrite
	if c.IsSet("deduplicate-class-names") {
		rc.DeduplicateClassNames = c.Bool("deduplicate-class-names")
	}
	if c.IsSet("class") {
		rc.ClassToDeduplicate = c.String("class")
	}

	if !c.Bool("force") {
		if err := checkClean(paths); err != nil {
			return err
		}
	}

	s, err := loadProjects(c, cfg, paths)
	if err != nil {
		return err
	}
	if s.Len() == 0 {
		color.Yellow("No project files found")
		return nil
	}

	if c.Bool("rename-il-sources") {
		if err := store.ApplyMoves(s.PlanILSourceRenames(false)); err != nil {
			return fmt.Errorf("failed to rename IL sources: %w", err)
		}
	}

	if !c.Bool("no-namespaces") {
		plan, err := s.DeduplicateNamespaces()
		switch {
		case errors.Is(err, disambig.ErrNoUniqueTier):
			color.Yellow("No unique namespace names found; colliding classes are left as is")
		case err != nil:
			return err
		default:
			logger.Debug("deduplicated namespaces",
				zap.Stringer("tier", plan.Tier), zap.Int("families", len(plan.Assignments)))
		}
	}
	if rc.DeduplicateClassNames {
		n := s.DeduplicateClassNames(rc.ClassToDeduplicate)
		logger.Debug("deduplicated class names", zap.Int("projects", n))
	}

	opts := store.RewriteOptions{
		Settings:           store.Settings(rc),
		ClassToDeduplicate: rc.ClassToDeduplicate,
	}
	// Validated by loadConfig.
	opts.SourcePolicy, _ = cfg.Newline.SourcePolicy()
	opts.ProjectPolicy, _ = cfg.Newline.ProjectPolicy()

	if cfg.Cache.Enabled && !c.Bool("no-cache") {
		fp, err := opts.Fingerprint()
		if err != nil {
			return err
		}
		opts.Cache, err = cache.New(cfg.Cache.Dir, fp, true)
		if err != nil {
			return fmt.Errorf("failed to open cache %s: %w", cfg.Cache.Dir, err)
		}
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	tracker := progress.NewTracker("Rewriting...", s.Len(), progress.WithVisible(showProgress(c, cfg)))
	opts.OnProgress = tracker.Tick
	summary, errs := s.RewriteAll(c.Context, opts)
	tracker.FinishSuccess()

	if err := formatter.Output(rewriteTable(summary, formatter.Colored())); err != nil {
		return err
	}
	if summary.Ambiguous > 0 && formatter.Format() == output.FormatText {
		formatter.Warning("%d ambiguous identifier occurrences were left unchanged", summary.Ambiguous)
	}
	if errs != nil {
		return fmt.Errorf("%d files could not be rewritten: %w", errs.Len(), errs)
	}
	return nil
}

func rewriteTable(summary store.RewriteSummary, colored bool) *output.Table {
	rows := make([][]string, 0, len(summary.Files))
	for _, f := range summary.Files {
		if f.Status == store.StatusUnchanged {
			continue
		}
		status := f.Status
		if colored {
			status = output.StatusColor(f.Status, f.Status)
		}
		fact := ""
		if f.AddedFact {
			fact = "yes"
		}
		rows = append(rows, []string{filepath.Base(f.Project), f.File, status, fact})
	}

	footer := []string{
		fmt.Sprintf("%d projects", summary.Projects),
		fmt.Sprintf("%d rewritten, %d unchanged", summary.Rewritten, summary.Unchanged),
		fmt.Sprintf("%d cached, %d skipped", summary.Cached, summary.Skipped),
		fmt.Sprintf("%d facts", summary.AddedFacts),
	}
	return output.NewTable(
		"Rewrite",
		[]string{"Project", "File", "Status", "Fact"},
		rows,
		footer,
		summary,
	)
}

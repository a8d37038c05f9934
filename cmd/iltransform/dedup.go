package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/panbanda/iltransform/internal/output"
	"github.com/panbanda/iltransform/internal/store"
	"github.com/urfave/cli/v2"
)

func dedupProjectsCmd() *cli.Command {
	return &cli.Command{
		Name:      "dedup-projects",
		Aliases:   []string{"dp"},
		Usage:     "Plan or apply renames that make project names unique",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			includeFlag(),
			&cli.BoolFlag{
				Name:  "apply",
				Usage: "Move the files instead of only reporting the plan",
			},
			&cli.BoolFlag{
				Name:  "dbgrel",
				Usage: "Unify debug/release name spellings instead of resolving collisions",
			},
			&cli.BoolFlag{
				Name:  "il-sources",
				Usage: "Also rename IL sources after their renamed projects",
			},
		},
		Action: runDedupProjectsCmd,
	}
}

func runDedupProjectsCmd(c *cli.Context) error {
	paths := getPaths(c)
	apply := c.Bool("apply")

	res, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := res.Config

	if apply && !c.Bool("force") {
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

	var moves []store.Move
	if c.Bool("dbgrel") {
		moves = s.PlanDbgRelRenames()
	} else {
		moves = s.PlanProjectRenames()
	}
	if c.Bool("il-sources") {
		moves = append(moves, s.PlanILSourceRenames(true)...)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	status := "planned"
	if apply {
		status = "renamed"
		if err := store.ApplyMoves(moves); err != nil {
			return fmt.Errorf("failed to apply renames: %w", err)
		}
	}

	rows := make([][]string, 0, len(moves))
	for _, m := range moves {
		st := status
		if formatter.Colored() {
			st = output.StatusColor(status, status)
		}
		rows = append(rows, []string{m.From, filepath.Base(m.To), st})
	}
	table := output.NewTable(
		"Project Renames",
		[]string{"From", "To", "Status"},
		rows,
		[]string{fmt.Sprintf("%d renames", len(moves)), "", ""},
		moves,
	)
	if err := formatter.Output(table); err != nil {
		return err
	}
	if formatter.Format() != output.FormatText || len(moves) == 0 {
		return nil
	}
	if apply {
		formatter.Success("Renamed %d files", len(moves))
	} else {
		formatter.Warning("Dry run; use --apply to move the files")
	}
	return nil
}

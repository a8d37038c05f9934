package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/panbanda/iltransform/internal/output"
	"github.com/panbanda/iltransform/internal/wrapper"
	"github.com/urfave/cli/v2"
)

func wrappersCmd() *cli.Command {
	return &cli.Command{
		Name:      "wrappers",
		Usage:     "Generate aggregate test projects, one set per build flavor",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			includeFlag(),
			&cli.StringFlag{
				Name:     "out",
				Usage:    "Directory that receives the generated projects",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "max-projects",
				Usage: "Tests per wrapper (default from config)",
			},
		},
		Action: runWrappersCmd,
	}
}

func runWrappersCmd(c *cli.Context) error {
	paths := getPaths(c)

	res, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := res.Config
	maxProjects := cfg.Wrappers.MaxProjectsPerWrapper
	if c.IsSet("max-projects") {
		maxProjects = c.Int("max-projects")
	}

	s, err := loadProjects(c, cfg, paths)
	if err != nil {
		return err
	}
	if s.Len() == 0 {
		color.Yellow("No project files found")
		return nil
	}

	gen := wrapper.New(c.String("out"),
		wrapper.WithMaxProjects(maxProjects),
		wrapper.WithLogger(getLogger(c)))
	wrappers, err := gen.Generate(s.Projects())
	if err != nil {
		return fmt.Errorf("failed to generate wrappers: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	rows := make([][]string, 0, len(wrappers))
	tests := 0
	for _, w := range wrappers {
		rows = append(rows, []string{w.Flavor.Name(), w.Project, strconv.Itoa(w.Count)})
		tests += w.Count
	}
	return formatter.Output(output.NewTable(
		"Wrappers",
		[]string{"Flavor", "Project", "Tests"},
		rows,
		[]string{fmt.Sprintf("%d wrappers", len(wrappers)), "", strconv.Itoa(tests)},
		wrappers,
	))
}

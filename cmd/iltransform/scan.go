package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/iltransform/internal/output"
	"github.com/panbanda/iltransform/internal/store"
	"github.com/panbanda/iltransform/pkg/disambig"
	"github.com/panbanda/iltransform/pkg/models"
	"github.com/urfave/cli/v2"
)

func scanCmd() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Report projects, class name collisions and planned namespaces",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			includeFlag(),
			&cli.BoolFlag{
				Name:  "projects",
				Usage: "List every loaded project",
			},
			&cli.BoolFlag{
				Name:  "duplicates",
				Usage: "Also report projects with equal names or equal content",
			},
		},
		Action: runScanCmd,
	}
}

// scanResult is the serialized form of the scan report.
type scanResult struct {
	Projects   []*models.Project      `json:"projects,omitempty" toon:"projects"`
	Collisions []store.CollisionGroup `json:"collisions" toon:"collisions"`
	Namespaces store.NamespacePlan    `json:"namespaces" toon:"namespaces"`
	Unresolved bool                   `json:"unresolved,omitempty" toon:"unresolved"`
	Flavors    []store.FlavorCount    `json:"flavors" toon:"flavors"`
	SameName   map[string][]string    `json:"same_name,omitempty" toon:"same_name"`
	SameSource [][2]string            `json:"same_content,omitempty" toon:"same_content"`
}

func runScanCmd(c *cli.Context) error {
	paths := getPaths(c)

	res, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := res.Config

	s, err := loadProjects(c, cfg, paths)
	if err != nil {
		return err
	}
	if s.Len() == 0 {
		color.Yellow("No project files found")
		return nil
	}

	result := scanResult{
		Collisions: s.ClassCollisionGroups(),
		Flavors:    s.FlavorCounts(),
	}
	result.Namespaces, err = s.DeduplicateNamespaces()
	if errors.Is(err, disambig.ErrNoUniqueTier) {
		result.Unresolved = true
	} else if err != nil {
		return err
	}
	if c.Bool("projects") {
		result.Projects = s.Projects()
		slices.SortFunc(result.Projects, models.ProjectsByPath)
	}
	if c.Bool("duplicates") {
		result.SameName = map[string][]string{}
		for name, list := range s.DuplicateNames() {
			for _, p := range list {
				result.SameName[name] = append(result.SameName[name], p.AbsolutePath)
			}
		}
		for _, pair := range s.DuplicateContent() {
			result.SameSource = append(result.SameSource, [2]string{pair[0].AbsolutePath, pair[1].AbsolutePath})
		}
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	report := &output.Report{Title: "Scan", Data: result}
	if len(result.Projects) > 0 {
		report.Tables = append(report.Tables, projectsTable(result.Projects))
	}
	report.Tables = append(report.Tables,
		collisionsTable(result.Collisions),
		namespacesTable(result, formatter.Colored()),
		flavorsTable(result.Flavors),
	)
	if c.Bool("duplicates") {
		report.Tables = append(report.Tables, duplicatesTable(result))
	}
	return formatter.Output(report)
}

func projectsTable(projects []*models.Project) *output.Table {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		isolation := ""
		if p.NeedsProcessIsolation() {
			isolation = strings.Join(p.RequiresProcessIsolationReasons, ",")
		}
		rows = append(rows, []string{
			p.RelativePath,
			p.Source.MainClassName,
			p.DebugOptimize.Name(),
			isolation,
		})
	}
	return output.NewTable(
		"Projects",
		[]string{"Project", "Main Class", "Flavor", "Process Isolation"},
		rows,
		[]string{fmt.Sprintf("%d projects", len(projects)), "", "", ""},
		nil,
	)
}

func collisionsTable(groups []store.CollisionGroup) *output.Table {
	var rows [][]string
	families := 0
	for _, g := range groups {
		for _, f := range g.Families {
			rows = append(rows, []string{g.ClassName, f.Key, strconv.Itoa(len(f.Projects))})
			families++
		}
	}
	return output.NewTable(
		"Class Name Collisions",
		[]string{"Class", "Family", "Projects"},
		rows,
		[]string{fmt.Sprintf("%d classes", len(groups)), fmt.Sprintf("%d families", families), ""},
		nil,
	)
}

func namespacesTable(result scanResult, colored bool) *output.Table {
	title := "Planned Namespaces"
	if result.Unresolved {
		title += " (unresolved)"
		if colored {
			title = output.StatusColor("unresolved", title)
		}
	} else if len(result.Namespaces.Assignments) > 0 {
		title += " (" + result.Namespaces.Tier.String() + ")"
	}
	rows := make([][]string, 0, len(result.Namespaces.Assignments))
	for _, a := range result.Namespaces.Assignments {
		rows = append(rows, []string{a.Family, a.Namespace})
	}
	return output.NewTable(title, []string{"Family", "Namespace"}, rows, nil, nil)
}

func flavorsTable(counts []store.FlavorCount) *output.Table {
	rows := make([][]string, 0, len(counts))
	for _, fc := range counts {
		rows = append(rows, []string{fc.Flavor.Name(), strconv.Itoa(fc.Count)})
	}
	return output.NewTable("Flavors", []string{"Flavor", "Projects"}, rows, nil, nil)
}

func duplicatesTable(result scanResult) *output.Table {
	var rows [][]string
	names := make([]string, 0, len(result.SameName))
	for name := range result.SameName {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		for _, path := range result.SameName[name] {
			rows = append(rows, []string{"name", name, path})
		}
	}
	for _, pair := range result.SameSource {
		rows = append(rows, []string{"content", filepath.Base(pair[0]), pair[0] + " = " + pair[1]})
	}
	return output.NewTable("Duplicates", []string{"Kind", "Name", "Path"}, rows, nil, nil)
}

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/panbanda/iltransform/pkg/disambig"
	"github.com/panbanda/iltransform/pkg/models"
	"github.com/panbanda/iltransform/pkg/rewrite"
	"go.uber.org/zap"
)

// Namespaces too generic to carry into a deduplicated name.
var boringNamespaces = []string{"Test", "JitTest", "Repro", "DefaultNamespace"}

// InterestingNamespace returns ns followed by "_", or "" when ns is too
// short or generic to help tell tests apart.
func InterestingNamespace(ns string) string {
	if len(ns) <= 1 || slices.Contains(boringNamespaces, ns) {
		return ""
	}
	return ns + "_"
}

// NamespacePlan is the outcome of DeduplicateNamespaces.
type NamespacePlan struct {
	Tier disambig.Tier `json:"tier" toon:"tier"`
	// Assignments holds one entry per family representative.
	Assignments []NamespaceAssignment `json:"assignments" toon:"assignments"`
}

// NamespaceAssignment is the namespace chosen for a family.
type NamespaceAssignment struct {
	Family    string `json:"family" toon:"family"`
	Project   string `json:"project" toon:"project"`
	Namespace string `json:"namespace" toon:"namespace"`
}

// DeduplicateNamespaces gives every family involved in a class-name
// collision its own namespace. The first project of each family is its
// representative; one disambiguation tier is chosen for all representatives
// at once and the result is copied to the rest of the family. Returns
// disambig.ErrNoUniqueTier when no tier separates them, in which case no
// project is changed.
func (s *Store) DeduplicateNamespaces() (NamespacePlan, error) {
	groups := s.ClassCollisionGroups()
	if len(groups) == 0 {
		return NamespacePlan{}, nil
	}

	type rep struct {
		key     string
		project *models.Project
	}
	var reps []rep
	seen := map[[2]string]bool{}
	var families []Family
	for _, g := range groups {
		for _, f := range g.Families {
			families = append(families, f)
			id := [2]string{f.Key, f.Projects[0].AbsolutePath}
			if seen[id] {
				continue
			}
			seen[id] = true
			reps = append(reps, rep{key: f.Key, project: f.Projects[0]})
		}
	}

	items := make([]disambig.Item, len(reps))
	for i, r := range reps {
		items[i] = disambig.Item{
			SourceFile:  r.project.Source.MainClassSourceFile,
			ProjectPath: r.key,
			Path:        r.project.AbsolutePath,
		}
	}
	res, err := disambig.Resolve(items)
	if err != nil {
		if errors.Is(err, disambig.ErrNoUniqueTier) {
			s.logger.Info("No simple namespace renames for projects", zap.Int("projects", len(reps)))
		}
		return NamespacePlan{}, err
	}

	plan := NamespacePlan{Tier: res.Tier}
	for i, r := range reps {
		p := r.project
		p.DeduplicatedNamespace = rewrite.SanitizeIdentifier(
			InterestingNamespace(p.Source.MainClassNamespace)+res.Names[i], language(p))
		plan.Assignments = append(plan.Assignments, NamespaceAssignment{
			Family:    r.key,
			Project:   p.AbsolutePath,
			Namespace: p.DeduplicatedNamespace,
		})
	}

	for _, f := range families {
		want := f.Projects[0].DeduplicatedNamespace
		for _, p := range f.Projects[1:] {
			if p.DeduplicatedNamespace != "" && p.DeduplicatedNamespace != want {
				s.logger.Debug("project in several families gets conflicting namespaces",
					zap.String("project", p.AbsolutePath),
					zap.String("kept", p.DeduplicatedNamespace),
					zap.String("other", want))
				continue
			}
			p.DeduplicatedNamespace = want
		}
	}
	return plan, nil
}

// DeduplicateClassNames renames the main class of every project whose main
// class collides and has a deduplicated namespace, appending that namespace
// to the class name. A non-empty only restricts it to that main class name.
// Returns the number of projects changed.
func (s *Store) DeduplicateClassNames(only string) int {
	colliding := map[string]bool{}
	for _, g := range s.ClassCollisionGroups() {
		colliding[g.ClassName] = true
	}
	n := 0
	for _, p := range s.Projects() {
		name := p.Source.MainClassName
		if name == "" || p.DeduplicatedNamespace == "" || !colliding[name] {
			continue
		}
		if only != "" && name != only {
			continue
		}
		p.DeduplicatedClassName = rewrite.SanitizeIdentifier(
			p.Source.SimpleClassName()+"_"+p.DeduplicatedNamespace, language(p))
		n++
	}
	return n
}

// Move is a planned file rename.
type Move struct {
	Project string `json:"project" toon:"project"`
	From    string `json:"from" toon:"from"`
	To      string `json:"to" toon:"to"`
}

// ErrTargetExists is returned by ApplyMoves when a destination file is
// already present.
var ErrTargetExists = errors.New("target already exists")

// ApplyMoves renames the files of moves in order without overwriting. A
// move whose destination differs from its source only in case is allowed.
func ApplyMoves(moves []Move) error {
	var errs []error
	for _, m := range moves {
		if err := moveFile(m.From, m.To); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func moveFile(from, to string) error {
	if from == to {
		return nil
	}
	if _, err := os.Stat(to); err == nil && !strings.EqualFold(from, to) {
		return fmt.Errorf("moving %s: %w: %s", from, ErrTargetExists, to)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	return os.Rename(from, to)
}

// PlanProjectRenames finds projects that share a key name within a wrapper
// group and gives each a distinguishing suffix. A .csproj/.ilproj pair with
// the same name only renames the IL project (foo.ilproj to foo_il.ilproj);
// other collisions append the nearest directory that differs between them.
// NewAbsolutePath is set on every renamed project.
func (s *Store) PlanProjectRenames() []Move {
	projects := s.Projects()
	var moves []Move
	for _, group := range models.WrapperGroups {
		var keys []string
		byKey := map[string][]*models.Project{}
		for _, p := range projects {
			if models.WrapperGroupOf(p.Name()) != group {
				continue
			}
			key, _, _ := p.Split()
			if _, ok := byKey[key]; !ok {
				keys = append(keys, key)
			}
			byKey[key] = append(byKey[key], p)
		}

		for _, key := range keys {
			list := byKey[key]
			if len(list) < 2 {
				continue
			}
			extra, ok := s.extraRootNames(list)
			if !ok {
				continue
			}
			for i, p := range list {
				_, root, suffix := p.Split()
				if extra[i] == "" || extra[i] == root {
					continue
				}
				to := filepath.Join(filepath.Dir(p.AbsolutePath), root+"_"+extra[i]+suffix)
				p.NewAbsolutePath = to
				moves = append(moves, Move{Project: p.AbsolutePath, From: p.AbsolutePath, To: to})
			}
		}
	}
	return moves
}

func (s *Store) extraRootNames(list []*models.Project) ([]string, bool) {
	if len(list) == 2 && list[0].Name() == list[1].Name() {
		il := slices.IndexFunc(list, func(p *models.Project) bool { return p.IsIL })
		cs := slices.IndexFunc(list, func(p *models.Project) bool { return !p.IsIL })
		if il >= 0 && cs >= 0 {
			extra := []string{"", ""}
			extra[il] = "il"
			return extra, true
		}
	}

	paths := make([]string, len(list))
	for i, p := range list {
		paths[i] = p.AbsolutePath
	}
	diff := disambig.NearestDirectoryWithDifferences(paths)
	if diff == nil {
		s.logger.Info("No collision found for duplicate project names", zap.Strings("projects", paths))
		return nil, false
	}
	return disambig.TrimSharedTokens(diff), true
}

// PlanDbgRelRenames maps the legacy debug/release spellings in project
// names onto the _d/_r/_do/_ro convention (see models.UnifyDbgRelName).
// An IL project whose single source differs from its name only in case
// gets a trailing "_" so that the later source rename is not case-only.
func (s *Store) PlanDbgRelRenames() []Move {
	var moves []Move
	for _, p := range s.Projects() {
		dir := filepath.Dir(p.AbsolutePath)
		name := p.Name()
		renamed := models.UnifyDbgRelName(name, p.IsIL)

		if p.IsIL && len(p.CompileFiles) == 1 {
			_, root, _ := models.SplitProjectName(renamed)
			src := stem(p.CompileFiles[0])
			if root != src && strings.EqualFold(root, src) {
				if inner := filepath.Base(dir); renamed != inner && strings.EqualFold(renamed, inner) {
					renamed = inner
				}
				renamed += "_"
			}
		}

		if renamed != name {
			to := filepath.Join(dir, renamed+filepath.Ext(p.AbsolutePath))
			p.NewAbsolutePath = to
			moves = append(moves, Move{Project: p.AbsolutePath, From: p.AbsolutePath, To: to})
		}
	}
	return moves
}

// PlanILSourceRenames renames the main source of each IL project after the
// project's (possibly renamed) root name, and updates NewSourceFile and the
// first compile file. With onlyRenamed, only projects that were renamed and
// compile $(MSBuildProjectName) are considered. A source shared by several
// projects moves once; conflicting targets are logged and the first wins.
func (s *Store) PlanILSourceRenames(onlyRenamed bool) []Move {
	moved := map[string]string{}
	var moves []Move
	for _, p := range s.Projects() {
		if !p.IsIL || p.Source.MainClassSourceFile == "" {
			continue
		}
		if onlyRenamed && (p.NewAbsolutePath == "" || !p.CompileFilesIncludeProjectName) {
			continue
		}

		src := p.Source.MainClassSourceFile
		_, root, _ := models.SplitProjectName(p.CurrentPath())
		if stem(src) == root {
			continue
		}
		to := filepath.Join(filepath.Dir(src), root+filepath.Ext(src))

		if prev, ok := moved[src]; ok {
			if prev != to {
				s.logger.Warn("conflicting source renames",
					zap.String("source", src), zap.String("to", to), zap.String("previous", prev))
			}
		} else {
			moved[src] = to
			moves = append(moves, Move{Project: p.AbsolutePath, From: src, To: to})
		}
		p.NewSourceFile = to
		if len(p.CompileFiles) > 0 {
			p.CompileFiles[0] = to
		}
	}
	return moves
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

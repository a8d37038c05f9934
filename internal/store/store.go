// Package store holds every scanned test project and plans the renames
// and rewrites applied across them.
package store

import (
	"cmp"
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/panbanda/iltransform/internal/fileproc"
	"github.com/panbanda/iltransform/internal/project"
	"github.com/panbanda/iltransform/pkg/lexer"
	"github.com/panbanda/iltransform/pkg/models"
	"go.uber.org/zap"
)

// Store is the set of projects found under one or more test roots.
type Store struct {
	mu       sync.Mutex
	projects []*models.Project
	logger   *zap.Logger
	workers  int
	loader   *project.Loader
}

// Option is a functional option for configuring a Store.
type Option func(*Store)

// WithLogger sets the logger for planning and rewrite diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkers bounds parallel loading and rewriting. 0 picks a default
// based on the CPU count.
func WithWorkers(n int) Option {
	return func(s *Store) {
		s.workers = n
	}
}

// WithLoader sets the loader used for project descriptors.
func WithLoader(ld *project.Loader) Option {
	return func(s *Store) {
		s.loader = ld
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends already loaded projects.
func (s *Store) Add(projects ...*models.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range projects {
		if p.Alias == "" {
			p.Alias = p.Name()
		}
		s.projects = append(s.projects, p)
	}
}

// Projects returns the projects in load order.
func (s *Store) Projects() []*models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.projects)
}

// Len returns the number of projects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.projects)
}

// Load reads the descriptors at paths, all found under root, in parallel.
// Descriptors that fail to load are reported and left out; the others are
// added in the order of paths.
func (s *Store) Load(ctx context.Context, root string, paths []string, onProgress fileproc.ProgressFunc) *fileproc.ProcessingErrors {
	ld := project.New(project.WithLogger(s.logger), project.WithRoot(root))
	if s.loader != nil {
		ld = s.loader
	}
	projects, errs := fileproc.MapFiles(ctx, paths, s.workers,
		func(_ context.Context, path string) (*models.Project, error) {
			return ld.Load(path)
		}, onProgress)
	if errs != nil {
		for _, e := range errs.Errors {
			s.logger.Warn("failed to load project", zap.String("path", e.Path), zap.Error(e.Err))
		}
	}
	s.Add(projects...)
	return errs
}

// Family is a set of projects built from the same sources in different
// debug/optimize flavors: foo_d.csproj and foo_r.csproj in one directory.
type Family struct {
	// Key is the descriptor path without its flavor suffix.
	Key      string            `json:"key" toon:"key"`
	Projects []*models.Project `json:"projects" toon:"projects"`
}

// CollisionGroup is a type name declared by more than one family.
type CollisionGroup struct {
	ClassName string   `json:"class_name" toon:"class_name"`
	Families  []Family `json:"families" toon:"families"`
}

// FamilyKey returns the descriptor path of p with the flavor suffix
// removed, keeping the extension.
func FamilyKey(p *models.Project) string {
	_, root, _ := p.Split()
	return filepath.Join(filepath.Dir(p.AbsolutePath), root+filepath.Ext(p.AbsolutePath))
}

// ClassCollisionGroups returns the type names declared by more than one
// family, sorted by name. Families keep load order.
func (s *Store) ClassCollisionGroups() []CollisionGroup {
	type entry struct {
		keys     []string
		families map[string][]*models.Project
	}
	byName := map[string]*entry{}
	for _, p := range s.Projects() {
		key := FamilyKey(p)
		for _, name := range p.Source.TypeNames {
			e := byName[name]
			if e == nil {
				e = &entry{families: map[string][]*models.Project{}}
				byName[name] = e
			}
			if _, ok := e.families[key]; !ok {
				e.keys = append(e.keys, key)
			}
			// A project declaring the name twice still counts once.
			if !slices.Contains(e.families[key], p) {
				e.families[key] = append(e.families[key], p)
			}
		}
	}

	var groups []CollisionGroup
	for name, e := range byName {
		if len(e.keys) < 2 {
			continue
		}
		g := CollisionGroup{ClassName: name}
		for _, k := range e.keys {
			g.Families = append(g.Families, Family{Key: k, Projects: e.families[k]})
		}
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(a, b CollisionGroup) int {
		return strings.Compare(a.ClassName, b.ClassName)
	})
	return groups
}

// DuplicateNames maps each project file stem shared by more than one
// project to those projects.
func (s *Store) DuplicateNames() map[string][]*models.Project {
	byName := map[string][]*models.Project{}
	for _, p := range s.Projects() {
		byName[p.Name()] = append(byName[p.Name()], p)
	}
	for name, ps := range byName {
		if len(ps) < 2 {
			delete(byName, name)
		}
	}
	return byName
}

// DuplicateContent returns pairs of projects that build identical sources
// in the same flavor.
func (s *Store) DuplicateContent() [][2]*models.Project {
	ld := s.loader
	if ld == nil {
		ld = project.New(project.WithLogger(s.logger))
	}

	type key struct {
		flavor string
		files  string
	}
	var order []key
	groups := map[key][]*models.Project{}
	for _, p := range s.Projects() {
		names := make([]string, 0, len(p.ProjectReferences)+len(p.CompileFiles))
		for _, r := range p.ProjectReferences {
			names = append(names, "ref:"+filepath.Base(r))
		}
		for _, f := range p.CompileFiles {
			names = append(names, "src:"+filepath.Base(f))
		}
		slices.Sort(names)
		k := key{
			flavor: strings.ToLower(p.DebugOptimize.Debug + "|" + p.DebugOptimize.Optimize),
			files:  strings.Join(names, "\n"),
		}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], p)
	}

	var pairs [][2]*models.Project
	for _, k := range order {
		g := groups[k]
		for i := 1; i < len(g); i++ {
			for j := 0; j < i; j++ {
				if ld.SameContent(g[i], g[j]) {
					pairs = append(pairs, [2]*models.Project{g[i], g[j]})
				}
			}
		}
	}
	return pairs
}

// FlavorCount is the number of projects built in one flavor.
type FlavorCount struct {
	Flavor models.DebugOptimize `json:"flavor" toon:"flavor"`
	Count  int                  `json:"count" toon:"count"`
}

// FlavorCounts counts projects per debug/optimize flavor, largest first.
func (s *Store) FlavorCounts() []FlavorCount {
	counts := map[models.DebugOptimize]int{}
	for _, p := range s.Projects() {
		counts[p.DebugOptimize]++
	}
	out := make([]FlavorCount, 0, len(counts))
	for f, n := range counts {
		out = append(out, FlavorCount{Flavor: f, Count: n})
	}
	slices.SortFunc(out, func(a, b FlavorCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return a.Flavor.Compare(b.Flavor)
	})
	return out
}

// Flavors returns the distinct flavors in sorted order.
func (s *Store) Flavors() []models.DebugOptimize {
	var out []models.DebugOptimize
	for _, fc := range s.FlavorCounts() {
		out = append(out, fc.Flavor)
	}
	slices.SortFunc(out, models.DebugOptimize.Compare)
	return out
}

func language(p *models.Project) lexer.Language {
	if p.IsIL {
		return lexer.LangIL
	}
	return lexer.LangCSharp
}

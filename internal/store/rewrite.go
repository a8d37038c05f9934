package store

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/panbanda/iltransform/internal/cache"
	"github.com/panbanda/iltransform/internal/fileproc"
	"github.com/panbanda/iltransform/pkg/config"
	"github.com/panbanda/iltransform/pkg/lexer"
	"github.com/panbanda/iltransform/pkg/models"
	"github.com/panbanda/iltransform/pkg/rewrite"
	"github.com/panbanda/iltransform/pkg/source"
	"go.uber.org/zap"
)

// File outcomes reported by RewriteAll.
const (
	StatusRewritten = "rewritten"
	StatusUnchanged = "unchanged"
	StatusCached    = "cached"
	StatusSkipped   = "skipped"
)

// Settings converts the rewrite section of the configuration into rewrite
// pass toggles.
func Settings(rc config.RewriteConfig) rewrite.Settings {
	return rewrite.Settings{
		AddFactAttributes:     rc.AddFactAttributes,
		AddProcessIsolation:   rc.AddProcessIsolation,
		CleanupILModule:       rc.CleanupILModule,
		CleanupILAssembly:     rc.CleanupILAssembly,
		UncategorizedCleanup:  rc.UncategorizedCleanup,
		DeduplicateClassNames: rc.DeduplicateClassNames,
	}
}

// RewriteOptions configures RewriteAll.
type RewriteOptions struct {
	Settings rewrite.Settings
	// ClassToDeduplicate limits the run to projects with this main class.
	ClassToDeduplicate string
	SourcePolicy       source.NewlinePolicy
	ProjectPolicy      source.NewlinePolicy
	// Cache skips files left untouched since they were last rewritten with
	// the same settings towards the same namespace and class name. Nil
	// disables it. Open it with the fingerprint returned by Fingerprint.
	Cache      *cache.Cache
	OnProgress fileproc.ProgressFunc
}

// Fingerprint identifies the run-wide settings that shape every rewritten
// file. Per-file inputs are checked separately through target keys.
func (o RewriteOptions) Fingerprint() (string, error) {
	return cache.Fingerprint(struct {
		Settings rewrite.Settings
		Class    string
		Source   string
		Project  string
	}{o.Settings, o.ClassToDeduplicate, o.SourcePolicy.String(), o.ProjectPolicy.String()})
}

// targetKey hashes the per-file rewrite inputs that do not live in the
// file itself.
func targetKey(parts ...string) string {
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(parts, "\x00")), 16)
}

// FileOutcome is what happened to one file.
type FileOutcome struct {
	Project   string `json:"project" toon:"project"`
	File      string `json:"file" toon:"file"`
	Status    string `json:"status" toon:"status"`
	AddedFact bool   `json:"added_fact,omitempty" toon:"added_fact"`
}

// RewriteSummary aggregates a RewriteAll run.
type RewriteSummary struct {
	Projects   int           `json:"projects" toon:"projects"`
	Rewritten  int           `json:"rewritten" toon:"rewritten"`
	Unchanged  int           `json:"unchanged" toon:"unchanged"`
	Cached     int           `json:"cached" toon:"cached"`
	Skipped    int           `json:"skipped" toon:"skipped"`
	AddedFacts int           `json:"added_facts" toon:"added_facts"`
	Ambiguous  int64         `json:"ambiguous" toon:"ambiguous"`
	Files      []FileOutcome `json:"files" toon:"files"`
}

func (s *RewriteSummary) add(o FileOutcome) {
	s.Files = append(s.Files, o)
	switch o.Status {
	case StatusRewritten:
		s.Rewritten++
	case StatusUnchanged:
		s.Unchanged++
	case StatusCached:
		s.Cached++
	case StatusSkipped:
		s.Skipped++
	}
	if o.AddedFact {
		s.AddedFacts++
	}
}

// RewriteAll rewrites the main source and the descriptor of every project
// in parallel. A source shared by several projects is rewritten once, by
// the first project in load order. Descriptors are left alone when class
// names are being deduplicated. Per-file failures are collected and do not
// stop the run.
func (s *Store) RewriteAll(ctx context.Context, opts RewriteOptions) (RewriteSummary, *fileproc.ProcessingErrors) {
	projects := s.Projects()

	owner := map[string]*models.Project{}
	for _, p := range projects {
		if src := p.MainSourceFile(); src != "" {
			if _, ok := owner[src]; !ok {
				owner[src] = p
			}
		}
	}

	var ambiguous atomic.Int64
	r := &projectRewrite{store: s, opts: opts, owner: owner, ambiguous: &ambiguous}
	results, errs := fileproc.Map(ctx, projects, s.workers,
		func(p *models.Project) string { return p.CurrentPath() },
		r.run, opts.OnProgress)

	summary := RewriteSummary{Projects: len(projects)}
	for _, outcomes := range results {
		for _, o := range outcomes {
			summary.add(o)
		}
	}
	summary.Ambiguous = ambiguous.Load()
	if errs != nil {
		for _, e := range errs.Errors {
			s.logger.Warn("rewrite failed", zap.String("path", e.Path), zap.Error(e.Err))
		}
	}
	return summary, errs
}

type projectRewrite struct {
	store     *Store
	opts      RewriteOptions
	owner     map[string]*models.Project
	ambiguous *atomic.Int64
}

func (r *projectRewrite) run(ctx context.Context, p *models.Project) ([]FileOutcome, error) {
	if only := r.opts.ClassToDeduplicate; only != "" && p.Source.MainClassName != only {
		return []FileOutcome{{Project: p.AbsolutePath, File: p.CurrentPath(), Status: StatusSkipped}}, nil
	}

	var out []FileOutcome
	if src := p.MainSourceFile(); src != "" && r.owner[src] == p {
		o, err := r.source(p, src)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.opts.Settings.DeduplicateClassNames {
		o, err := r.descriptor(p)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *projectRewrite) source(p *models.Project, path string) (FileOutcome, error) {
	o := FileOutcome{Project: p.AbsolutePath, File: path}
	target := targetKey(p.DeduplicatedNamespace, p.DeduplicatedClassName)
	if r.fresh(path, target) {
		o.Status = StatusCached
		return o, nil
	}

	lang, _ := lexer.DetectLanguage(path)
	lines, err := source.ReadLines(source.NewFilesystem(), path)
	if err != nil {
		return o, err
	}
	rw := rewrite.New(lang, rewrite.WithLogger(r.store.logger), rewrite.WithPath(path))
	res := rw.RewriteFile(lines, rewrite.FileTarget{
		Path:      path,
		Source:    p.Source,
		Namespace: p.DeduplicatedNamespace,
		ClassName: p.DeduplicatedClassName,
	}, r.opts.Settings)
	r.ambiguous.Add(rw.Ambiguous())

	o.AddedFact = res.AddedFact
	o.Status = StatusUnchanged
	if res.Changed {
		if err := source.WriteLines(path, res.Lines, r.opts.SourcePolicy); err != nil {
			return o, err
		}
		o.Status = StatusRewritten
	}
	r.record(path, target)
	return o, nil
}

func (r *projectRewrite) descriptor(p *models.Project) (FileOutcome, error) {
	path := p.CurrentPath()
	o := FileOutcome{Project: p.AbsolutePath, File: path}
	target := targetKey(p.NewSourceFile, p.Source.MainClassSourceFile)
	if r.fresh(path, target) {
		o.Status = StatusCached
		return o, nil
	}

	lines, err := source.ReadLines(source.NewFilesystem(), path)
	if err != nil {
		return o, err
	}
	rw := rewrite.New(language(p), rewrite.WithLogger(r.store.logger), rewrite.WithPath(path))
	rewritten, changed := rw.RewriteProject(lines, p, r.opts.Settings)

	o.Status = StatusUnchanged
	if changed {
		if err := source.WriteLines(path, rewritten, r.opts.ProjectPolicy); err != nil {
			return o, err
		}
		o.Status = StatusRewritten
	}
	r.record(path, target)
	return o, nil
}

func (r *projectRewrite) fresh(path, target string) bool {
	return r.opts.Cache != nil && r.opts.Cache.Fresh(path, target)
}

func (r *projectRewrite) record(path, target string) {
	if r.opts.Cache == nil {
		return
	}
	if err := r.opts.Cache.Record(path, target); err != nil {
		r.store.logger.Debug("cache record failed", zap.String("path", path), zap.Error(err))
	}
}

// Package facts extracts the structural facts about test sources that the
// rewriting passes rely on: declared type names, the entry point and its
// enclosing class, and the header, using and namespace lines.
package facts

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/panbanda/iltransform/pkg/models"
	"github.com/panbanda/iltransform/pkg/source"
	"go.uber.org/zap"
)

// ErrUnsupportedSource is returned for compile files that are neither IL
// nor C#.
var ErrUnsupportedSource = errors.New("unsupported source file")

// Analyzer extracts facts from source files.
type Analyzer struct {
	src    source.ContentSource
	logger *zap.Logger
}

// Option is a functional option for configuring an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger for analysis diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithContentSource sets where file content is read from.
func WithContentSource(src source.ContentSource) Option {
	return func(a *Analyzer) {
		a.src = src
	}
}

// New creates an Analyzer reading from the filesystem.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		src:    source.NewFilesystem(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeFile reads path and merges its facts into info. Several compile
// files of one project accumulate into the same SourceInfo.
func (a *Analyzer) AnalyzeFile(path string, info *models.SourceInfo) error {
	var analyze func(string, []string, *models.SourceInfo)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".il":
		analyze = a.AnalyzeIL
	case ".cs":
		analyze = a.AnalyzeCS
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedSource, path)
	}

	lines, err := source.ReadLines(a.src, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	analyze(path, lines, info)
	return nil
}

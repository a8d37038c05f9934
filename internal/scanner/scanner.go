// Package scanner finds test project descriptors below a test tree root.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/panbanda/iltransform/pkg/config"
)

// Kind classifies a file by extension.
type Kind int

const (
	KindUnknown Kind = iota
	KindCSProject
	KindILProject
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindCSProject:
		return "csproj"
	case KindILProject:
		return "ilproj"
	default:
		return "unknown"
	}
}

// DetectKind classifies path by its extension, ignoring case.
func DetectKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csproj":
		return KindCSProject
	case ".ilproj":
		return KindILProject
	default:
		return KindUnknown
	}
}

// Scanner finds project descriptors in a directory tree.
type Scanner struct {
	config   *config.Config
	matchers []gitignore.Matcher
	include  []string
}

// Option is a functional option for configuring a Scanner.
type Option func(*Scanner)

// WithInclude restricts results to paths, relative to the scan root and
// slash-separated, matching at least one doublestar pattern such as
// "JIT/Regression/**".
func WithInclude(patterns ...string) Option {
	return func(s *Scanner) {
		s.include = patterns
	}
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config, opts ...Option) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Scanner{config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns loads exclusion patterns from config and .gitignore files.
// Excluded directories and config patterns are parsed as gitignore patterns.
func (s *Scanner) loadExcludePatterns(root string) {
	s.matchers = nil
	var patterns []gitignore.Pattern

	for _, dir := range s.config.Exclude.Dirs {
		patterns = append(patterns, gitignore.ParsePattern(dir+"/", nil))
	}
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}

	// ReadPatterns recursively reads all .gitignore files in the tree
	if s.config.Exclude.Gitignore {
		if abs, err := filepath.Abs(root); err == nil {
			if gitRoot := findGitRoot(abs); gitRoot != "" {
				fs := osfs.New(gitRoot)
				if gitPatterns, err := gitignore.ReadPatterns(fs, nil); err == nil {
					patterns = append(patterns, gitPatterns...)
				}
			}
		}
	}

	if len(patterns) > 0 {
		s.matchers = append(s.matchers, gitignore.NewMatcher(patterns))
	}
}

// isExcluded checks if a path matches any exclusion pattern.
func (s *Scanner) isExcluded(path string, isDir bool) bool {
	if len(s.matchers) == 0 {
		return false
	}

	pathParts := strings.Split(path, string(filepath.Separator))
	for _, m := range s.matchers {
		if m.Match(pathParts, isDir) {
			return true
		}
	}
	return false
}

func (s *Scanner) isIncluded(relPath string) bool {
	if len(s.include) == 0 {
		return true
	}
	slashed := filepath.ToSlash(relPath)
	for _, pattern := range s.include {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}

// ScanDir recursively scans a directory for project descriptors and returns
// them sorted.
// Validates that all paths stay within the root directory to prevent traversal attacks.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 1024)

	// Resolve root to absolute path for security validation
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	// Resolve any symlinks in the root path
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadExcludePatterns(root)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)

		// Security: validate path stays within root (prevent symlink traversal)
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			if relPath != "." && s.isExcluded(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.isExcluded(relPath, false) || !s.isIncluded(relPath) {
			return nil
		}
		if DetectKind(path) != KindUnknown {
			files = append(files, path)
		}
		return nil
	})

	slices.Sort(files)
	return files, walkErr
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

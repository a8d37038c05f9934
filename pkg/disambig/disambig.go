// Package disambig derives short distinguishing names for items whose
// original names collide.
package disambig

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
)

// ErrNoUniqueTier is returned by Resolve when no candidate tier yields
// pairwise distinct names.
var ErrNoUniqueTier = errors.New("no tier yields unique names")

// Tier identifies where a candidate name came from. Lower tiers win ties.
type Tier int

const (
	// TierSourceStem uses the file stem of the item's main source file.
	TierSourceStem Tier = iota
	// TierProjectStem uses the file stem of the item's descriptor.
	TierProjectStem
	// TierDirectory uses the nearest directory that differs between items.
	TierDirectory
)

func (t Tier) String() string {
	switch t {
	case TierSourceStem:
		return "source"
	case TierProjectStem:
		return "project"
	case TierDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Item is one member of a collision group.
type Item struct {
	// SourceFile is the file holding the item's main declaration.
	SourceFile string
	// ProjectPath is the descriptor path with any flavor suffix removed.
	ProjectPath string
	// Path is the descriptor path itself; its directories feed the
	// directory tier.
	Path string
}

// Candidates is the outcome of one tier.
type Candidates struct {
	Tier  Tier
	Names []string // nil when the tier could not produce names
	// Score is the summed length of Names, or math.MaxInt when the names are
	// missing or not unique.
	Score int
}

// Unique reports whether the tier produced pairwise distinct names.
func (c Candidates) Unique() bool {
	return c.Score != math.MaxInt
}

// Resolution is the winning tier and its names, index-aligned with the
// items passed to Resolve.
type Resolution struct {
	Tier  Tier
	Names []string
}

// Tiers computes the candidates of every tier for items.
func Tiers(items []Item) []Candidates {
	source := make([]string, len(items))
	project := make([]string, len(items))
	paths := make([]string, len(items))
	for i, it := range items {
		source[i] = stem(it.SourceFile)
		project[i] = stem(it.ProjectPath)
		paths[i] = it.Path
	}
	dir := NearestDirectoryWithDifferences(paths)
	if dir != nil {
		dir = TrimSharedTokens(dir)
	}

	return []Candidates{
		scored(TierSourceStem, source),
		scored(TierProjectStem, project),
		scored(TierDirectory, dir),
	}
}

func scored(t Tier, names []string) Candidates {
	c := Candidates{Tier: t, Names: names, Score: math.MaxInt}
	if names != nil && AllUnique(names) {
		c.Score = 0
		for _, n := range names {
			c.Score += len(n)
		}
	}
	return c
}

// Resolve picks, among the tiers whose names are all unique, the one with
// the smallest summed name length. Ties go to the earlier tier.
func Resolve(items []Item) (Resolution, error) {
	if len(items) == 0 {
		return Resolution{}, nil
	}
	best := Candidates{Score: math.MaxInt}
	for _, c := range Tiers(items) {
		if c.Score < best.Score {
			best = c
		}
	}
	if !best.Unique() {
		return Resolution{}, ErrNoUniqueTier
	}
	return Resolution{Tier: best.Tier, Names: best.Names}, nil
}

// AllUnique reports whether no string occurs twice in values.
func AllUnique(values []string) bool {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}

// NearestDirectoryWithDifferences looks at the directories containing paths
// and, for depth 1 to 3, keys each path by its innermost depth directory
// names. At the first depth where every key is unique it returns, per path,
// the directory name at that depth counted from the innermost. It returns
// nil when no depth separates the paths.
func NearestDirectoryWithDifferences(paths []string) []string {
	dirs := make([][]string, len(paths))
	for i, p := range paths {
		dirs[i] = splitPath(filepath.Dir(filepath.ToSlash(p)))
	}
	for depth := 1; depth <= 3; depth++ {
		keys := make([]string, len(dirs))
		for i, d := range dirs {
			keys[i] = strings.Join(d[max(0, len(d)-depth):], "/")
		}
		if !AllUnique(keys) {
			continue
		}
		names := make([]string, len(dirs))
		for i, d := range dirs {
			if at := len(d) - depth; at >= 0 {
				names[i] = d[at]
			}
		}
		return names
	}
	return nil
}

// DedupSuffixDir strips the shortest of dirs from the front of every entry
// when it is a leading run of components of all of them, returning the
// remainders. It returns nil when the shortest entry is not such a prefix.
func DedupSuffixDir(dirs []string) []string {
	if len(dirs) == 0 {
		return nil
	}
	shortest := dirs[0]
	for _, d := range dirs[1:] {
		if len(d) < len(shortest) {
			shortest = d
		}
	}
	prefix := splitPath(shortest)

	out := make([]string, len(dirs))
	for i, d := range dirs {
		comps := splitPath(d)
		if len(comps) < len(prefix) {
			return nil
		}
		for j, c := range prefix {
			if comps[j] != c {
				return nil
			}
		}
		rest := d[min(len(shortest), len(d)):]
		out[i] = strings.TrimLeft(rest, `/\`)
	}
	return out
}

func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
}

func stem(path string) string {
	base := filepath.Base(filepath.ToSlash(path))
	if i := strings.LastIndexByte(base, '\\'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

package models

import (
	"path/filepath"
	"strings"
)

// Debug/optimize flavor suffixes. Projects sharing a root name and differing
// only by one of these reuse the same sources. Order matters: longer suffixes
// are tried first.
var flavorSuffixes = []struct {
	suffix string
	// keyed suffixes are also cut from the key name, so "foo_il_d" and
	// "foo_il_r" collide with each other but not with "foo_d".
	keyed bool
}{
	{"_il_ro", true}, {"_il_do", true},
	{"_cs_ro", false}, {"_cs_do", false},
	{"_il_r", true}, {"_il_d", true},
	{"_cs_r", false}, {"_cs_d", false},
	{"_do", false}, {"_ro", false},
	{"_d", false}, {"_r", false},
}

// WrapperGroups partitions projects for name deduplication. The empty group
// holds every project without one of the other suffixes.
var WrapperGroups = []string{"_do", "_ro", "_d", "_r", ""}

// SplitProjectName splits the file name of path into a key name used to
// detect collisions, the root name without flavor suffix, and the suffix
// (flavor plus extension).
//
//	SplitProjectName("dir/foo_il_d.ilproj") == ("foo", "foo", "_il_d.ilproj")
//	SplitProjectName("dir/foo_cs_d.csproj") == ("foo_cs_d", "foo", "_cs_d.csproj")
func SplitProjectName(path string) (key, root, suffix string) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	root = strings.TrimSuffix(base, ext)
	cut, keyCut := len(root), len(root)
	for _, f := range flavorSuffixes {
		if strings.HasSuffix(root, f.suffix) {
			cut -= len(f.suffix)
			if f.keyed {
				keyCut = cut
			}
			break
		}
	}
	return root[:keyCut], root[:cut], root[cut:] + ext
}

// WrapperGroupOf returns the wrapper group a project name belongs to.
func WrapperGroupOf(name string) string {
	for _, g := range WrapperGroups {
		if g != "" && strings.HasSuffix(name, g) {
			return g
		}
	}
	return ""
}

var dbgRelRenames = []struct{ from, to string }{
	{"_speed_dbg", "_do"},
	{"_speed_rel", "_ro"},
	{"_opt_dbg", "_do"},
	{"_opt_rel", "_ro"},
	{"_odbg", "_do"},
	{"_orel", "_ro"},
	{"_dbg", "_d"},
	{"_rel", "_r"},
	{"-dbg", "_d"},
	{"-ret", "_r"},
}

var ilFlavorRenames = []struct{ from, to string }{
	{"_d", "_il_d"},
	{"_do", "_il_do"},
	{"_r", "_il_r"},
	{"_ro", "_il_ro"},
}

// UnifyDbgRelName maps the historical debug/release naming variants of a
// project file stem onto the _d/_r/_do/_ro convention. IL projects also get
// an _il marker so they never collide with a C# sibling.
func UnifyDbgRelName(name string, isIL bool) string {
	for _, r := range dbgRelRenames {
		name = renameEnd(name, r.from, r.to)
	}
	if isIL {
		for _, r := range ilFlavorRenames {
			name = renameEnd(name, r.from, r.to)
		}
	}
	return name
}

func renameEnd(s, from, to string) string {
	if strings.HasSuffix(s, to) || !strings.HasSuffix(s, from) {
		return s
	}
	return s[:len(s)-len(from)] + to
}

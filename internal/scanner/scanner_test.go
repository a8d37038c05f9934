package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/panbanda/iltransform/pkg/config"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to create file %s: %v", name, err)
		}
	}
}

func relSet(root string, files []string) map[string]bool {
	found := make(map[string]bool)
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		found[filepath.ToSlash(rel)] = true
	}
	return found
}

func TestNewScanner(t *testing.T) {
	// With nil config
	s := NewScanner(nil)
	if s == nil {
		t.Fatal("NewScanner(nil) returned nil")
	}
	if s.config == nil {
		t.Error("scanner.config should not be nil when passing nil")
	}

	// With explicit config
	cfg := config.DefaultConfig()
	s = NewScanner(cfg)
	if s.config != cfg {
		t.Error("scanner.config should be the provided config")
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"a/b.csproj", KindCSProject},
		{"a/b.ILPROJ", KindILProject},
		{"a/b.cs", KindUnknown},
		{"a/b.il", KindUnknown},
		{"a/b.txt", KindUnknown},
	}
	for _, tt := range tests {
		if got := DetectKind(tt.path); got != tt.want {
			t.Errorf("DetectKind(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestScanDir(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"JIT/a/a.ilproj":   "<Project/>",
		"JIT/a/a.il":       ".assembly a {}",
		"JIT/b/b.csproj":   "<Project/>",
		"JIT/b/Program.cs": "class P {}",
		"README.md":        "# tests",
	})

	s := NewScanner(nil)
	result, err := s.ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	found := relSet(tmpDir, result)
	if len(result) != 2 || !found["JIT/a/a.ilproj"] || !found["JIT/b/b.csproj"] {
		t.Errorf("ScanDir() = %v, want the two project descriptors", result)
	}
	if result[0] > result[1] {
		t.Error("ScanDir() results should be sorted")
	}
}

func TestScanDirExcludesDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"bin/x.csproj":         "",
		"obj/Debug/y.csproj":   "",
		".git/z.csproj":        "",
		"src/obj/w.ilproj":     "",
		"src/objects.csproj":   "",
		"JIT/real/real.ilproj": "",
	})

	s := NewScanner(nil)
	result, err := s.ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	found := relSet(tmpDir, result)
	if len(result) != 2 || !found["src/objects.csproj"] || !found["JIT/real/real.ilproj"] {
		t.Errorf("ScanDir() = %v, excluded dirs should be skipped", result)
	}
}

func TestScanDirExcludesPatterns(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"a/keep.csproj":     "",
		"a/skip.gen.csproj": "",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Patterns = []string{"*.gen.csproj"}

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 1 || filepath.Base(result[0]) != "keep.csproj" {
		t.Errorf("ScanDir() = %v, want only keep.csproj", result)
	}
}

func TestScanDirWithInclude(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"JIT/Regression/a/a.ilproj": "",
		"JIT/Methodical/b/b.ilproj": "",
		"GC/c/c.csproj":             "",
	})

	s := NewScanner(nil, WithInclude("JIT/Regression/**", "GC/**/*.csproj"))
	result, err := s.ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	found := relSet(tmpDir, result)
	if len(result) != 2 || !found["JIT/Regression/a/a.ilproj"] || !found["GC/c/c.csproj"] {
		t.Errorf("ScanDir() = %v", result)
	}
}

func TestScanDirWithGitignore(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeTree(t, tmpDir, map[string]string{
		".gitignore":         "skipme\n",
		"keep/keep.csproj":   "",
		"skipme/skip.csproj": "",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = true

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	found := relSet(tmpDir, result)
	if !found["keep/keep.csproj"] || found["skipme/skip.csproj"] {
		t.Errorf("ScanDir() = %v, gitignored directory should be skipped", result)
	}

	cfg.Exclude.Gitignore = false
	result, err = NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if !relSet(tmpDir, result)["skipme/skip.csproj"] {
		t.Error("With gitignore disabled, should find files in 'skipme' directory")
	}
}

func TestScanDirEmptyDirectory(t *testing.T) {
	result, err := NewScanner(nil).ScanDir(t.TempDir())
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("ScanDir() on empty dir = %v", result)
	}
}

func TestIsWithinRoot(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"same path", tmpDir, true},
		{"child path", filepath.Join(tmpDir, "subdir", "a.il"), true},
		{"path outside root", "/some/other/path", false},
		{"parent path", filepath.Dir(tmpDir), false},
		{"similar prefix but different dir", tmpDir + "2/a.il", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isWithinRoot(tt.path, tmpDir); got != tt.want {
				t.Errorf("isWithinRoot(%q, %q) = %v, want %v", tt.path, tmpDir, got, tt.want)
			}
		})
	}
}

func TestFindGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	if result := findGitRoot(tmpDir); result != "" {
		t.Errorf("findGitRoot() on non-git dir should return empty string, got %q", result)
	}

	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0o755); err != nil {
		t.Fatalf("Failed to create .git dir: %v", err)
	}
	subDir := filepath.Join(tmpDir, "src", "pkg")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}
	if result := findGitRoot(subDir); result != tmpDir {
		t.Errorf("findGitRoot() from subdir should return %q, got %q", tmpDir, result)
	}
}

func TestScanDirWithSymlinkDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"real/real.csproj": ""})

	outsideDir := t.TempDir()
	writeTree(t, outsideDir, map[string]string{"outside.csproj": ""})

	if err := os.Symlink(outsideDir, filepath.Join(tmpDir, "linked")); err != nil {
		t.Skip("Symlinks not supported on this system")
	}

	result, err := NewScanner(nil).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	for _, f := range result {
		if filepath.Base(f) == "outside.csproj" {
			t.Error("ScanDir() should not follow symlinks outside the root directory")
		}
	}
}

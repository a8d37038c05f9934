package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panbanda/iltransform/internal/store"
	"github.com/panbanda/iltransform/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestGetPaths verifies path handling from CLI arguments.
func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "no args defaults to current dir",
			args:     []string{},
			expected: []string{"."},
		},
		{
			name:     "single path",
			args:     []string{"/foo/bar"},
			expected: []string{"/foo/bar"},
		},
		{
			name:     "multiple paths",
			args:     []string{"/foo", "/bar"},
			expected: []string{"/foo", "/bar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &cli.App{
				Action: func(c *cli.Context) error {
					result := getPaths(c)
					if len(result) != len(tt.expected) {
						t.Errorf("getPaths() = %v, want %v", result, tt.expected)
						return nil
					}
					for i := range result {
						if result[i] != tt.expected[i] {
							t.Errorf("getPaths()[%d] = %q, want %q", i, result[i], tt.expected[i])
						}
					}
					return nil
				},
			}
			args := append([]string{"test"}, tt.args...)
			if err := app.Run(args); err != nil {
				t.Fatalf("app.Run() error = %v", err)
			}
		})
	}
}

const program = `using System;

class Program
{
    static int Main()
    {
        return 100;
    }
}
`

const descriptor = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <OutputType>Exe</OutputType>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="$(MSBuildProjectName).cs" />
  </ItemGroup>
</Project>
`

func write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the CLI and returns what it wrote to the -o file.
func run(t *testing.T, args ...string) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out.json")
	app := newApp()
	app.Writer = &bytes.Buffer{}
	argv := append([]string{"iltransform", "--no-cache", "--force", "-f", "json", "-o", out}, args...)
	require.NoError(t, app.Run(argv))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	return string(data)
}

func TestRewriteCommand(t *testing.T) {
	root := t.TempDir()
	src := write(t, filepath.Join(root, "prog", "prog.cs"), program)
	proj := write(t, filepath.Join(root, "prog", "prog.csproj"), descriptor)

	var summary store.RewriteSummary
	require.NoError(t, json.Unmarshal([]byte(run(t, "rewrite", root)), &summary))
	assert.Equal(t, 1, summary.Projects)
	assert.Equal(t, 2, summary.Rewritten)
	assert.Equal(t, 1, summary.AddedFacts)

	text, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Contains(t, string(text), "[Fact]")
	assert.Contains(t, string(text), "TestEntryPoint")

	desc, err := os.ReadFile(proj)
	require.NoError(t, err)
	assert.NotContains(t, string(desc), "<OutputType>")
}

func TestScanCommand(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"a", "b"} {
		write(t, filepath.Join(root, dir, dir+".cs"), program)
		write(t, filepath.Join(root, dir, dir+".csproj"), descriptor)
	}

	var result scanResult
	require.NoError(t, json.Unmarshal([]byte(run(t, "scan", root)), &result))
	require.Len(t, result.Collisions, 1)
	assert.Equal(t, "Program", result.Collisions[0].ClassName)
	assert.False(t, result.Unresolved)

	var names []string
	for _, a := range result.Namespaces.Assignments {
		names = append(names, a.Namespace)
	}
	assert.Equal(t, []string{"a", "b"}, names)
	require.Len(t, result.Flavors, 1)
	assert.Equal(t, 2, result.Flavors[0].Count)
}

func TestSanitizeCommand(t *testing.T) {
	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(run(t, "sanitize", "--lang", "cs", "1aaa", "ret")), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "_1aaa", rows[0]["identifier"])
	assert.Equal(t, "ret_", rows[1]["identifier"])
}

func TestReplaceCommandReadsStdin(t *testing.T) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.Reader = strings.NewReader("ldsflda value class Box_Unbox.valClass Box_Unbox::vc\n// Box_Unbox\n")

	require.NoError(t, app.Run([]string{"iltransform", "replace",
		"--search", "Box_Unbox", "--replace", "Box_Unbox.Box_Unbox", "--kind", "typeuse", "--lang", "il"}))
	assert.Equal(t, "ldsflda value class Box_Unbox.valClass Box_Unbox.Box_Unbox::vc\n// Box_Unbox\n", out.String())
}

func TestReplaceLines(t *testing.T) {
	var out bytes.Buffer
	err := replaceLines(strings.NewReader("a\nb"), &out, strings.ToUpper)
	require.NoError(t, err)
	assert.Equal(t, "A\nB\n", out.String())
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "iltransform.toml")
	runInit := func(args ...string) error {
		app := newApp()
		app.Writer = &bytes.Buffer{}
		return app.Run(append([]string{"iltransform", "init", "--path", path}, args...))
	}

	require.NoError(t, runInit())
	cfg, err := config.Load(path)
	require.NoError(t, err)
	def := config.DefaultConfig()
	assert.Equal(t, def.Rewrite, cfg.Rewrite)
	assert.Equal(t, def.Newline, cfg.Newline)
	assert.Equal(t, def.Wrappers, cfg.Wrappers)

	assert.ErrorContains(t, runInit(), "already exists")
	assert.NoError(t, runInit("--overwrite"))
}

func TestConfigShow(t *testing.T) {
	path := write(t, filepath.Join(t.TempDir(), "iltransform.toml"), "[wrappers]\nmax_projects_per_wrapper = 7\n")
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	require.NoError(t, app.Run([]string{"iltransform", "-c", path, "config", "show"}))
	assert.Contains(t, out.String(), "# Configuration from: "+path)
	assert.Contains(t, out.String(), "max_projects_per_wrapper = 7")
}

func TestCacheStatsAndClear(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "prog", "prog.cs"), program)
	write(t, filepath.Join(root, "prog", "prog.csproj"), descriptor)
	cacheDir := filepath.Join(t.TempDir(), "cache")
	cfgPath := write(t, filepath.Join(t.TempDir(), "iltransform.toml"),
		"[cache]\nenabled = true\ndir = \""+filepath.ToSlash(cacheDir)+"\"\n")

	exec := func(args ...string) string {
		out := filepath.Join(t.TempDir(), "out.json")
		app := newApp()
		app.Writer = &bytes.Buffer{}
		argv := append([]string{"iltransform", "-c", cfgPath, "--force", "-f", "json", "-o", out}, args...)
		require.NoError(t, app.Run(argv))
		data, err := os.ReadFile(out)
		if os.IsNotExist(err) {
			return ""
		}
		require.NoError(t, err)
		return string(data)
	}

	exec("rewrite", root)
	var stats struct {
		Entries int `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(exec("cache", "stats")), &stats))
	assert.Equal(t, 2, stats.Entries)

	exec("cache", "clear")
	_, err := os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(err))
}

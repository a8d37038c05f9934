// Package wrapper generates aggregate test projects that call the entry
// points of many tests from one executable, one set per build flavor.
package wrapper

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"text/template"

	"github.com/panbanda/iltransform/pkg/models"
	"go.uber.org/zap"
)

// DefaultMaxProjects is the number of tests per wrapper when none is set.
const DefaultMaxProjects = 100

var sourceTemplate = template.Must(template.New("source").Parse(
	`{{range .Tests}}{{if .ClassName}}extern alias {{.Alias}};
{{end}}{{end}}
using System;

public static class {{.Class}}
{
    private static int s_passed = 0;
    private static int s_noClass = 0;
    private static int s_exitCode = 0;
    private static int s_crashed = 0;
    private static int s_total = 0;

    public static int Main(string[] args)
    {
{{- range .Tests}}
{{- if .ClassName}}
        TryTest("{{.Name}}", {{.Alias}}::{{.ClassName}}.TestEntryPoint, args);
{{- else}}
        Console.WriteLine("Skipping test: '{{.Name}}' - no class name");
        s_total++;
        s_noClass++;
{{- end}}
{{- end}}
        Console.WriteLine("Total tests: {0}; {1} passed; {2} missing class name; {3} returned wrong exit code; {4} crashed", s_total, s_passed, s_noClass, s_exitCode, s_crashed);
        return s_crashed != 0 ? 1 : s_exitCode != 0 ? 2 : 100;
    }

    private static void TryTest(string testName, Func<string[], int> testFn, string[] args)
    {
        try
        {
            s_total++;
            int exitCode = testFn(args);
            if (exitCode == 100)
            {
                Console.WriteLine("Test succeeded: '{0}'", testName);
                s_passed++;
            }
            else
            {
                Console.Error.WriteLine("Wrong exit code: '{0}' - {1}", testName, exitCode);
                s_exitCode++;
            }
        }
        catch (Exception ex)
        {
            Console.Error.WriteLine("Test crashed: '{0}' - {1}", testName, ex.Message);
            s_crashed++;
        }
    }
}
`))

var projectTemplate = template.Must(template.New("project").Parse(
	`<Project Sdk="Microsoft.NET.Sdk">
    <PropertyGroup>
        <OutputType>Exe</OutputType>
        <CLRTestKind>BuildAndRun</CLRTestKind>
    </PropertyGroup>
    <ItemGroup>
        <Compile Include="{{.Source}}" />
    </ItemGroup>
    <ItemGroup>
{{- range .Tests}}
        <ProjectReference Include="{{.Reference}}" Aliases="{{.Alias}}" />
{{- end}}
{{- range .Dependencies}}
        <ProjectReference Include="{{.}}" />
{{- end}}
    </ItemGroup>
</Project>
`))

// Test is one project called from a wrapper.
type Test struct {
	Name      string // relative descriptor path with forward slashes
	Alias     string
	ClassName string
	Reference string // descriptor path relative to the wrapper directory
}

// Wrapper is one generated source/project pair.
type Wrapper struct {
	Flavor       models.DebugOptimize `json:"flavor" toon:"flavor"`
	Dir          string               `json:"dir" toon:"dir"`
	Class        string               `json:"class" toon:"class"`
	Source       string               `json:"source" toon:"source"`
	Project      string               `json:"project" toon:"project"`
	Tests        []Test               `json:"-" toon:"-"`
	Dependencies []string             `json:"-" toon:"-"`
	Count        int                  `json:"count" toon:"count"`
}

// Generator writes wrappers under an output directory.
type Generator struct {
	outDir      string
	maxProjects int
	logger      *zap.Logger
}

// Option is a functional option for configuring a Generator.
type Option func(*Generator)

// WithMaxProjects sets how many tests one wrapper calls.
func WithMaxProjects(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxProjects = n
		}
	}
}

// WithLogger sets the logger for generation diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Generator writing below outDir.
func New(outDir string, opts ...Option) *Generator {
	g := &Generator{
		outDir:      outDir,
		maxProjects: DefaultMaxProjects,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Plan groups projects by flavor, in flavor order, and splits each group
// into wrappers of at most the configured size. When a flavor needs more
// than one wrapper, each name gets the index of its first test.
func (g *Generator) Plan(projects []*models.Project) ([]Wrapper, error) {
	byFlavor := map[models.DebugOptimize][]*models.Project{}
	for _, p := range projects {
		byFlavor[p.DebugOptimize] = append(byFlavor[p.DebugOptimize], p)
	}
	flavors := make([]models.DebugOptimize, 0, len(byFlavor))
	for f := range byFlavor {
		flavors = append(flavors, f)
	}
	slices.SortFunc(flavors, models.DebugOptimize.Compare)

	var out []Wrapper
	for _, f := range flavors {
		group := byFlavor[f]
		dir := filepath.Join(g.outDir, f.Name())
		for first := 0; first < len(group); first += g.maxProjects {
			base := f.Name()
			if len(group) > g.maxProjects {
				base += fmt.Sprintf("_%d", first)
			}
			w := Wrapper{
				Flavor:  f,
				Dir:     dir,
				Class:   f.Name(),
				Source:  base + ".cs",
				Project: base + ".csproj",
			}
			deps := map[string]bool{}
			for _, p := range group[first:min(len(group), first+g.maxProjects)] {
				ref, err := filepath.Rel(dir, p.CurrentPath())
				if err != nil {
					return nil, err
				}
				w.Tests = append(w.Tests, Test{
					Name:      filepath.ToSlash(p.RelativePath),
					Alias:     p.Alias,
					ClassName: p.Source.MainClassName,
					Reference: ref,
				})
				for _, dep := range p.ProjectReferences {
					if deps[dep] {
						continue
					}
					deps[dep] = true
					rel, err := filepath.Rel(dir, dep)
					if err != nil {
						return nil, err
					}
					w.Dependencies = append(w.Dependencies, rel)
				}
			}
			w.Count = len(w.Tests)
			out = append(out, w)
		}
	}
	return out, nil
}

// Generate plans wrappers for projects and writes them. Each flavor
// directory is emptied of files first.
func (g *Generator) Generate(projects []*models.Project) ([]Wrapper, error) {
	wrappers, err := g.Plan(projects)
	if err != nil {
		return nil, err
	}

	cleaned := map[string]bool{}
	for _, w := range wrappers {
		if !cleaned[w.Dir] {
			if err := clean(w.Dir); err != nil {
				return nil, err
			}
			cleaned[w.Dir] = true
		}
		if err := g.write(w); err != nil {
			return nil, err
		}
		g.logger.Debug("wrote wrapper",
			zap.String("project", filepath.Join(w.Dir, w.Project)), zap.Int("tests", w.Count))
	}
	return wrappers, nil
}

func (g *Generator) write(w Wrapper) error {
	var src, proj bytes.Buffer
	if err := sourceTemplate.Execute(&src, w); err != nil {
		return fmt.Errorf("rendering %s: %w", w.Source, err)
	}
	if err := projectTemplate.Execute(&proj, w); err != nil {
		return fmt.Errorf("rendering %s: %w", w.Project, err)
	}
	return errors.Join(
		os.WriteFile(filepath.Join(w.Dir, w.Source), src.Bytes(), 0o644),
		os.WriteFile(filepath.Join(w.Dir, w.Project), proj.Bytes(), 0o644),
	)
}

// clean creates dir and removes the regular files directly inside it.
func clean(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

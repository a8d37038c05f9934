package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/panbanda/iltransform/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const csProject = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <OutputType>Exe</OutputType>
    <CLRTestPriority>1</CLRTestPriority>
    <!-- comment -->
    <DebugType>Full</DebugType>
    <Optimize>True</Optimize>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="$(MSBuildProjectName).cs" />
    <ProjectReference Include="..\lib\lib.csproj" />
  </ItemGroup>
</Project>
`

const csSource = `using System;

namespace Foo
{
    public class Program
    {
        public static int Main()
        {
            return 100;
        }
    }
}
`

func TestLoadCSProject(t *testing.T) {
	root := t.TempDir()
	path := write(t, filepath.Join(root, "JIT", "foo", "foo_ro.csproj"), csProject)
	write(t, filepath.Join(root, "JIT", "foo", "foo_ro.cs"), csSource)

	p, err := New(WithRoot(root)).Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, p.AbsolutePath)
	assert.Equal(t, filepath.Join("JIT", "foo", "foo_ro.csproj"), p.RelativePath)
	assert.False(t, p.IsIL)
	assert.Equal(t, "Exe", p.OutputType)
	assert.Equal(t, "1", p.Priority)
	assert.Equal(t, "Full", p.Property("DebugType"))
	assert.True(t, p.ItemGroups["Compile"])
	assert.True(t, p.ItemGroups["ProjectReference"])
	assert.True(t, p.CompileFilesIncludeProjectName)
	assert.Equal(t, []string{filepath.Join(root, "JIT", "foo", "foo_ro.cs")}, p.CompileFiles)
	assert.Equal(t, []string{filepath.Join(root, "JIT", "lib", "lib.csproj")}, p.ProjectReferences)

	assert.Equal(t, "Foo", p.Source.MainClassNamespace)
	assert.Equal(t, "Main", p.Source.MainMethodName)
}

func TestLoadILProjectWithInteropCommon(t *testing.T) {
	root := t.TempDir()
	path := write(t, filepath.Join(root, "a", "b.ilproj"), `<Project>
  <PropertyGroup>
    <RequiresProcessIsolation>true</RequiresProcessIsolation>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="$(MSBuildThisFileName).il  $(InteropCommonDir)x.cs" />
  </ItemGroup>
</Project>`)

	p, err := New().Load(path)
	require.NoError(t, err)

	assert.True(t, p.IsIL)
	assert.False(t, p.CompileFilesIncludeProjectName)
	assert.True(t, p.HasRequiresProcessIsolation)
	assert.Equal(t, []string{
		filepath.Join(root, "a", "b.il"),
		filepath.Join(root, "common", "x.cs"),
	}, p.CompileFiles)
}

func TestLoadLogsMissingSources(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	root := t.TempDir()
	path := write(t, filepath.Join(root, "p.ilproj"), `<Project>
  <PropertyGroup><RequiresProcessIsolation>yes</RequiresProcessIsolation></PropertyGroup>
  <ItemGroup><Compile Include="p.il" /><Compile Include="q.txt" /></ItemGroup>
</Project>`)

	p, err := New(WithLogger(zap.New(core))).Load(path)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, 1, logs.FilterMessage("error analyzing source").Len())
	assert.Equal(t, 1, logs.FilterMessage("cannot analyze source file").Len())
	assert.Equal(t, 1, logs.FilterMessage("unexpected RequiresProcessIsolation value").Len())
	assert.Equal(t, 1, logs.FilterMessage("IL project does not compile exactly one file").Len())
}

func TestLoadErrors(t *testing.T) {
	root := t.TempDir()
	ld := New()

	_, err := ld.Load(write(t, filepath.Join(root, "x.txt"), "<Project/>"))
	assert.ErrorIs(t, err, ErrNotProject)

	_, err = ld.Load(write(t, filepath.Join(root, "x.csproj"), "<Other/>"))
	assert.ErrorIs(t, err, ErrNotProject)

	_, err = ld.Load(write(t, filepath.Join(root, "y.csproj"), "<Project>"))
	assert.Error(t, err)

	_, err = ld.Load(filepath.Join(root, "missing.csproj"))
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "src", "a.cs"), "")
	write(t, filepath.Join(root, "src", "sub", "b.cs"), "")
	write(t, filepath.Join(root, "src", "sub", "c.il"), "")

	files, err := Expand(filepath.Join(root, "src", "**", "*.cs"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "src", "a.cs"),
		filepath.Join(root, "src", "sub", "b.cs"),
	}, files)

	files, err = Expand(filepath.Join(root, "src", "**"))
	require.NoError(t, err)
	assert.Len(t, files, 3)

	plain := filepath.Join(root, "none.cs")
	files, err = Expand(plain)
	require.NoError(t, err)
	assert.Equal(t, []string{plain}, files)
}

func TestLoadWildcardCompile(t *testing.T) {
	root := t.TempDir()
	path := write(t, filepath.Join(root, "w.csproj"), `<Project>
  <ItemGroup><Compile Include="src/**/*.cs" /></ItemGroup>
</Project>`)
	write(t, filepath.Join(root, "src", "nested", "main.cs"), csSource)

	p, err := New().Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "src", "**", "*.cs")}, p.CompileFiles)
	assert.Equal(t, "Main", p.Source.MainMethodName)
}

func TestSameContent(t *testing.T) {
	root := t.TempDir()
	project := func(name, define string) string {
		return write(t, filepath.Join(root, name, name+".csproj"), `<Project>
  <PropertyGroup><DefineConstants>`+define+`</DefineConstants></PropertyGroup>
  <ItemGroup>
    <Compile Include="$(MSBuildProjectName).cs" />
    <ProjectReference Include="$(TestLibraryProjectPath)" />
  </ItemGroup>
</Project>`)
	}
	a := project("a", "X")
	b := project("b", "X")
	c := project("c", "Y")
	d := project("d", "X")
	write(t, filepath.Join(root, "a", "a.cs"), csSource)
	write(t, filepath.Join(root, "b", "b.cs"), csSource)
	write(t, filepath.Join(root, "c", "c.cs"), csSource)
	write(t, filepath.Join(root, "d", "d.cs"), "class D {}\n")

	ld := New()
	load := func(path string) *models.Project {
		p, err := ld.Load(path)
		require.NoError(t, err)
		return p
	}
	pa, pb, pc, pd := load(a), load(b), load(c), load(d)

	assert.True(t, ld.SameContent(pa, pb))
	assert.False(t, ld.SameContent(pa, pc), "DefineConstants differ")
	assert.False(t, ld.SameContent(pa, pd), "sources differ")

	pa.CompileFiles = nil
	assert.False(t, ld.SameContent(pa, pb), "no compile files")
}

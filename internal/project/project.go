// Package project loads MSBuild test project descriptors (.csproj and
// .ilproj) and the source facts of the files they compile.
package project

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/panbanda/iltransform/internal/facts"
	"github.com/panbanda/iltransform/pkg/models"
	"github.com/panbanda/iltransform/pkg/source"
	"go.uber.org/zap"
)

// ErrNotProject is returned for files that are not MSBuild project
// descriptors.
var ErrNotProject = errors.New("not a project descriptor")

// Include substitutions applied to <Compile Include> values.
const (
	projectNameToken  = "$(MSBuildProjectName)"
	thisFileNameToken = "$(MSBuildThisFileName)"
	interopCommonDir  = "$(InteropCommonDir)"
	testLibraryPath   = "$(TestLibraryProjectPath)"
)

// Loader reads project descriptors.
type Loader struct {
	root     string
	src      source.ContentSource
	analyzer *facts.Analyzer
	logger   *zap.Logger
}

// Option is a functional option for configuring a Loader.
type Option func(*Loader)

// WithLogger sets the logger for descriptor and source diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithRoot sets the directory RelativePath is computed against.
func WithRoot(root string) Option {
	return func(ld *Loader) {
		ld.root = root
	}
}

// WithContentSource sets where descriptors and sources are read from.
func WithContentSource(src source.ContentSource) Option {
	return func(ld *Loader) {
		ld.src = src
	}
}

// New creates a Loader reading from the filesystem.
func New(opts ...Option) *Loader {
	ld := &Loader{
		src:    source.NewFilesystem(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ld)
	}
	ld.analyzer = facts.New(facts.WithLogger(ld.logger), facts.WithContentSource(ld.src))
	return ld
}

// node is a generic XML element. Comments and processing instructions are
// dropped by the decoder.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []node     `xml:",any"`
}

func (n node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// innerText concatenates the character data of n and its descendants.
func (n node) innerText() string {
	if len(n.Nodes) == 0 {
		return n.Text
	}
	var b strings.Builder
	b.WriteString(n.Text)
	for _, c := range n.Nodes {
		b.WriteString(c.innerText())
	}
	return b.String()
}

// descriptor is the raw content of a project file.
type descriptor struct {
	properties        map[string]string
	itemGroups        map[string]bool
	compileFiles      []string
	includesName      bool
	projectReferences []string
}

// Load parses the descriptor at path and analyzes its compile files.
// Failures reading individual sources are logged, not returned.
func (l *Loader) Load(path string) (*models.Project, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csproj", ".ilproj":
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotProject, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := l.src.Read(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	d, err := parse(data, abs)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	info := models.NewSourceInfo()
	for _, file := range d.compileFiles {
		l.analyze(abs, file, &info)
	}

	rel := abs
	if l.root != "" {
		if r, err := filepath.Rel(l.root, abs); err == nil {
			rel = r
		}
	}

	p := models.NewProject(abs, rel, d.properties, d.itemGroups, info)
	p.CompileFiles = d.compileFiles
	p.CompileFilesIncludeProjectName = d.includesName
	p.ProjectReferences = d.projectReferences

	if v, ok := d.properties["RequiresProcessIsolation"]; ok && v != "true" {
		l.logger.Info("unexpected RequiresProcessIsolation value",
			zap.String("path", abs), zap.String("value", v))
	}
	if p.IsIL && len(p.CompileFiles) != 1 {
		l.logger.Info("IL project does not compile exactly one file",
			zap.String("path", abs), zap.Int("files", len(p.CompileFiles)))
	}
	return p, nil
}

// parse reads the PropertyGroup and ItemGroup children of the Project root.
func parse(data []byte, abs string) (*descriptor, error) {
	var root node
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, err
	}
	if root.XMLName.Local != "Project" {
		return nil, fmt.Errorf("%w: root element is <%s>", ErrNotProject, root.XMLName.Local)
	}

	name := stem(abs)
	dir := filepath.Dir(abs)
	d := &descriptor{
		properties: map[string]string{},
		itemGroups: map[string]bool{},
	}

	for _, child := range root.Nodes {
		switch child.XMLName.Local {
		case "PropertyGroup":
			for _, prop := range child.Nodes {
				d.properties[prop.XMLName.Local] = prop.innerText()
			}
		case "ItemGroup":
			for _, item := range child.Nodes {
				d.itemGroups[item.XMLName.Local] = true
				include, ok := item.attr("Include")
				if !ok {
					continue
				}
				switch item.XMLName.Local {
				case "Compile":
					for _, file := range strings.Split(include, " ") {
						if file == "" {
							continue
						}
						if strings.Contains(file, projectNameToken) {
							d.includesName = true
						}
						file = strings.ReplaceAll(file, projectNameToken, name)
						file = strings.ReplaceAll(file, thisFileNameToken, name)
						file = strings.ReplaceAll(file, interopCommonDir, "../common/")
						d.compileFiles = append(d.compileFiles, resolve(dir, file))
					}
				case "ProjectReference":
					d.projectReferences = append(d.projectReferences, resolve(dir, include))
				}
			}
		}
	}
	return d, nil
}

// resolve makes an MSBuild path absolute against dir. Backslashes are
// treated as separators.
func resolve(dir, path string) string {
	path = filepath.FromSlash(strings.ReplaceAll(path, `\`, "/"))
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}

// IsWildcard reports whether a compile item names a file pattern.
func IsWildcard(path string) bool {
	return strings.ContainsAny(path, "*?")
}

// Expand returns the files a compile item refers to. A plain path is
// returned as is; a pattern is matched with doublestar semantics, so
// "dir/**/*.cs" searches all subdirectories and a final "**" matches every
// file below its directory.
func Expand(path string) ([]string, error) {
	if !IsWildcard(path) {
		return []string{path}, nil
	}
	matches, err := doublestar.FilepathGlob(path, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (l *Loader) analyze(projectPath, file string, info *models.SourceInfo) {
	files, err := Expand(file)
	if err != nil {
		l.logger.Warn("invalid compile pattern",
			zap.String("project", projectPath), zap.String("pattern", file), zap.Error(err))
		return
	}
	for _, f := range files {
		err := l.analyzer.AnalyzeFile(f, info)
		switch {
		case err == nil:
		case errors.Is(err, facts.ErrUnsupportedSource):
			l.logger.Warn("cannot analyze source file",
				zap.String("project", projectPath), zap.String("file", f))
		default:
			l.logger.Warn("error analyzing source",
				zap.String("project", projectPath), zap.String("file", f), zap.Error(err))
		}
	}
}

// SameContent reports whether two projects compile identical sources with
// identical references and DefineConstants. References through
// $(TestLibraryProjectPath) always match.
func (l *Loader) SameContent(a, b *models.Project) bool {
	if len(a.CompileFiles) == 0 || len(b.CompileFiles) == 0 {
		return false
	}
	if len(a.ProjectReferences) != len(b.ProjectReferences) || len(a.CompileFiles) != len(b.CompileFiles) {
		return false
	}
	for i, ref1 := range a.ProjectReferences {
		ref2 := b.ProjectReferences[i]
		if ref1 == ref2 || strings.Contains(ref1, testLibraryPath) || strings.Contains(ref2, testLibraryPath) {
			continue
		}
		if !l.sameFile(a, ref1, ref2) {
			return false
		}
	}
	for i, file1 := range a.CompileFiles {
		if file1 != b.CompileFiles[i] && !l.sameFile(a, file1, b.CompileFiles[i]) {
			return false
		}
	}
	return a.Property("DefineConstants") == b.Property("DefineConstants")
}

func (l *Loader) sameFile(p *models.Project, path1, path2 string) bool {
	data1, err1 := l.src.Read(path1)
	data2, err2 := l.src.Read(path2)
	if err := errors.Join(err1, err2); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("error comparing files",
				zap.String("project", p.AbsolutePath), zap.String("a", path1), zap.String("b", path2), zap.Error(err))
		}
		return false
	}
	return bytes.Equal(data1, data2)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SourceInfo holds the facts extracted from a project's compile files.
// Line numbers are zero-based and refer to MainClassSourceFile; -1 means
// the fact was not found.
type SourceInfo struct {
	TypeNames                []string `json:"type_names,omitempty" toon:"type_names"`
	MainClassName            string   `json:"main_class_name,omitempty" toon:"main_class_name"`
	MainClassBases           []string `json:"main_class_bases,omitempty" toon:"main_class_bases"`
	MainClassNamespace       string   `json:"main_class_namespace,omitempty" toon:"main_class_namespace"`
	MainClassSourceFile      string   `json:"main_class_source_file,omitempty" toon:"main_class_source_file"`
	MainClassLine            int      `json:"main_class_line" toon:"main_class_line"`
	MainMethodName           string   `json:"main_method_name,omitempty" toon:"main_method_name"`
	FirstMainMethodDefLine   int      `json:"first_main_method_def_line" toon:"first_main_method_def_line"`
	MainTokenMethodLine      int      `json:"main_token_method_line" toon:"main_token_method_line"`
	LastMainMethodDefLine    int      `json:"last_main_method_def_line" toon:"last_main_method_def_line"`
	LastMainMethodBodyLine   int      `json:"last_main_method_body_line" toon:"last_main_method_body_line"`
	LastMainMethodBodyColumn int      `json:"last_main_method_body_column" toon:"last_main_method_body_column"`
	// LastHeaderCommentLine includes one trailing blank line when present.
	LastHeaderCommentLine int  `json:"last_header_comment_line" toon:"last_header_comment_line"`
	LastUsingLine         int  `json:"last_using_line" toon:"last_using_line"`
	NamespaceLine         int  `json:"namespace_line" toon:"namespace_line"`
	NamespaceIdentLine    int  `json:"namespace_ident_line" toon:"namespace_ident_line"`
	HasFactAttribute      bool `json:"has_fact_attribute" toon:"has_fact_attribute"`
	HasExit               bool `json:"has_exit" toon:"has_exit"`
}

// NewSourceInfo returns a SourceInfo with every line marker unset.
func NewSourceInfo() SourceInfo {
	return SourceInfo{
		MainClassLine:            -1,
		FirstMainMethodDefLine:   -1,
		MainTokenMethodLine:      -1,
		LastMainMethodDefLine:    -1,
		LastMainMethodBodyLine:   -1,
		LastMainMethodBodyColumn: -1,
		LastHeaderCommentLine:    -1,
		LastUsingLine:            -1,
		NamespaceLine:            -1,
		NamespaceIdentLine:       -1,
	}
}

// SimpleClassName returns MainClassName without its namespace qualification.
func (s SourceInfo) SimpleClassName() string {
	if i := strings.LastIndexByte(s.MainClassName, '.'); i >= 0 {
		return s.MainClassName[i+1:]
	}
	return s.MainClassName
}

// DebugOptimize is the (DebugType, Optimize) build flavor of a project.
type DebugOptimize struct {
	Debug    string `json:"debug" toon:"debug"`
	Optimize string `json:"optimize" toon:"optimize"`
}

// NewDebugOptimize normalizes the raw DebugType and Optimize property values.
// An empty Optimize means "False".
func NewDebugOptimize(debugType, optimize string) DebugOptimize {
	optimize = initCaps(optimize)
	if optimize == "" {
		optimize = "False"
	}
	return DebugOptimize{Debug: initCaps(debugType), Optimize: optimize}
}

func initCaps(s string) string {
	if strings.EqualFold(s, "pdbonly") {
		return "PdbOnly"
	}
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Name is the identifier used for wrapper classes and directories.
func (d DebugOptimize) Name() string {
	return "Dbg" + d.Debug + "_Opt" + d.Optimize
}

// String implements fmt.Stringer.
func (d DebugOptimize) String() string {
	return fmt.Sprintf("DbgOpt (%s | %s)", d.Debug, d.Optimize)
}

// Compare orders flavors by Debug, then Optimize.
func (d DebugOptimize) Compare(other DebugOptimize) int {
	if c := strings.Compare(d.Debug, other.Debug); c != 0 {
		return c
	}
	return strings.Compare(d.Optimize, other.Optimize)
}

// Properties whose presence forces a test to run in its own process.
var RequiresProcessIsolationProperties = []string{
	"CLRTestTargetUnsupported",
	"GCStressIncompatible",
	"UnloadabilityIncompatible",
	"JitOptimizationSensitive",
	"TieringTestIncompatible",
	"HeapVerifyIncompatible",
	"IlasmRoundTripIncompatible",
	"SynthesizedPgoIncompatible",
	"CrossGenTest",
}

// Item groups whose presence forces a test to run in its own process.
var RequiresProcessIsolationItemGroups = []string{
	"CLRTestBashEnvironmentVariable",
	"CLRTestBatchEnvironmentVariable",
	"CLRTestEnvironmentVariable",
	"Content",
	"CMakeProjectReference",
}

// Project is a test project descriptor (.csproj or .ilproj) together with the
// facts extracted from its sources and the renames planned for it.
type Project struct {
	AbsolutePath string `json:"absolute_path" toon:"absolute_path"`
	RelativePath string `json:"relative_path" toon:"relative_path"`

	Properties map[string]string `json:"-" toon:"-"`
	ItemGroups map[string]bool   `json:"-" toon:"-"`

	OutputType string `json:"output_type,omitempty" toon:"output_type"`
	TestKind   string `json:"test_kind,omitempty" toon:"test_kind"`
	Priority   string `json:"priority,omitempty" toon:"priority"`

	CompileFiles                   []string `json:"compile_files" toon:"compile_files"`
	CompileFilesIncludeProjectName bool     `json:"compile_files_include_project_name" toon:"compile_files_include_project_name"`
	ProjectReferences              []string `json:"project_references,omitempty" toon:"project_references"`

	Source        SourceInfo    `json:"source" toon:"source"`
	DebugOptimize DebugOptimize `json:"debug_optimize" toon:"debug_optimize"`
	IsIL          bool          `json:"is_il" toon:"is_il"`

	HasRequiresProcessIsolation     bool     `json:"has_requires_process_isolation" toon:"has_requires_process_isolation"`
	RequiresProcessIsolationReasons []string `json:"requires_process_isolation_reasons,omitempty" toon:"requires_process_isolation_reasons"`

	// Set while planning a run.
	Alias                 string `json:"alias,omitempty" toon:"alias"`
	DeduplicatedNamespace string `json:"deduplicated_namespace,omitempty" toon:"deduplicated_namespace"`
	DeduplicatedClassName string `json:"deduplicated_class_name,omitempty" toon:"deduplicated_class_name"`
	NewAbsolutePath       string `json:"new_absolute_path,omitempty" toon:"new_absolute_path"`
	NewSourceFile         string `json:"new_source_file,omitempty" toon:"new_source_file"`
}

// NewProject builds a Project and derives the property-based facts.
func NewProject(absolutePath, relativePath string, properties map[string]string, itemGroups map[string]bool, source SourceInfo) *Project {
	if properties == nil {
		properties = map[string]string{}
	}
	if itemGroups == nil {
		itemGroups = map[string]bool{}
	}
	p := &Project{
		AbsolutePath: absolutePath,
		RelativePath: relativePath,
		Properties:   properties,
		ItemGroups:   itemGroups,
		Source:       source,
		IsIL:         strings.EqualFold(filepath.Ext(relativePath), ".ilproj"),
	}
	p.OutputType = p.Property("OutputType")
	p.TestKind = p.Property("CLRTestKind")
	p.Priority = p.Property("CLRTestPriority")
	p.DebugOptimize = NewDebugOptimize(p.Property("DebugType"), p.Property("Optimize"))
	p.HasRequiresProcessIsolation = p.Property("RequiresProcessIsolation") == "true"

	for _, name := range RequiresProcessIsolationProperties {
		if _, ok := properties[name]; ok {
			p.RequiresProcessIsolationReasons = append(p.RequiresProcessIsolationReasons, name)
		}
	}
	for _, name := range RequiresProcessIsolationItemGroups {
		if itemGroups[name] {
			p.RequiresProcessIsolationReasons = append(p.RequiresProcessIsolationReasons, name)
		}
	}
	if source.HasExit {
		p.RequiresProcessIsolationReasons = append(p.RequiresProcessIsolationReasons, "Environment.Exit")
	}
	return p
}

// Property returns a descriptor property or "" when unset.
func (p *Project) Property(name string) string {
	return p.Properties[name]
}

// NeedsProcessIsolation reports whether any isolation reason applies.
func (p *Project) NeedsProcessIsolation() bool {
	return len(p.RequiresProcessIsolationReasons) > 0
}

// Name is the descriptor file name without extension.
func (p *Project) Name() string {
	return stem(p.RelativePath)
}

// CurrentPath is the descriptor path after any planned rename.
func (p *Project) CurrentPath() string {
	if p.NewAbsolutePath != "" {
		return p.NewAbsolutePath
	}
	return p.AbsolutePath
}

// MainSourceFile is the source holding the main declaration, after any
// planned rename.
func (p *Project) MainSourceFile() string {
	if p.NewSourceFile != "" {
		return p.NewSourceFile
	}
	return p.Source.MainClassSourceFile
}

// Split returns the key, root and suffix of the descriptor name.
func (p *Project) Split() (key, root, suffix string) {
	return SplitProjectName(p.RelativePath)
}

// ProjectsByPath orders projects by absolute path.
func ProjectsByPath(a, b *Project) int {
	return strings.Compare(a.AbsolutePath, b.AbsolutePath)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

package rewrite

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/panbanda/iltransform/internal/facts"
	"github.com/panbanda/iltransform/pkg/classify"
	"github.com/panbanda/iltransform/pkg/lexer"
	"github.com/panbanda/iltransform/pkg/models"
	"go.uber.org/zap"
)

// Settings selects the passes applied by RewriteFile and RewriteProject.
type Settings struct {
	AddFactAttributes     bool
	AddProcessIsolation   bool
	CleanupILModule       bool
	CleanupILAssembly     bool
	UncategorizedCleanup  bool
	DeduplicateClassNames bool
}

var (
	xunitExternLine = ".assembly extern xunit.core {}"

	ilFactLines = []string{
		".custom instance void [xunit.core]Xunit.FactAttribute::.ctor() = (",
		"    01 00 00 00",
		")",
	}

	csFactLines = []string{"[Fact]"}
)

// FileTarget is the source file holding a project's main declaration.
type FileTarget struct {
	Path   string
	Source models.SourceInfo
	// Namespace is the deduplicated namespace, or "" to leave it alone.
	Namespace string
	// ClassName is the deduplicated main class name, or "" to leave it alone.
	ClassName string
}

// FileResult is the outcome of RewriteFile.
type FileResult struct {
	Lines     []string
	Changed   bool
	AddedFact bool
}

// RewriteFile applies the enabled passes to the lines of target. The line
// numbers in target.Source refer to lines as passed in; passes that insert or
// remove lines keep them valid for the passes that follow.
func (r *Rewriter) RewriteFile(lines []string, target FileTarget, settings Settings) FileResult {
	f := &fileEdit{
		r:     r,
		t:     target,
		s:     settings,
		il:    r.lang == lexer.LangIL,
		lines: slices.Clone(lines),
	}

	f.mainMethod()
	f.mainClass()
	if !settings.DeduplicateClassNames {
		if f.il {
			f.xunitReference()
		}
		f.namespace()
		f.usingXunit()
	}
	if settings.CleanupILModule && f.il {
		f.removeModule()
	}
	if settings.CleanupILAssembly && f.il {
		f.normalizeAssembly()
	}
	f.renameClass()

	return FileResult{
		Lines:     f.lines,
		Changed:   !slices.Equal(lines, f.lines),
		AddedFact: f.addedFact,
	}
}

// shift records an insertion (delta > 0) or removal (delta < 0) at a line
// index of the buffer as it was when the edit happened.
type shift struct {
	at    int
	delta int
}

type fileEdit struct {
	r         *Rewriter
	t         FileTarget
	s         Settings
	il        bool
	lines     []string
	shifts    []shift
	addedFact bool
}

// pos maps a line number recorded during fact extraction to its index in
// the edited buffer. Lines that were removed map to the removal point.
func (f *fileEdit) pos(line int) int {
	if line < 0 {
		return line
	}
	for _, s := range f.shifts {
		switch {
		case s.delta > 0 && line >= s.at:
			line += s.delta
		case s.delta < 0 && line >= s.at-s.delta:
			line += s.delta
		case s.delta < 0 && line >= s.at:
			line = s.at
		}
	}
	return line
}

func (f *fileEdit) valid(i int) bool {
	return i >= 0 && i < len(f.lines)
}

func (f *fileEdit) insert(at int, add []string, model string) {
	f.lines, _ = InsertIndented(f.lines, at, add, model)
	f.shifts = append(f.shifts, shift{at: at, delta: len(add)})
}

func (f *fileEdit) insertRaw(at int, add ...string) {
	f.insert(at, add, "")
}

func (f *fileEdit) remove(at, n int) {
	f.lines = slices.Delete(f.lines, at, at+n)
	f.shifts = append(f.shifts, shift{at: at, delta: -n})
}

func (f *fileEdit) warn(msg string, fields ...zap.Field) {
	f.r.logger.Warn(msg, append([]zap.Field{zap.String("path", f.t.Path)}, fields...)...)
}

func (f *fileEdit) mainMethod() {
	src := f.t.Source
	if src.MainMethodName == "" || src.LastMainMethodDefLine < 0 {
		return
	}

	body := -1
	for i := f.pos(src.LastMainMethodDefLine); f.valid(i); i++ {
		if strings.Contains(f.lines[i], "{") || (!f.il && strings.Contains(f.lines[i], "=>")) {
			body = i
			break
		}
	}
	if body < 0 {
		f.warn("opening brace for main method not found")
	}

	if body >= 0 && f.s.AddFactAttributes && !src.HasFactAttribute {
		f.addFact(body)
	}

	if f.s.UncategorizedCleanup {
		f.publicMain()
		f.publicBases()
	}
}

func (f *fileEdit) addFact(body int) {
	src := f.t.Source
	if f.il {
		model := f.lines[body]
		if f.valid(body + 1) {
			model = f.lines[body+1]
		}
		f.insert(body+1, ilFactLines, model)
		f.addedFact = true
		return
	}

	if tok := f.pos(src.MainTokenMethodLine); f.valid(tok) {
		f.lines[tok] = f.r.ReplaceIdent(f.lines[tok], "Main", "TestEntryPoint", classify.IdentOther)
	}
	at := f.pos(src.FirstMainMethodDefLine)
	if !f.valid(at) {
		at = f.pos(src.LastMainMethodDefLine)
	}
	f.insert(at, csFactLines, f.lines[at])
	f.addedFact = true
}

func (f *fileEdit) publicMain() {
	at := f.pos(f.t.Source.FirstMainMethodDefLine)
	if !f.valid(at) {
		return
	}
	if f.il && !strings.Contains(f.lines[at], ".method") {
		f.warn("main method line has no .method directive", zap.Int("line", at))
	}
	f.lines[at], _ = MakePublic(f.lines[at], f.r.lang, true)
}

func (f *fileEdit) publicBases() {
	classLine := f.pos(f.t.Source.MainClassLine)
	for _, base := range f.t.Source.MainClassBases {
		for i, line := range f.lines {
			if i == classLine {
				continue
			}
			if (strings.Contains(line, "class") || strings.Contains(line, "struct")) && strings.Contains(line, base) {
				f.lines[i], _ = MakePublic(line, f.r.lang, true)
				break
			}
		}
	}
}

// mainClass makes the main class public. IL files whose entry point lives
// outside any class get a synthetic class around it.
func (f *fileEdit) mainClass() {
	if !f.s.UncategorizedCleanup {
		return
	}
	src := f.t.Source
	if src.MainClassLine >= 0 {
		if at := f.pos(src.MainClassLine); f.valid(at) {
			f.lines[at], _ = MakePublic(f.lines[at], f.r.lang, true)
		}
		return
	}
	if !f.il || src.FirstMainMethodDefLine < 0 {
		return
	}
	name := SanitizeIdentifier("Test_"+stem(f.t.Path), lexer.LangIL)
	at := f.pos(src.FirstMainMethodDefLine)
	f.insertRaw(at, fmt.Sprintf(".class public auto ansi %s extends [mscorlib] System.Object {", name))
	f.lines = append(f.lines, "}")
}

// xunitReference collapses a multi-line xunit.core extern into one line and,
// when a fact attribute was just added, inserts the extern after the first
// .assembly block.
func (f *fileEdit) xunitReference() {
	hasRef := false
	for i, line := range f.lines {
		if !strings.HasPrefix(line, ".assembly extern xunit.core") {
			continue
		}
		hasRef = true
		if strings.Contains(line, "}") {
			break
		}
		end := i + 1
		for f.valid(end) && !strings.Contains(f.lines[end], "}") {
			end++
		}
		if !f.valid(end) {
			f.warn("unterminated xunit.core extern")
			break
		}
		f.remove(i+1, end-i)
		f.lines[i] = xunitExternLine
		break
	}

	if !f.addedFact || hasRef {
		return
	}
	for i, line := range f.lines {
		if !strings.HasPrefix(line, ".assembly") {
			continue
		}
		for f.valid(i) && !strings.Contains(f.lines[i], "}") {
			i++
		}
		if f.valid(i) {
			f.insertRaw(i+1, xunitExternLine)
		}
		return
	}
}

func (f *fileEdit) namespace() {
	ns := f.t.Namespace
	if !f.s.UncategorizedCleanup || ns == "" {
		return
	}
	src := f.t.Source

	if src.MainClassNamespace == "" {
		at := f.pos(src.NamespaceLine)
		if at < 0 || at > len(f.lines) {
			f.warn("no line to insert namespace at", zap.String("namespace", ns))
			return
		}
		decl := "namespace " + ns
		if f.il {
			decl = "." + decl
		}
		f.insertRaw(at, decl, "{")
		f.lines = append(f.lines, "}")
		if f.il {
			f.qualifyClasses(at, ns)
		}
		return
	}

	at := f.pos(src.NamespaceLine)
	if !f.valid(at) {
		return
	}
	if !f.il {
		f.lines[at] = ReplaceIdentifier(f.lines[at], src.MainClassNamespace, ns, f.r.lang)
		return
	}
	for i := at; i < len(f.lines); i++ {
		f.lines[i] = f.r.ReplaceIdent(f.lines[i], src.MainClassNamespace, ns, classify.IdentNamespace)
	}
}

// qualifyClasses rewrites uses of every top-level class declared after from
// to the namespace-qualified name.
func (f *fileEdit) qualifyClasses(from int, ns string) {
	for i := from; i < len(f.lines); i++ {
		if !strings.Contains(f.lines[i], ".class") {
			continue
		}
		name, ok := facts.ILTypeName(f.lines, i)
		if !ok {
			continue
		}
		qualified := ns + "." + name
		for j := from; j < len(f.lines); j++ {
			if j != i {
				f.lines[j] = f.r.ReplaceIdent(f.lines[j], name, qualified, classify.IdentTypeUse)
			}
		}
	}
}

func (f *fileEdit) usingXunit() {
	if !f.s.UncategorizedCleanup || f.il {
		return
	}
	for _, line := range f.lines {
		if strings.TrimSpace(line) == "using Xunit;" {
			return
		}
	}
	src := f.t.Source
	at := 0
	switch {
	case src.LastUsingLine >= 0:
		at = f.pos(src.LastUsingLine) + 1
	case src.LastHeaderCommentLine >= 0:
		at = f.pos(src.LastHeaderCommentLine) + 1
	}
	if at > len(f.lines) {
		at = len(f.lines)
	}
	f.insertRaw(at, "using Xunit;")
}

func (f *fileEdit) removeModule() {
	for i := len(f.lines) - 1; i >= 0; i-- {
		if strings.Contains(f.lines[i], ".module") {
			f.remove(i, 1)
		}
	}
}

// normalizeAssembly renames every .assembly declaration to the quoted source
// file stem. A trailing `// as "name"` remark naming the old assembly is
// dropped.
func (f *fileEdit) normalizeAssembly() {
	want := stem(f.t.Path)
	for i, line := range f.lines {
		start, end, name, ok := assemblyName(line)
		if !ok || name == want {
			continue
		}
		rest := line[end:]
		asRe := regexp.MustCompile(`\s*//\s*as\s+(?:"` + regexp.QuoteMeta(name) + `"|` + regexp.QuoteMeta(name) + `)\s*$`)
		if loc := asRe.FindStringIndex(rest); loc != nil {
			rest = rest[:loc[0]]
		}
		f.lines[i] = line[:start] + "'" + want + "'" + rest
	}
}

// assemblyName locates the name of a `.assembly` declaration, skipping
// block comments and the legacy/library modifiers. extern references are
// not declarations.
func assemblyName(line string) (start, end int, name string, ok bool) {
	idx := strings.Index(line, ".assembly")
	if idx < 0 {
		return 0, 0, "", false
	}
	i := idx + len(".assembly")
	if i < len(line) && lexer.IsIdentChar(rune(line[i]), lexer.LangIL) {
		return 0, 0, "", false
	}
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t':
			i++
			continue
		case strings.HasPrefix(line[i:], "/*"):
			j := strings.Index(line[i+2:], "*/")
			if j < 0 {
				return 0, 0, "", false
			}
			i += j + 4
			continue
		case c == '\'':
			j := strings.IndexByte(line[i+1:], '\'')
			if j < 0 {
				return i, len(line), line[i+1:], true
			}
			return i, i + j + 2, line[i+1 : i+1+j], true
		}

		j := i
		for j < len(line) {
			r := rune(line[j])
			if r >= 0x80 || !lexer.IsIdentChar(r, lexer.LangIL) {
				break
			}
			j++
		}
		word := line[i:j]
		switch word {
		case "extern":
			return 0, 0, "", false
		case "legacy", "library":
			i = j
			continue
		}
		return i, j, word, true
	}
	return 0, 0, "", false
}

func (f *fileEdit) renameClass() {
	if f.t.ClassName == "" {
		return
	}
	old := f.t.Source.SimpleClassName()
	if old == "" || old == f.t.ClassName {
		return
	}
	for i := range f.lines {
		f.lines[i] = f.r.ReplaceIdent(f.lines[i], old, f.t.ClassName, classify.IdentOther)
	}
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

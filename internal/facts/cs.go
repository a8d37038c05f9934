package facts

import (
	"slices"
	"strings"

	"github.com/panbanda/iltransform/pkg/lexer"
	"github.com/panbanda/iltransform/pkg/models"
	"go.uber.org/zap"
)

var (
	csEntryPoints = []struct{ method, sig string }{
		{"Main", "int Main()"},
		{"Main", "void Main()"},
		{"TestEntryPoint", "int TestEntryPoint()"},
		{"TestEntryPoint", "void TestEntryPoint()"},
	}

	csMethodModifiers = []string{"public", "private", "internal", "unsafe", "static"}
)

func isCSIdentByte(c byte) bool {
	return c >= 0x80 || lexer.IsIdentChar(rune(c), lexer.LangCSharp)
}

// CSNamespaceName returns the (possibly dotted) name declared by a
// `namespace` line.
func CSNamespaceName(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "namespace ")
	if !ok {
		return "", false
	}
	rest = strings.TrimLeft(rest, " \t")
	end := 0
	for end < len(rest) && (isCSIdentByte(rest[end]) || rest[end] == '.') {
		end++
	}
	return rest[:end], end > 0
}

// CSTypeName returns the name declared by a class or struct line and the
// column just past it. Generic constraints such as `where T : class` and
// keywords inside line comments are not declarations.
func CSTypeName(line string) (name string, end int, ok bool) {
	code := line
	if i := strings.Index(code, "//"); i >= 0 {
		code = code[:i]
	}
	kw := strings.Index(code, "class ")
	if kw < 0 {
		kw = strings.Index(code, "struct ")
	}
	if kw < 0 {
		return "", -1, false
	}
	if kw > 0 {
		before := kw - 1
		prev := reverseSkipSpace(line, before)
		if prev == before || (prev >= 0 && line[prev] == ':') {
			return "", -1, false
		}
	}

	start := skipSpace(line, strings.IndexByte(line[kw:], ' ')+kw+1)
	end = start
	for end < len(line) && isCSIdentByte(line[end]) {
		end++
	}
	if end == start {
		return "", -1, false
	}
	return line[start:end], end, true
}

// csBases lists the base type names following the declaration ending at col.
// Generic arguments are dropped.
func csBases(line string, col int) []string {
	col = skipSpace(line, col)
	if col >= len(line) || line[col] != ':' {
		return nil
	}
	col++
	var bases []string
	for col < len(line) && line[col] != '{' {
		c := line[col]
		if c == ' ' || c == '\t' || c == ',' {
			col++
			continue
		}
		start := col
		for col < len(line) && isCSIdentByte(line[col]) {
			col++
		}
		if col > start {
			bases = append(bases, line[start:col])
		}
		if col < len(line) && line[col] == '<' {
			depth := 1
			for col++; col < len(line) && depth > 0; col++ {
				switch line[col] {
				case '<':
					depth++
				case '>':
					depth--
				}
			}
			continue
		}
		if col == start {
			col++
		}
	}
	return bases
}

// AnalyzeCS records the type names, entry point, main class and the header,
// using and namespace lines of a C# file.
func (a *Analyzer) AnalyzeCS(path string, lines []string, info *models.SourceInfo) {
	if slices.ContainsFunc(lines, func(l string) bool { return strings.Contains(l, "Environment.Exit") }) {
		info.HasExit = true
	}

	namespace := ""
	for _, line := range lines {
		if ns, ok := CSNamespaceName(line); ok {
			if namespace != "" {
				a.logger.Debug("nested namespaces", zap.String("path", path))
				ns = namespace + "." + ns
			}
			namespace = ns
			continue
		}
		if name, _, ok := CSTypeName(line); ok {
			if namespace != "" {
				name = namespace + "." + name
			}
			info.TypeNames = append(info.TypeNames, name)
		}
	}

	isMainFile := false
	if slices.ContainsFunc(lines, func(l string) bool {
		return strings.Contains(l, "[Fact]") || strings.Contains(l, "[ConditionalFact]")
	}) {
		info.HasFactAttribute = true
		isMainFile = true
	}

	if a.csEntryPoint(path, lines, info) {
		isMainFile = true
	}
	if isMainFile {
		csLayout(lines, info)
	}
}

func (a *Analyzer) csEntryPoint(path string, lines []string, info *models.SourceInfo) bool {
	for mainLine := len(lines) - 1; mainLine >= 0; mainLine-- {
		line := lines[mainLine]
		method, col := "", -1
		for _, ep := range csEntryPoints {
			if i := strings.Index(line, ep.sig); i >= 0 {
				method, col = ep.method, i
				break
			}
		}
		if col < 0 {
			continue
		}

		first, _, ok := csMethodStart(lines, mainLine, col)
		if !ok {
			a.logger.Warn("unexpected text before entry point declaration",
				zap.String("path", path),
				zap.Int("line", first),
				zap.String("text", lines[first]))
			continue
		}

		info.MainMethodName = method
		info.FirstMainMethodDefLine = first
		info.MainTokenMethodLine = mainLine
		info.LastMainMethodDefLine = mainLine
		info.MainClassSourceFile = path

		csMainClass(lines, mainLine, info)
		return true
	}
	return false
}

// csMethodStart walks back from the return type over method modifiers,
// possibly across lines, and reports where the declaration begins. ok is
// false when anything other than whitespace precedes it on that line.
func csMethodStart(lines []string, ln, col int) (int, int, bool) {
	sl, sc := reverseSkipLines(lines, ln, col-1)
	for found := true; found && sl >= 0; {
		found = false
		for _, mod := range csMethodModifiers {
			text := lines[sl][:sc+1]
			if !strings.HasSuffix(text, mod) {
				continue
			}
			start := len(text) - len(mod)
			if start > 0 && isCSIdentByte(text[start-1]) {
				continue
			}
			found = true
			ln, col = sl, start
			sl, sc = reverseSkipLines(lines, ln, col-1)
			break
		}
	}
	return ln, col, reverseSkipSpace(lines[ln], col-1) < 0
}

// reverseSkipLines moves back from (ln, col) to the previous non-blank byte,
// continuing onto earlier lines. It returns a negative line when none exists.
func reverseSkipLines(lines []string, ln, col int) (int, int) {
	for ln >= 0 {
		if col = reverseSkipSpace(lines[ln], col); col >= 0 {
			return ln, col
		}
		ln--
		if ln >= 0 {
			col = len(lines[ln]) - 1
		}
	}
	return -1, -1
}

// csMainClass finds the type enclosing the entry point declared on mainLine:
// the nearest declaration at or above the first less indented line that opens
// a brace. Enclosing namespaces qualify the name.
func csMainClass(lines []string, mainLine int, info *models.SourceInfo) {
	indent := skipSpace(lines[mainLine], 0)
	ln := mainLine - 1
	for ; ln >= 0; ln-- {
		if skipSpace(lines[ln], 0) < indent && strings.Contains(lines[ln], "{") {
			break
		}
	}
	for ; ln >= 0; ln-- {
		name, end, ok := CSTypeName(lines[ln])
		if !ok {
			continue
		}
		info.MainClassName = name
		info.MainClassLine = ln
		info.MainClassBases = csBases(lines[ln], end)
		for ln--; ln >= 0; ln-- {
			if ns, ok := CSNamespaceName(lines[ln]); ok {
				info.MainClassName = ns + "." + info.MainClassName
			}
		}
		return
	}
}

// csLayout records the header comment block, the last using directive and
// the first code line, which is where a namespace goes.
func csLayout(lines []string, info *models.SourceInfo) {
	info.LastHeaderCommentLine = -1
	i := 0
	for ; i < len(lines); i++ {
		if !strings.HasPrefix(strings.TrimLeft(lines[i], " \t"), "//") {
			break
		}
		info.LastHeaderCommentLine = i
	}
	if i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		info.LastHeaderCommentLine = i
	}

	info.LastUsingLine = -1
	for i, line := range lines {
		if strings.HasPrefix(line, "using") {
			info.LastUsingLine = i
		}
	}

	for i := info.LastUsingLine + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		info.NamespaceLine = i
		if ns, ok := CSNamespaceName(line); ok {
			info.NamespaceIdentLine = i
			info.MainClassNamespace = ns
		}
		break
	}
}

package facts

import (
	"regexp"
	"slices"
	"strings"

	"github.com/panbanda/iltransform/pkg/lexer"
	"github.com/panbanda/iltransform/pkg/models"
	"go.uber.org/zap"
)

// Modifiers that may sit between a type directive and the type name.
var ilTypeModifiers = map[string]bool{
	"auto": true, "ansi": true, "interface": true, "public": true, "private": true,
	"sealed": true, "value": true, "beforefieldinit": true, "sequential": true,
	"explicit": true, "abstract": true, "serializable": true, "specialname": true,
	"rtspecialname": true, "unicode": true, "autochar": true, "import": true,
}

var ilTypeDirectives = []string{".class", ".struct", ".interface"}

// ILNamespaceName returns the name declared by a `.namespace` line, without
// quotes.
func ILNamespaceName(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != ".namespace" {
		return "", false
	}
	name := strings.TrimSuffix(fields[1], "{")
	if strings.HasPrefix(name, "'") {
		name = strings.Trim(name, "'")
	}
	return name, name != ""
}

// ILTypeName returns the name declared by the type directive on line i. The
// name may follow on later lines. Nested types are not reported.
func ILTypeName(lines []string, i int) (string, bool) {
	if i < 0 || i >= len(lines) {
		return "", false
	}
	line := stripLineComment(lines[i])
	col := -1
	for _, d := range ilTypeDirectives {
		if idx := strings.Index(line, d); idx >= 0 {
			col = idx + len(d)
			break
		}
	}
	if col < 0 {
		return "", false
	}

	for {
		col = skipSpace(line, col)
		if col == len(line) {
			if i+1 >= len(lines) {
				return "", false
			}
			i++
			line, col = stripLineComment(lines[i]), 0
			continue
		}
		if strings.HasPrefix(line[col:], "/*") {
			end := strings.Index(line[col+2:], "*/")
			if end < 0 {
				return "", false
			}
			col += end + 4
			continue
		}
		if line[col] == '\'' {
			end := strings.IndexByte(line[col+1:], '\'')
			if end < 0 {
				return line[col+1:], true
			}
			return line[col+1 : col+1+end], true
		}

		end := col
		for end < len(line) && (isILIdentByte(line[end]) || line[end] == '.') {
			end++
		}
		if end == col {
			return "", false
		}
		word := line[col:end]
		switch {
		case word == "nested":
			return "", false
		case ilTypeModifiers[word]:
			col = end
		default:
			return word, true
		}
	}
}

// stripLineComment drops a trailing // comment. Slashes inside quoted
// names and strings are kept.
func stripLineComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}

func isILIdentByte(c byte) bool {
	return c >= 0x80 || lexer.IsIdentChar(rune(c), lexer.LangIL)
}

var (
	ilSkipRe = regexp.MustCompile(`^\s*(?://.*)?$`)

	// Successive pieces of a static entry-point signature.
	ilMainRes = []*regexp.Regexp{
		regexp.MustCompile(`\.method(?:\s+(?:/\*06000002\*/|public|private|privatescope|assembly|hidebysig))*\s+static`),
		regexp.MustCompile(`\s+(?:int32|unsigned\s+int32|void)(?:\s+modopt\(\[mscorlib\]System\.Runtime\.CompilerServices\.CallConvCdecl\))?`),
		regexp.MustCompile(`\s+(?P<main>[^\s(]+)\s*\(`),
		regexp.MustCompile(`\s*(?:(?:class\s+(?:\[(?:mscorlib|'mscorlib')\])?System\.String|string)\s*\[\s*\](?:\s*[0-9a-zA-z_]+)?|[0-9a-zA-z_]+)?`),
		regexp.MustCompile(`\s*\)(?:\s*c?il)?(?:\s*managed)?(?:\s*noinlining)?(?:\s*forwardref)?`),
		regexp.MustCompile(`\s*\{`),
	}
)

const (
	ilMainStart = 0
	ilMainName  = 2
	ilMainEnd   = 4
	ilMainBody  = 5
)

// AnalyzeIL records the type names, entry point and main class of an IL file.
func (a *Analyzer) AnalyzeIL(path string, lines []string, info *models.SourceInfo) {
	if slices.ContainsFunc(lines, func(l string) bool { return strings.Contains(l, "Environment::Exit") }) {
		info.HasExit = true
	}

	a.ilTypeNames(path, lines, info)
	a.ilEntryPoint(path, lines, info)

	if info.NamespaceLine < 0 {
		info.NamespaceLine = slices.IndexFunc(lines, func(l string) bool {
			return strings.Contains(l, ".class") || strings.Contains(l, ".struct")
		})
	}
}

func (a *Analyzer) ilTypeNames(path string, lines []string, info *models.SourceInfo) {
	namespace := ""
	for i, line := range lines {
		if ns, ok := ILNamespaceName(line); ok {
			if namespace != "" {
				a.logger.Debug("nested namespaces", zap.String("path", path))
				ns = namespace + "." + ns
			}
			namespace = ns
			continue
		}
		name, ok := ILTypeName(lines, i)
		if !ok {
			continue
		}
		if namespace != "" {
			name = namespace + "." + name
		}
		info.TypeNames = append(info.TypeNames, name)
	}
}

func (a *Analyzer) ilEntryPoint(path string, lines []string, info *models.SourceInfo) {
	entry := lastIndexContaining(lines, len(lines)-1, ".entrypoint")
	if entry < 0 {
		return
	}
	if lastIndexContaining(lines, entry-1, ".entrypoint") >= 0 {
		a.logger.Warn("multiple .entrypoint directives", zap.String("path", path))
		return
	}
	lineIndex := lastIndexContaining(lines, entry, ".method")
	if lineIndex < 0 {
		a.logger.Warn("no .method for .entrypoint", zap.String("path", path))
		return
	}

	var (
		matchLines [6]int
		matchEnds  [6]int
		mainName   string
	)
	col := 0
	for n, re := range ilMainRes {
		for ilSkipRe.MatchString(lines[lineIndex][col:]) {
			lineIndex++
			col = 0
			if lineIndex >= len(lines) {
				a.logger.Warn("entry point signature runs past end of file", zap.String("path", path))
				return
			}
		}
		line := lines[lineIndex]
		m := re.FindStringSubmatchIndex(line[col:])
		if m == nil {
			a.logger.Warn("entry point signature not recognized",
				zap.String("path", path),
				zap.Int("piece", n),
				zap.Int("line", lineIndex))
			return
		}
		if n == ilMainName {
			g := re.SubexpIndex("main")
			mainName = line[col+m[2*g] : col+m[2*g+1]]
		}
		matchLines[n] = lineIndex
		col += m[1]
		matchEnds[n] = col
	}

	if len(mainName) >= 2 && mainName[0] == '\'' && mainName[len(mainName)-1] == '\'' {
		mainName = mainName[1 : len(mainName)-1]
	}

	info.MainMethodName = mainName
	info.FirstMainMethodDefLine = matchLines[ilMainStart]
	info.MainTokenMethodLine = matchLines[ilMainName]
	info.LastMainMethodDefLine = matchLines[ilMainEnd]
	for i := info.LastMainMethodDefLine; i < len(lines) && i < info.LastMainMethodDefLine+10; i++ {
		if strings.Contains(lines[i], "FactAttribute") {
			info.HasFactAttribute = true
			break
		}
	}

	end := FindCloseBrace(lines, Position{Line: matchLines[ilMainBody], Column: matchEnds[ilMainBody]})
	info.LastMainMethodBodyLine = end.Line
	info.LastMainMethodBodyColumn = end.Column
	info.MainClassSourceFile = path

	for i := info.FirstMainMethodDefLine - 1; i >= 0 && info.MainClassName == ""; i-- {
		name, ok := ILTypeName(lines, i)
		if !ok {
			continue
		}
		info.MainClassName = name
		info.MainClassLine = i
		for j := i - 1; j >= 0; j-- {
			if ns, ok := ILNamespaceName(lines[j]); ok {
				info.MainClassNamespace = ns
				info.NamespaceLine = j
				info.NamespaceIdentLine = j
				info.MainClassName = ns + "." + info.MainClassName
				break
			}
		}
	}
}

// lastIndexContaining searches lines[0..from] backward for sub.
func lastIndexContaining(lines []string, from int, sub string) int {
	for i := min(from, len(lines)-1); i >= 0; i-- {
		if strings.Contains(lines[i], sub) {
			return i
		}
	}
	return -1
}

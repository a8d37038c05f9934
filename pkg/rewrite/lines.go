package rewrite

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/panbanda/iltransform/pkg/lexer"
)

var (
	publicRe    = regexp.MustCompile(`(\s|^)public(\s|$)`)
	notPublicRe = regexp.MustCompile(`(?:private|internal|assembly|family|famandassem|famorassem|privatescope)(\s+)`)
)

// MakePublic rewrites the accessibility of a declaration line to public.
// Lines already marked public are left alone. When no restrictive modifier
// is present and force is set, "public" is inserted: after the directive
// (.method, .class) for IL, before the first word for C#.
func MakePublic(line string, lang lexer.Language, force bool) (string, bool) {
	if publicRe.MatchString(line) {
		return line, false
	}
	if notPublicRe.MatchString(line) {
		return notPublicRe.ReplaceAllString(line, "public$1"), true
	}
	if !force {
		return line, false
	}
	at := GetIndent(line)
	if lang == lexer.LangIL {
		at = skipNonSpace(line, at)
		return line[:at] + " public" + line[at:], true
	}
	return line[:at] + "public " + line[at:], true
}

// GetIndent returns the length of the leading run of control and space
// characters.
func GetIndent(line string) int {
	i := 0
	for i < len(line) && line[i] <= ' ' {
		i++
	}
	return i
}

// AddAfterIndent inserts add between the indentation and the content of line.
func AddAfterIndent(line, add string) string {
	i := GetIndent(line)
	return line[:i] + add + line[i:]
}

// InsertIndented inserts add at index at, each line prefixed with the
// indentation of model. It returns the new slice and the index just past the
// inserted lines.
func InsertIndented(lines []string, at int, add []string, model string) ([]string, int) {
	indent := model[:GetIndent(model)]
	block := make([]string, len(add))
	for i, l := range add {
		block[i] = indent + l
	}
	out := make([]string, 0, len(lines)+len(add))
	out = append(out, lines[:at]...)
	out = append(out, block...)
	out = append(out, lines[at:]...)
	return out, at + len(add)
}

// ReplaceIdentifier replaces every occurrence of from in line that is not
// adjacent to another identifier character. Unlike ReplaceIdent it does not
// consult the token context.
func ReplaceIdentifier(line, from, to string, lang lexer.Language) string {
	if from == "" {
		return line
	}
	var b strings.Builder
	start := 0
	for start < len(line) {
		idx := strings.Index(line[start:], from)
		if idx < 0 {
			break
		}
		idx += start
		end := idx + len(from)
		if boundaryBefore(line, idx, lang) && boundaryAfter(line, end, lang) {
			b.WriteString(line[start:idx])
			b.WriteString(to)
			start = end
			continue
		}
		b.WriteString(line[start : idx+1])
		start = idx + 1
	}
	if b.Len() == 0 && start == 0 {
		return line
	}
	b.WriteString(line[start:])
	return b.String()
}

func boundaryBefore(line string, i int, lang lexer.Language) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(line[:i])
	return !lexer.IsIdentChar(r, lang)
}

func boundaryAfter(line string, i int, lang lexer.Language) bool {
	if i >= len(line) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(line[i:])
	return !lexer.IsIdentChar(r, lang)
}

func skipNonSpace(line string, i int) int {
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		if unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

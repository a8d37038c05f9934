// Package lexer splits a single line of IL or C# source text into typed tokens.
//
// The lexer is line-oriented and never fails: every byte of the input ends up in
// exactly one token, so concatenating the token texts reproduces the line.
package lexer

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Language selects the identifier character class.
type Language int

const (
	// LangCSharp is the high-level managed language.
	LangCSharp Language = iota
	// LangIL is the assembly-like textual IL.
	LangIL
)

// String returns the short name used on the command line.
func (l Language) String() string {
	if l == LangIL {
		return "il"
	}
	return "cs"
}

// ParseLanguage converts "il" or "cs" (case-insensitive) to a Language.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(s) {
	case "il":
		return LangIL, nil
	case "cs", "c#", "csharp":
		return LangCSharp, nil
	default:
		return LangCSharp, fmt.Errorf("unknown language %q (want il or cs)", s)
	}
}

// DetectLanguage returns the language of a source file by extension.
// The second result is false for files that are neither .il nor .cs.
func DetectLanguage(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".il":
		return LangIL, true
	case ".cs":
		return LangCSharp, true
	default:
		return LangCSharp, false
	}
}

// Kind classifies a token.
type Kind int

const (
	Whitespace Kind = iota + 1
	Comment
	DoubleQuoted
	SingleQuoted
	Identifier
	Other
)

var kindNames = map[Kind]string{
	Whitespace:   "whitespace",
	Comment:      "comment",
	DoubleQuoted: "double-quoted",
	SingleQuoted: "single-quoted",
	Identifier:   "identifier",
	Other:        "other",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one lexical unit of a line.
type Token struct {
	Text string
	Kind Kind
}

// Unquoted returns the interior of a single-quoted token, tolerating a
// missing closing quote. Other tokens are returned unchanged.
func (t Token) Unquoted() string {
	if t.Kind != SingleQuoted {
		return t.Text
	}
	s := strings.TrimPrefix(t.Text, "'")
	return strings.TrimSuffix(s, "'")
}

// special tokens are matched before the generic identifier/other scan so the
// classifier can recognize them structurally.
type special struct {
	text string
	kind Kind
}

var specialTokens = []special{
	{".class", Identifier},
	{".ctor", Identifier},
	{"::", Other},
	{"(", Other},
	{")", Other},
}

// IsIdentChar reports whether r may appear in an identifier of the given language.
// IL additionally allows '@', '$' and '`'.
func IsIdentChar(r rune, lang Language) bool {
	if unicode.IsDigit(r) || unicode.IsLetter(r) || r == '_' {
		return true
	}
	return lang == LangIL && (r == '@' || r == '$' || r == '`')
}

// Tokenize splits line into tokens.
func Tokenize(line string, lang Language) Stream {
	s := Stream{
		texts: make([]string, 0, 16),
		kinds: make([]Kind, 0, 16),
	}
	for pos := 0; pos < len(line); {
		next, kind := scanToken(line, pos, lang)
		s.texts = append(s.texts, line[pos:next])
		s.kinds = append(s.kinds, kind)
		pos = next
	}
	return s
}

func scanToken(line string, pos int, lang Language) (int, Kind) {
	switch {
	case line[pos] == '"':
		return scanQuoted(line, pos, '"'), DoubleQuoted
	case line[pos] == '\'':
		return scanQuoted(line, pos, '\''), SingleQuoted
	case strings.HasPrefix(line[pos:], "//"):
		return len(line), Comment
	}

	r, size := utf8.DecodeRuneInString(line[pos:])
	if unicode.IsSpace(r) {
		return scanWhile(line, pos+size, unicode.IsSpace), Whitespace
	}

	if sp, ok := matchSpecial(line, pos, lang); ok {
		return pos + len(sp.text), sp.kind
	}

	isIdent := func(r rune) bool { return IsIdentChar(r, lang) }
	if isIdent(r) {
		return scanWhile(line, pos+size, isIdent), Identifier
	}

	end := pos + size
	for end < len(line) {
		if line[end] == '"' || line[end] == '\'' || strings.HasPrefix(line[end:], "//") {
			break
		}
		r, size := utf8.DecodeRuneInString(line[end:])
		if isIdent(r) || unicode.IsSpace(r) {
			break
		}
		end += size
	}
	return end, Other
}

// scanQuoted consumes through the closing quote, or to end of line when unterminated.
func scanQuoted(line string, pos int, quote byte) int {
	if i := strings.IndexByte(line[pos+1:], quote); i >= 0 {
		return pos + 1 + i + 1
	}
	return len(line)
}

func scanWhile(line string, pos int, pred func(rune) bool) int {
	for pos < len(line) {
		r, size := utf8.DecodeRuneInString(line[pos:])
		if !pred(r) {
			break
		}
		pos += size
	}
	return pos
}

func matchSpecial(line string, pos int, lang Language) (special, bool) {
	for _, sp := range specialTokens {
		if !strings.HasPrefix(line[pos:], sp.text) {
			continue
		}
		end := pos + len(sp.text)
		if sp.kind == Identifier && end < len(line) {
			r, _ := utf8.DecodeRuneInString(line[end:])
			if IsIdentChar(r, lang) {
				continue
			}
		}
		return sp, true
	}
	return special{}, false
}

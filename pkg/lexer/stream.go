package lexer

import "strings"

// Stream is the token sequence of one line, stored as parallel text and kind
// slices. A Stream is never modified after Tokenize returns it.
type Stream struct {
	texts []string
	kinds []Kind
}

// Len returns the number of tokens.
func (s Stream) Len() int { return len(s.texts) }

// Text returns the text of token i, or "" when i is out of range.
func (s Stream) Text(i int) string {
	if i < 0 || i >= len(s.texts) {
		return ""
	}
	return s.texts[i]
}

// Kind returns the kind of token i, or 0 when i is out of range.
func (s Stream) Kind(i int) Kind {
	if i < 0 || i >= len(s.kinds) {
		return 0
	}
	return s.kinds[i]
}

// Token returns token i. Out-of-range indices yield the zero Token.
func (s Stream) Token(i int) Token {
	return Token{Text: s.Text(i), Kind: s.Kind(i)}
}

// Is reports whether token i has the given kind and text.
func (s Stream) Is(i int, kind Kind, text string) bool {
	return s.Kind(i) == kind && s.Text(i) == text
}

// Tokens returns a copy of the tokens.
func (s Stream) Tokens() []Token {
	out := make([]Token, len(s.texts))
	for i := range s.texts {
		out[i] = Token{Text: s.texts[i], Kind: s.kinds[i]}
	}
	return out
}

// String reassembles the original line.
func (s Stream) String() string {
	return strings.Join(s.texts, "")
}

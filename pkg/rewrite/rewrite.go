// Package rewrite substitutes identifiers in IL and C# source lines using
// local token context, and applies the whole-file and project-descriptor
// passes built on top of that substitution.
package rewrite

import (
	"strings"
	"sync/atomic"

	"github.com/panbanda/iltransform/pkg/classify"
	"github.com/panbanda/iltransform/pkg/lexer"
	"go.uber.org/zap"
)

// Rewriter performs context-sensitive identifier replacement for one
// language. It is safe for concurrent use.
type Rewriter struct {
	lang      lexer.Language
	path      string
	logger    *zap.Logger
	ambiguous atomic.Int64
	replaced  atomic.Int64
}

// Option is a functional option for configuring a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the logger that receives unclassifiable occurrences.
func WithLogger(l *zap.Logger) Option {
	return func(r *Rewriter) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPath records the file being rewritten for diagnostics.
func WithPath(path string) Option {
	return func(r *Rewriter) {
		r.path = path
	}
}

// New creates a Rewriter for lang.
func New(lang lexer.Language, opts ...Option) *Rewriter {
	r := &Rewriter{
		lang:   lang,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Language returns the language the Rewriter tokenizes.
func (r *Rewriter) Language() lexer.Language { return r.lang }

// Ambiguous returns how many occurrences were left alone because no context
// predicate applied.
func (r *Rewriter) Ambiguous() int64 { return r.ambiguous.Load() }

// Replaced returns how many occurrences were rewritten.
func (r *Rewriter) Replaced() int64 { return r.replaced.Load() }

// ReplaceIdent replaces every occurrence of search in line that the
// classifier approves for kind. An occurrence is an Identifier token equal
// to search or a single-quoted token whose interior equals search; a quoted
// occurrence is replaced by a quoted replacement. Comments and double-quoted
// strings are never touched.
func (r *Rewriter) ReplaceIdent(line, search, replace string, kind classify.IdentKind) string {
	if search == "" || !strings.Contains(line, search) {
		return line
	}

	s := lexer.Tokenize(line, r.lang)
	var b strings.Builder
	b.Grow(len(line) + len(replace))
	for i := 0; i < s.Len(); i++ {
		tok := s.Token(i)
		if !isOccurrence(tok, search) {
			b.WriteString(tok.Text)
			continue
		}

		d := classify.Classify(s, i, kind)
		switch d.Verdict {
		case classify.Replace:
			r.replaced.Add(1)
			b.WriteString(requote(tok, replace))
		case classify.Ambiguous:
			r.ambiguous.Add(1)
			r.logger.Warn("cannot classify identifier occurrence",
				zap.String("path", r.path),
				zap.String("ident", search),
				zap.Stringer("kind", kind),
				zap.Int("token", i),
				zap.String("line", line))
			b.WriteString(tok.Text)
		default:
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

// ReplaceIdent is a convenience wrapper around a one-off Rewriter.
func ReplaceIdent(line, search, replace string, lang lexer.Language, kind classify.IdentKind) string {
	return New(lang).ReplaceIdent(line, search, replace, kind)
}

func isOccurrence(tok lexer.Token, search string) bool {
	switch tok.Kind {
	case lexer.Identifier:
		return tok.Text == search
	case lexer.SingleQuoted:
		return tok.Unquoted() == search
	default:
		return false
	}
}

// requote wraps replace in the quotes of tok, keeping a missing closing
// quote missing.
func requote(tok lexer.Token, replace string) string {
	if tok.Kind != lexer.SingleQuoted {
		return replace
	}
	if len(tok.Text) >= 2 && strings.HasSuffix(tok.Text, "'") {
		return "'" + replace + "'"
	}
	return "'" + replace
}

package classify

import (
	"slices"

	"github.com/panbanda/iltransform/pkg/lexer"
)

// matcher accepts a token by kind and, optionally, by text.
type matcher struct {
	kinds []lexer.Kind
	texts []string
}

func (m matcher) ok(s lexer.Stream, i int) bool {
	if i < 0 || i >= s.Len() {
		return false
	}
	if !slices.Contains(m.kinds, s.Kind(i)) {
		return false
	}
	return len(m.texts) == 0 || slices.Contains(m.texts, s.Text(i))
}

func kind(kinds ...lexer.Kind) matcher { return matcher{kinds: kinds} }

func text(k lexer.Kind, texts ...string) matcher {
	return matcher{kinds: []lexer.Kind{k}, texts: texts}
}

var (
	whitespace = kind(lexer.Whitespace)
	nameToken  = kind(lexer.Identifier, lexer.SingleQuoted)
)

// slot is a matcher at a fixed offset from the candidate token.
type slot struct {
	offset int
	matcher
}

func at(offset int, m matcher) slot { return slot{offset: offset, matcher: m} }

// backScan walks left from the candidate. A token matching target ends the
// scan with a match; a token matching pass is skipped; anything else, or
// running off the start of the line, ends the scan without a match.
type backScan struct {
	target matcher
	pass   []matcher
}

func (b *backScan) ok(s lexer.Stream, i int) bool {
	for j := i - 1; j >= 0; j-- {
		if b.target.ok(s, j) {
			return true
		}
		passed := false
		for _, p := range b.pass {
			if p.ok(s, j) {
				passed = true
				break
			}
		}
		if !passed {
			return false
		}
	}
	return false
}

const anyPosition = -1

// Predicate is one entry of the local-context grammar: a fixed token window
// around the candidate, an optional backward scan, and an optional exclusion.
type Predicate struct {
	Name string

	position int // required candidate index, or anyPosition
	window   []slot
	scan     *backScan
	unless   *Predicate
}

// Match reports whether the predicate holds for the token at index i.
func (p *Predicate) Match(s lexer.Stream, i int) bool {
	if i < 0 || i >= s.Len() {
		return false
	}
	if p.position != anyPosition && i != p.position {
		return false
	}
	for _, sl := range p.window {
		if !sl.ok(s, i+sl.offset) {
			return false
		}
	}
	if p.scan != nil && !p.scan.ok(s, i) {
		return false
	}
	if p.unless != nil && p.unless.Match(s, i) {
		return false
	}
	return true
}

// typeDefModifiers may sit between ".class" and the defined type name.
var typeDefModifiers = []string{
	"public", "private", "auto", "ansi", "sealed", "beforefieldinit",
	"abstract", "sequential", "explicit", "interface", "value", "serializable",
}

// typeOperators are IL instructions whose operand is a type token.
var typeOperators = []string{
	"ldtoken", "box", "unbox", "initobj", "stobj", "ldobj", "isinst",
	"castclass", "catch", "sizeof", "newarr", "mkrefany", "refanyval",
}

var (
	NamespaceDeclName = &Predicate{
		Name:     "namespace-decl-name",
		position: 3,
		window:   []slot{at(-3, text(lexer.Other, ".")), at(-2, text(lexer.Identifier, "namespace")), at(-1, whitespace)},
	}

	AssemblyDeclName = &Predicate{
		Name:     "assembly-decl-name",
		position: 3,
		window:   []slot{at(-3, text(lexer.Other, ".")), at(-2, text(lexer.Identifier, "assembly")), at(-1, whitespace)},
	}

	NamespacePrefix = &Predicate{
		Name:     "namespace-prefix",
		position: anyPosition,
		window:   []slot{at(1, text(lexer.Other, ".")), at(2, nameToken)},
	}

	TypePrefix = &Predicate{
		Name:     "type-prefix",
		position: anyPosition,
		window:   []slot{at(1, text(lexer.Other, "::", "/")), at(2, nameToken)},
	}

	TypeNameDef = &Predicate{
		Name:     "type-name-def",
		position: anyPosition,
		window:   []slot{at(-1, whitespace)},
		scan: &backScan{
			target: text(lexer.Identifier, ".class"),
			pass:   []matcher{whitespace, text(lexer.Identifier, typeDefModifiers...)},
		},
	}

	TypeNameUse = &Predicate{
		Name:     "type-name-use",
		position: anyPosition,
		window:   []slot{at(-2, text(lexer.Identifier, "class", "valuetype")), at(-1, whitespace)},
	}

	MethodName = &Predicate{
		Name:     "method-name",
		position: anyPosition,
		window:   []slot{at(1, text(lexer.Other, "("))},
	}

	OperatorType = &Predicate{
		Name:     "operator-type",
		position: anyPosition,
		window:   []slot{at(-2, text(lexer.Identifier, typeOperators...)), at(-1, whitespace)},
		unless:   NamespacePrefix,
	}

	InheritanceType = &Predicate{
		Name:     "inheritance-type",
		position: anyPosition,
		scan: &backScan{
			target: text(lexer.Identifier, "extends", "implements"),
			pass:   []matcher{kind(lexer.Identifier, lexer.SingleQuoted, lexer.Whitespace), text(lexer.Other, ",")},
		},
	}

	VariableName = &Predicate{
		Name:     "variable-name",
		position: anyPosition,
		window:   []slot{at(-2, text(lexer.Identifier, "int")), at(-1, whitespace)},
	}
)

// Predicates returns every context predicate, for auditing and diagnostics.
func Predicates() []*Predicate {
	return []*Predicate{
		NamespaceDeclName, AssemblyDeclName, NamespacePrefix, TypePrefix, TypeNameDef,
		TypeNameUse, MethodName, OperatorType, InheritanceType, VariableName,
	}
}

// Package classify decides, from local lexical context alone, whether an
// occurrence of an identifier on a line should be rewritten.
package classify

import (
	"fmt"
	"strings"

	"github.com/panbanda/iltransform/pkg/lexer"
)

// IdentKind is what the caller is searching for.
type IdentKind int

const (
	// IdentOther replaces every occurrence without consulting context.
	IdentOther IdentKind = iota
	// IdentNamespace replaces namespace declarations and dotted qualifiers.
	IdentNamespace
	// IdentTypeUse replaces references to a type but not its definition.
	IdentTypeUse
)

func (k IdentKind) String() string {
	switch k {
	case IdentNamespace:
		return "namespace"
	case IdentTypeUse:
		return "typeuse"
	default:
		return "other"
	}
}

// ParseIdentKind converts a command-line name to an IdentKind.
func ParseIdentKind(s string) (IdentKind, error) {
	switch strings.ToLower(s) {
	case "namespace", "ns":
		return IdentNamespace, nil
	case "typeuse", "type":
		return IdentTypeUse, nil
	case "other", "any", "":
		return IdentOther, nil
	default:
		return IdentOther, fmt.Errorf("unknown identifier kind %q (want namespace, typeuse or other)", s)
	}
}

// Verdict is the outcome of classifying one occurrence.
type Verdict int

const (
	Keep Verdict = iota
	Replace
	// Ambiguous means no predicate matched; the occurrence is kept.
	Ambiguous
)

func (v Verdict) String() string {
	switch v {
	case Replace:
		return "replace"
	case Ambiguous:
		return "ambiguous"
	default:
		return "keep"
	}
}

// Decision carries the verdict and the predicate that produced it.
type Decision struct {
	Verdict Verdict
	Rule    string
}

// ShouldReplace reports whether the occurrence is to be rewritten.
func (d Decision) ShouldReplace() bool { return d.Verdict == Replace }

// rule is one row of the decision table. veto predicates are consulted before
// accept, and a veto match keeps the occurrence.
type rule struct {
	veto   []*Predicate
	accept []*Predicate
	reject []*Predicate
}

var decisionTable = map[IdentKind]rule{
	IdentNamespace: {
		accept: []*Predicate{NamespaceDeclName, NamespacePrefix},
		reject: []*Predicate{TypeNameDef},
	},
	IdentTypeUse: {
		veto:   []*Predicate{NamespacePrefix},
		accept: []*Predicate{TypePrefix, TypeNameUse, InheritanceType, OperatorType},
		reject: []*Predicate{NamespaceDeclName, MethodName, TypeNameDef, VariableName, AssemblyDeclName},
	},
}

// Classify decides whether token i of s is a replaceable occurrence for the
// given search kind. The caller has already established that the token text
// equals the search identifier.
func Classify(s lexer.Stream, i int, searchKind IdentKind) Decision {
	r, ok := decisionTable[searchKind]
	if !ok {
		return Decision{Verdict: Replace, Rule: "unconditional"}
	}
	for _, p := range r.veto {
		if p.Match(s, i) {
			return Decision{Verdict: Keep, Rule: p.Name}
		}
	}
	for _, p := range r.accept {
		if p.Match(s, i) {
			return Decision{Verdict: Replace, Rule: p.Name}
		}
	}
	for _, p := range r.reject {
		if p.Match(s, i) {
			return Decision{Verdict: Keep, Rule: p.Name}
		}
	}
	return Decision{Verdict: Ambiguous}
}

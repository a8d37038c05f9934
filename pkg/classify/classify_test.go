package classify

import (
	"testing"

	"github.com/panbanda/iltransform/pkg/lexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexOf returns the index of the n-th (0-based) token whose text or
// unquoted text equals ident.
func indexOf(t *testing.T, s lexer.Stream, ident string, n int) int {
	t.Helper()
	for i := 0; i < s.Len(); i++ {
		tok := s.Token(i)
		if tok.Text == ident || (tok.Kind == lexer.SingleQuoted && tok.Unquoted() == ident) {
			if n == 0 {
				return i
			}
			n--
		}
	}
	require.Failf(t, "token not found", "%q in %q", ident, s.String())
	return -1
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		pred  *Predicate
		line  string
		ident string
		nth   int
		want  bool
	}{
		{"namespace decl", NamespaceDeclName, ".namespace Foo", "Foo", 0, true},
		{"namespace decl indented", NamespaceDeclName, "  .namespace Foo", "Foo", 0, false},
		{"namespace decl quoted", NamespaceDeclName, ".namespace 'Foo'", "Foo", 0, true},
		{"assembly decl", AssemblyDeclName, ".assembly Foo {}", "Foo", 0, true},
		{"assembly extern", AssemblyDeclName, ".assembly extern Foo {}", "Foo", 0, false},
		{"namespace prefix", NamespacePrefix, "class Foo.Bar", "Foo", 0, true},
		{"namespace prefix quoted tail", NamespacePrefix, "class Foo.'Bar'", "Foo", 0, true},
		{"namespace prefix at end", NamespacePrefix, "class Foo.", "Foo", 0, false},
		{"type prefix member", TypePrefix, "ldsfld int32 Foo::x", "Foo", 0, true},
		{"type prefix nested", TypePrefix, "class Foo/Inner", "Foo", 0, true},
		{"type prefix none", TypePrefix, "class Foo", "Foo", 0, false},
		{"type def", TypeNameDef, ".class public auto ansi Foo", "Foo", 0, true},
		{"type def bare", TypeNameDef, ".class Foo", "Foo", 0, true},
		{"type def blocked by other modifier", TypeNameDef, ".class public weird Foo", "Foo", 0, false},
		{"type def runs off start", TypeNameDef, "public auto Foo", "Foo", 0, false},
		{"type use class", TypeNameUse, "newobj instance void class Foo", "Foo", 0, true},
		{"type use valuetype", TypeNameUse, "valuetype Foo", "Foo", 0, true},
		{"type use needs keyword", TypeNameUse, "Foo", "Foo", 0, false},
		{"method name", MethodName, "call void Foo()", "Foo", 0, true},
		{"method name spaced", MethodName, "call void Foo ()", "Foo", 0, false},
		{"operator box", OperatorType, "box Foo", "Foo", 0, true},
		{"operator castclass", OperatorType, "castclass Foo", "Foo", 0, true},
		{"operator with namespace prefix", OperatorType, "box Foo.Bar", "Foo", 0, false},
		{"operator unknown", OperatorType, "ldloc Foo", "Foo", 0, false},
		{"extends", InheritanceType, ".class Bar extends Foo", "Foo", 0, true},
		{"implements list", InheritanceType, ".class Bar extends Base implements IA, Foo", "Foo", 0, true},
		{"extends blocked by bracket", InheritanceType, ".class Bar extends [lib]Foo", "Foo", 0, false},
		{"no inheritance", InheritanceType, ".class Bar Foo", "Foo", 0, false},
		{"variable", VariableName, "int Foo = 3;", "Foo", 0, true},
		{"variable other type", VariableName, "long Foo = 3;", "Foo", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := lexer.Tokenize(tt.line, lexer.LangIL)
			i := indexOf(t, s, tt.ident, tt.nth)
			assert.Equal(t, tt.want, tt.pred.Match(s, i))
		})
	}
}

func TestPredicates_OutOfRange(t *testing.T) {
	s := lexer.Tokenize("Foo", lexer.LangIL)
	for _, p := range Predicates() {
		assert.False(t, p.Match(s, -1), p.Name)
		assert.False(t, p.Match(s, 7), p.Name)
		assert.NotPanics(t, func() { p.Match(s, 0) }, p.Name)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		ident string
		nth   int
		kind  IdentKind
		want  Verdict
		rule  string
	}{
		{"other is unconditional", "ldstr Foo", "Foo", 0, IdentOther, Replace, "unconditional"},

		{"ns decl", ".namespace Foo", "Foo", 0, IdentNamespace, Replace, "namespace-decl-name"},
		{"ns prefix", "call void Foo.Bar::M()", "Foo", 0, IdentNamespace, Replace, "namespace-prefix"},
		{"ns type def", ".class public Foo", "Foo", 0, IdentNamespace, Keep, "type-name-def"},
		{"ns ambiguous", "ldloc Foo", "Foo", 0, IdentNamespace, Ambiguous, ""},

		{"type dotted prefix vetoed", "ldsflda value class Box_Unbox.valClass Box_Unbox::vc", "Box_Unbox", 0, IdentTypeUse, Keep, "namespace-prefix"},
		{"type member prefix", "ldsflda value class Box_Unbox.valClass Box_Unbox::vc", "Box_Unbox", 1, IdentTypeUse, Replace, "type-prefix"},
		{"type use", "newobj instance void class Foo", "Foo", 0, IdentTypeUse, Replace, "type-name-use"},
		{"type inheritance", ".class Bar extends Foo", "Foo", 0, IdentTypeUse, Replace, "inheritance-type"},
		{"type operator", "isinst Foo", "Foo", 0, IdentTypeUse, Replace, "operator-type"},
		{"type method", "call void Foo()", "Foo", 0, IdentTypeUse, Keep, "method-name"},
		{"type def", ".class public auto ansi Foo", "Foo", 0, IdentTypeUse, Keep, "type-name-def"},
		{"type variable", "int Foo = 1;", "Foo", 0, IdentTypeUse, Keep, "variable-name"},
		{"type ns decl", ".namespace Foo", "Foo", 0, IdentTypeUse, Keep, "namespace-decl-name"},
		{"type assembly decl", ".assembly Foo", "Foo", 0, IdentTypeUse, Keep, "assembly-decl-name"},
		{"type ambiguous", "ldloc Foo", "Foo", 0, IdentTypeUse, Ambiguous, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := lexer.Tokenize(tt.line, lexer.LangIL)
			i := indexOf(t, s, tt.ident, tt.nth)
			d := Classify(s, i, tt.kind)
			assert.Equal(t, tt.want, d.Verdict)
			assert.Equal(t, tt.rule, d.Rule)
			assert.Equal(t, tt.want == Replace, d.ShouldReplace())
		})
	}
}

func TestParseIdentKind(t *testing.T) {
	k, err := ParseIdentKind("TypeUse")
	require.NoError(t, err)
	assert.Equal(t, IdentTypeUse, k)

	k, err = ParseIdentKind("ns")
	require.NoError(t, err)
	assert.Equal(t, IdentNamespace, k)

	k, err = ParseIdentKind("")
	require.NoError(t, err)
	assert.Equal(t, IdentOther, k)

	_, err = ParseIdentKind("method")
	assert.Error(t, err)
}

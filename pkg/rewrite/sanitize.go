package rewrite

import (
	"strings"
	"unicode"

	"github.com/panbanda/iltransform/pkg/lexer"
)

// reservedTokens are IL opcodes that cannot be used as bare identifiers.
var reservedTokens = map[string]bool{
	"add": true, "and": true, "br": true, "brtrue": true, "brfalse": true,
	"ble": true, "blt": true, "beq": true, "bge": true, "bgt": true,
	"call": true, "ceq": true, "cgt": true, "ckfinite": true, "clt": true,
	"cpblk": true, "div": true, "dup": true, "initblk": true, "jmp": true,
	"ldobj": true, "ldtoken": true, "mul": true, "neg": true, "nop": true,
	"rem": true, "ret": true, "sub": true, "xor": true, "callvirt": true,
	"castclass": true, "cpobj": true, "initobj": true, "isinst": true,
	"switch": true,
}

// IsReservedToken reports whether s collides with a reserved IL opcode.
func IsReservedToken(s string) bool {
	return reservedTokens[s]
}

// SanitizeIdentifier turns an arbitrary string (a file stem, a directory
// name) into a valid identifier for lang. A leading digit gets an underscore
// prefix, '-' becomes '_' and any other invalid character becomes "__".
// Results that collide with a reserved opcode get a trailing underscore.
// Sanitizing a sanitized identifier returns it unchanged.
func SanitizeIdentifier(s string, lang lexer.Language) string {
	var b strings.Builder
	b.Grow(len(s) + 1)
	for _, r := range s {
		switch {
		case lexer.IsIdentChar(r, lang):
			if b.Len() == 0 && unicode.IsDigit(r) {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		case r == '-':
			b.WriteByte('_')
		default:
			b.WriteString("__")
		}
	}
	out := b.String()
	if IsReservedToken(out) {
		out += "_"
	}
	return out
}

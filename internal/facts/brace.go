package facts

import "strings"

// Position is a zero-based line and column in a file.
type Position struct {
	Line   int
	Column int
}

// FindCloseBrace returns the position just past the '}' that balances an
// already-open brace, scanning from start. Braces inside comments and
// double-quoted strings are ignored. A line comment following the brace moves
// the position to the end of that line. When the file ends first, the end of
// the last line is returned.
func FindCloseBrace(lines []string, start Position) Position {
	if len(lines) == 0 {
		return Position{Line: -1, Column: -1}
	}
	open := 1
	ln, col := start.Line, start.Column
	inQuote, inComment := false, false
	line := lines[ln]

	for {
		for col >= len(line) {
			ln++
			if ln == len(lines) {
				return Position{Line: ln - 1, Column: len(lines[ln-1])}
			}
			line, col = lines[ln], 0
		}
		rest := line[col:]

		switch {
		case inComment:
			if strings.HasPrefix(rest, "*/") {
				inComment = false
				col += 2
			} else {
				col++
			}
		case inQuote:
			switch {
			case rest[0] == '"':
				inQuote = false
				col++
			case strings.HasPrefix(rest, `\"`):
				col += 2
			default:
				col++
			}
		case rest[0] == '}':
			open--
			if open == 0 {
				col = skipSpace(line, col+1)
				if strings.HasPrefix(line[col:], "//") {
					col = len(line)
				}
				return Position{Line: ln, Column: col}
			}
			col++
		case strings.HasPrefix(rest, "//"):
			col = len(line)
		case strings.HasPrefix(rest, "/*"):
			inComment = true
			col += 2
		case rest[0] == '"':
			inQuote = true
			col++
		case rest[0] == '{':
			open++
			col++
		default:
			col++
		}
	}
}

func skipSpace(line string, col int) int {
	for col < len(line) && (line[col] == ' ' || line[col] == '\t') {
		col++
	}
	return col
}

// reverseSkipSpace returns the index of the last non-blank byte at or before
// col, or -1.
func reverseSkipSpace(line string, col int) int {
	for col >= 0 && (line[col] == ' ' || line[col] == '\t') {
		col--
	}
	return col
}

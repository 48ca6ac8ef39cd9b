package expr

import "strings"

var wordOperators = map[string]string{
	"and": "&&", "AND": "&&",
	"or": "||", "OR": "||",
	"not": "!", "NOT": "!",
	"True": "true", "TRUE": "true",
	"False": "false", "FALSE": "false",
}

// normalize rewrites the formula dialect into HCL expression syntax:
// '=' becomes '==', '<>' becomes '!=', word operators become symbols,
// single-quoted strings become double-quoted, and minus signs are spaced
// out so HCL does not read 't-1' as a single dashed identifier.
func normalize(src string) string {
	var b strings.Builder
	b.Grow(len(src) + 8)
	s := src
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"':
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(s) {
				j++
			}
			b.WriteString(s[i:j])
			i = j
		case c == '\'':
			j := i + 1
			b.WriteByte('"')
			for j < len(s) && s[j] != '\'' {
				if s[j] == '"' {
					b.WriteString(`\"`)
				} else {
					b.WriteByte(s[j])
				}
				j++
			}
			b.WriteByte('"')
			i = j + 1
		case isDigit(c) || (c == '.' && i+1 < len(s) && isDigit(s[i+1])):
			j := scanNumber(s, i)
			if c == '.' {
				b.WriteByte('0')
			}
			b.WriteString(s[i:j])
			i = j
		case isNameStart(c):
			j := i + 1
			for j < len(s) && isNameChar(s[j]) {
				j++
			}
			word := s[i:j]
			if op, ok := wordOperators[word]; ok && !(j < len(s) && s[j] == '(') {
				b.WriteString(op)
			} else {
				b.WriteString(word)
			}
			i = j
		case c == '-':
			b.WriteString(" - ")
			i++
		case c == '<' && i+1 < len(s) && s[i+1] == '>':
			b.WriteString("!=")
			i += 2
		case c == '=':
			prev := byte(0)
			if i > 0 {
				prev = s[i-1]
			}
			next := byte(0)
			if i+1 < len(s) {
				next = s[i+1]
			}
			switch {
			case next == '=':
				b.WriteString("==")
				i += 2
			case prev == '<' || prev == '>' || prev == '!':
				b.WriteByte('=')
				i++
			default:
				b.WriteString("==")
				i++
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// scanNumber returns the end of the numeric literal starting at s[i],
// including an optional exponent.
func scanNumber(s string, i int) int {
	j := i
	for j < len(s) && (isDigit(s[j]) || s[j] == '.') {
		j++
	}
	if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
		k := j + 1
		if k < len(s) && (s[k] == '+' || s[k] == '-') {
			k++
		}
		if k < len(s) && isDigit(s[k]) {
			for k < len(s) && isDigit(s[k]) {
				k++
			}
			j = k
		}
	}
	return j
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isNameStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isNameChar(c byte) bool { return isNameStart(c) || isDigit(c) }

package formula

import "strings"

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}

// atBoundary reports whether an identifier may start at s[i], i.e. the
// previous byte does not continue a name, a number or a member access.
func atBoundary(s string, i int) bool {
	if i == 0 {
		return true
	}
	p := s[i-1]
	return !isIdentChar(p) && p != '.'
}

// readIdent returns the identifier starting at s[i] and the index just past it.
func readIdent(s string, i int) (string, int) {
	if i >= len(s) || !isIdentStart(s[i]) {
		return "", i
	}
	j := i + 1
	for j < len(s) && isIdentChar(s[j]) {
		j++
	}
	return s[i:j], j
}

// skipString returns the index just past the quoted literal starting at s[i].
// An unterminated literal runs to the end of s.
func skipString(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return len(s)
}

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// matchClose returns the index of the bracket closing the one at s[open],
// or -1 when it is unbalanced.
func matchClose(s string, open int) int {
	var stack []byte
	for i := open; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\'':
			i = skipString(s, i) - 1
		case '(', '[', '{':
			stack = append(stack, closers[c])
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s on sep, ignoring separators nested in brackets or
// string literals. Parts are trimmed.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'':
			i = skipString(s, i) - 1
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if c == sep && depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// isQuoted reports whether s is a single string literal.
func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && skipString(s, 0) == len(s)
}

func quote(name string) string {
	return `"` + name + `"`
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}

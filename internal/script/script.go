// Package script parses model scripts: one cell per "name -- formula"
// line, with an optional "//description" line before it.
package script

import (
	"bufio"
	"fmt"
	"strings"
)

// Separator divides a cell name from its formula.
const Separator = "--"

// Definition is one cell of a model script.
type Definition struct {
	Name        string
	Formula     string
	Description string
	Line        int
}

// Parse reads a model script. Lines that do not start a definition are
// appended to the formula of the previous one. Blank lines end a pending
// description.
func Parse(text string) ([]Definition, error) {
	var (
		defs    []Definition
		seen    = make(map[string]int)
		desc    string
		lineNum int
	)
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			desc = ""
		case strings.HasPrefix(line, "//"):
			desc = strings.TrimSpace(strings.TrimPrefix(line, "//"))
		default:
			name, formula, ok := splitDefinition(line)
			if !ok {
				if len(defs) == 0 {
					return nil, fmt.Errorf("line %d: expected %q before %q", lineNum, "name "+Separator+" formula", line)
				}
				last := &defs[len(defs)-1]
				last.Formula = strings.TrimSpace(last.Formula + " " + line)
				continue
			}
			if prev, dup := seen[name]; dup {
				return nil, fmt.Errorf("line %d: cell %q already defined on line %d", lineNum, name, prev)
			}
			seen[name] = lineNum
			defs = append(defs, Definition{Name: name, Formula: formula, Description: desc, Line: lineNum})
			desc = ""
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return defs, nil
}

// splitDefinition splits "name -- formula". The name must be a plain
// identifier so that a subtraction like "a -- b" inside a continuation
// line is not mistaken for a new cell.
func splitDefinition(line string) (name, formula string, ok bool) {
	before, after, found := strings.Cut(line, Separator)
	if !found {
		return "", "", false
	}
	name = strings.TrimSpace(before)
	if !isName(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(after), true
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

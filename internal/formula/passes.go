package formula

import (
	"fmt"
	"strings"
)

// walk copies s to the builder, skipping over string literals, and calls
// visit for every identifier that starts at a name boundary. visit returns
// the index to resume from, or -1 to copy the identifier unchanged.
func walk(s string, visit func(b *strings.Builder, name string, start, end int) (int, error)) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			j := skipString(s, i)
			b.WriteString(s[i:j])
			i = j
		case isIdentStart(c):
			name, end := readIdent(s, i)
			if atBoundary(s, i) {
				next, err := visit(&b, name, i, end)
				if err != nil {
					return "", err
				}
				if next >= 0 {
					i = next
					continue
				}
			}
			b.WriteString(name)
			i = end
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// expandIfs turns Ifs(c1,v1,c2,v2,...,d) into nested If calls.
func expandIfs(model, s string) (string, error) {
	return walk(s, func(b *strings.Builder, name string, _, end int) (int, error) {
		if name != "Ifs" || end >= len(s) || s[end] != '(' {
			return -1, nil
		}
		closing := matchClose(s, end)
		if closing < 0 {
			return 0, fmt.Errorf("Ifs: %w", ErrUnbalanced)
		}
		args := splitTopLevel(s[end+1:closing], ',')
		if len(args) < 3 || len(args)%2 == 0 {
			return 0, fmt.Errorf("%w: got %d", ErrIfsArity, len(args))
		}
		for k, arg := range args {
			expanded, err := expandIfs(model, arg)
			if err != nil {
				return 0, err
			}
			args[k] = expanded
		}
		nested := args[len(args)-1]
		for k := len(args) - 3; k >= 0; k -= 2 {
			nested = "If(" + args[k] + "," + args[k+1] + "," + nested + ")"
		}
		b.WriteString(nested)
		return closing + 1, nil
	})
}

// rewriteCellRefs turns Cell[t], Model.Cell[t] and Model{k:v}.Cell[t]
// into Eval calls.
func rewriteCellRefs(model, s string) (string, error) {
	return walk(s, func(b *strings.Builder, name string, _, end int) (int, error) {
		target, cell := model, name
		var overrides string
		j := end
		switch {
		case j < len(s) && s[j] == '{':
			closing := matchClose(s, j)
			if closing < 0 || closing+1 >= len(s) || s[closing+1] != '.' {
				return -1, nil
			}
			cellName, e := readIdent(s, closing+2)
			if cellName == "" {
				return -1, nil
			}
			kv, err := rewriteOverrides(model, s[j+1:closing])
			if err != nil {
				return 0, err
			}
			target, cell, overrides, j = name, cellName, kv, e
		case j < len(s) && s[j] == '.':
			cellName, e := readIdent(s, j+1)
			if cellName == "" {
				return -1, nil
			}
			target, cell, j = name, cellName, e
		}
		if j >= len(s) || s[j] != '[' {
			return -1, nil
		}
		closing := matchClose(s, j)
		if closing < 0 {
			return -1, nil
		}
		index, err := rewriteCellRefs(model, strings.TrimSpace(s[j+1:closing]))
		if err != nil {
			return 0, err
		}
		b.WriteString("Eval(" + quote(target) + "," + quote(cell) + "," + index + overrides + ")")
		return closing + 1, nil
	})
}

// rewriteOverrides renders a k1:v1,k2:v2 block as ,"k1",v1,"k2",v2.
func rewriteOverrides(model, block string) (string, error) {
	var b strings.Builder
	for _, pair := range splitTopLevel(block, ',') {
		if pair == "" {
			continue
		}
		key, val, ok := cutTopLevel(pair, ':')
		if !ok {
			return "", fmt.Errorf("override %q: expected key:value", pair)
		}
		rewritten, err := rewriteCellRefs(model, val)
		if err != nil {
			return "", err
		}
		b.WriteString("," + quote(unquote(key)) + "," + rewritten)
	}
	return b.String(), nil
}

// cutTopLevel splits s around the first sep that is not nested in brackets
// or string literals.
func cutTopLevel(s string, sep byte) (string, string, bool) {
	depth := 0
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
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return s, "", false
}

var aggregates = map[string]bool{"Sum": true, "Prd": true, "Vector": true}

// injectAggregateModel turns Sum(cell,a,b) into Sum("Model","cell",a,b).
// Calls that already name a model are left alone.
func injectAggregateModel(model, s string) (string, error) {
	return walk(s, func(b *strings.Builder, name string, _, end int) (int, error) {
		if !aggregates[name] || end >= len(s) || s[end] != '(' {
			return -1, nil
		}
		closing := matchClose(s, end)
		if closing < 0 {
			return -1, nil
		}
		args := splitTopLevel(s[end+1:closing], ',')
		if len(args) != 3 || isQuoted(args[0]) {
			return -1, nil
		}
		target, cell := model, args[0]
		if m, c, ok := strings.Cut(args[0], "."); ok {
			target, cell = m, c
		}
		if !isIdentifier(target) || !isIdentifier(cell) {
			return -1, nil
		}
		for k := 1; k < 3; k++ {
			rewritten, err := injectAggregateModel(model, args[k])
			if err != nil {
				return 0, err
			}
			args[k] = rewritten
		}
		b.WriteString(name + "(" + quote(target) + "," + quote(cell) + "," + args[1] + "," + args[2] + ")")
		return closing + 1, nil
	})
}

// rewriteAssum turns Assum(k1,k2,...)[t] into Assum("Model",t,k1,k2,...).
func rewriteAssum(model, s string) (string, error) {
	return walk(s, func(b *strings.Builder, name string, _, end int) (int, error) {
		if name != "Assum" || end >= len(s) || s[end] != '(' {
			return -1, nil
		}
		closing := matchClose(s, end)
		if closing < 0 || closing+1 >= len(s) || s[closing+1] != '[' {
			return -1, nil
		}
		idxClose := matchClose(s, closing+1)
		if idxClose < 0 {
			return -1, nil
		}
		index, err := rewriteAssum(model, strings.TrimSpace(s[closing+2:idxClose]))
		if err != nil {
			return 0, err
		}
		keys, err := rewriteAssum(model, strings.TrimSpace(s[end+1:closing]))
		if err != nil {
			return 0, err
		}
		b.WriteString("Assum(" + quote(model) + "," + index)
		if keys != "" {
			b.WriteString("," + keys)
		}
		b.WriteString(")")
		return idxClose + 1, nil
	})
}

func isIdentifier(s string) bool {
	name, end := readIdent(s, 0)
	return name != "" && end == len(s)
}

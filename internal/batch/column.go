// Package batch runs projections over every model point and streams the
// configured output columns into tab-separated table files.
package batch

import (
	"fmt"
	"strings"

	"github.com/vk/cashgrid/internal/engine"
)

// DefaultJoinDelimiter separates values of a "join" column.
const DefaultJoinDelimiter = ","

// Column is one output column. Value is a formula evaluated with t bound;
// Range, when set, is "start~end" with each end an integer formula, and
// repeats the column for every t in the range.
type Column struct {
	Table  string
	Name   string
	Value  string
	Range  string
	Format string
}

// Table is an ordered set of columns written to one file.
type Table struct {
	Name    string
	Columns []Column
}

// Group collects columns into tables in order of first appearance.
func Group(cols []Column) ([]Table, error) {
	var tables []Table
	index := make(map[string]int)
	for _, c := range cols {
		if c.Table == "" || c.Name == "" {
			return nil, fmt.Errorf("column %q of table %q: table and name are required", c.Name, c.Table)
		}
		if _, _, err := c.rangeBounds(); err != nil {
			return nil, err
		}
		i, ok := index[c.Table]
		if !ok {
			i = len(tables)
			index[c.Table] = i
			tables = append(tables, Table{Name: c.Table})
		}
		tables[i].Columns = append(tables[i].Columns, c)
	}
	return tables, nil
}

// rangeBounds splits Range into its start and end formulas.
func (c Column) rangeBounds() (start, end string, err error) {
	if strings.TrimSpace(c.Range) == "" {
		return "", "", nil
	}
	start, end, ok := strings.Cut(c.Range, "~")
	if !ok || strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return "", "", fmt.Errorf("column %s.%s: range %q must be start~end", c.Table, c.Name, c.Range)
	}
	return start, end, nil
}

// join reports whether the column emits a single delimiter-joined field,
// and with which delimiter.
func (c Column) join() (string, bool) {
	switch {
	case c.Format == "join":
		return DefaultJoinDelimiter, true
	case strings.HasPrefix(c.Format, "join:"):
		return strings.TrimPrefix(c.Format, "join:"), true
	}
	return "", false
}

// layout returns the printf layout for single values.
func (c Column) layout() string {
	if _, ok := c.join(); ok {
		return ""
	}
	return c.Format
}

// CheckColumns compiles the formulas of every column against e without
// evaluating them. It returns one error per column that fails.
func CheckColumns(e *engine.Engine, cols []Column) []error {
	var errs []error
	for _, c := range cols {
		if _, err := e.CompileDynamic(c.Value); err != nil {
			errs = append(errs, fmt.Errorf("column %s.%s: %w", c.Table, c.Name, err))
			continue
		}
		start, end, err := c.rangeBounds()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if start == "" {
			continue
		}
		for _, src := range []string{start, end} {
			if _, err := e.CompileInt(src); err != nil {
				errs = append(errs, fmt.Errorf("column %s.%s: range: %w", c.Table, c.Name, err))
				break
			}
		}
	}
	return errs
}

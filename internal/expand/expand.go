// Package expand turns compact model-point rows into concrete model
// points. A raw cell may hold a comma list ("M,F") or an integer range
// ("18~65"); a row expands to the Cartesian product of its cells.
package expand

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vk/cashgrid/internal/value"
)

// ColumnType is the declared type of a model-point column.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt
	TypeDouble
	TypeDate
	TypeBool
)

var typeNames = map[ColumnType]string{
	TypeString: "string",
	TypeInt:    "int",
	TypeDouble: "double",
	TypeDate:   "date",
	TypeBool:   "bool",
}

func (c ColumnType) String() string {
	if n, ok := typeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ColumnType(%d)", int(c))
}

// Kind returns the value kind the column decodes to.
func (c ColumnType) Kind() value.Kind {
	switch c {
	case TypeInt, TypeDouble:
		return value.KindNumber
	case TypeDate:
		return value.KindDate
	case TypeBool:
		return value.KindBool
	default:
		return value.KindString
	}
}

// ParseColumnType accepts the type names used in point file headers.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string", "str", "text":
		return TypeString, nil
	case "int", "integer":
		return TypeInt, nil
	case "double", "float", "number":
		return TypeDouble, nil
	case "date":
		return TypeDate, nil
	case "bool", "boolean":
		return TypeBool, nil
	}
	return TypeString, fmt.Errorf("unknown column type %q", s)
}

// MaxPointsPerRow caps a single row's expansion.
const MaxPointsPerRow = 1_000_000

var ErrTooManyPoints = fmt.Errorf("row expands to more than %d points", MaxPointsPerRow)

// Expander expands rows of one typed point table.
type Expander struct {
	Types   []ColumnType
	Headers []string
}

// New validates that every header has a type.
func New(types []ColumnType, headers []string) (*Expander, error) {
	if len(types) != len(headers) {
		return nil, fmt.Errorf("%d column types for %d headers", len(types), len(headers))
	}
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if h == "" {
			return nil, errors.New("blank column header")
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
	}
	return &Expander{Types: types, Headers: headers}, nil
}

// ExpandRow expands one raw row into concrete points. The first column
// varies slowest. rowIndex is recorded on every produced point.
func (e *Expander) ExpandRow(rowIndex int, row []string) ([]ModelPoint, error) {
	if len(row) > len(e.Headers) {
		return nil, fmt.Errorf("row %d: %d cells for %d columns", rowIndex, len(row), len(e.Headers))
	}
	candidates := make([][]value.Value, len(e.Headers))
	total := 1
	for i, typ := range e.Types {
		var raw string
		if i < len(row) {
			raw = row[i]
		}
		vals, err := expandCell(typ, raw)
		if err != nil {
			return nil, fmt.Errorf("row %d, column %q: %w", rowIndex, e.Headers[i], err)
		}
		candidates[i] = vals
		total *= len(vals)
		if total > MaxPointsPerRow {
			return nil, fmt.Errorf("row %d: %w", rowIndex, ErrTooManyPoints)
		}
	}

	points := make([]ModelPoint, 0, total)
	idx := make([]int, len(candidates))
	for sub := 0; sub < total; sub++ {
		vals := make([]value.Value, len(candidates))
		for i, c := range candidates {
			vals[i] = c[idx[i]]
		}
		points = append(points, ModelPoint{Row: rowIndex, Sub: sub, Headers: e.Headers, Values: vals})
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(candidates[i]) {
				break
			}
			idx[i] = 0
		}
	}
	return points, nil
}

// expandCell returns the candidate values of one raw cell.
func expandCell(typ ColumnType, raw string) ([]value.Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []value.Value{value.Default(typ.Kind())}, nil
	}
	var out []value.Value
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "~"); ok && (typ == TypeInt || typ == TypeDouble) {
			vals, err := expandRange(lo, hi)
			if err != nil {
				return nil, err
			}
			out = append(out, vals...)
			continue
		}
		v, err := parseCell(typ, part)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func expandRange(lo, hi string) ([]value.Value, error) {
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("invalid range start %q", lo)
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return nil, fmt.Errorf("invalid range end %q", hi)
	}
	if start > end {
		return nil, fmt.Errorf("empty range %d~%d", start, end)
	}
	if end-start >= MaxPointsPerRow {
		return nil, ErrTooManyPoints
	}
	vals := make([]value.Value, 0, end-start+1)
	for i := start; i <= end; i++ {
		vals = append(vals, value.Int(i))
	}
	return vals, nil
}

func parseCell(typ ColumnType, text string) (value.Value, error) {
	v, err := value.Parse(typ.Kind(), text)
	if err != nil {
		return value.Null, err
	}
	if typ == TypeInt && v.Float() != float64(v.Int()) {
		return value.Null, fmt.Errorf("invalid int %q", text)
	}
	return v, nil
}

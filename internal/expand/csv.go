package expand

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV reads a model-point table. Header cells are "Name:type" with
// the type defaulting to string.
func ReadCSV(r io.Reader) (types []ColumnType, headers []string, rows [][]string, err error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading model points: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil, errors.New("reading model points: missing header")
	}
	for _, cell := range records[0] {
		name, typ, _ := strings.Cut(cell, ":")
		ct, err := ParseColumnType(typ)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("column %q: %w", name, err)
		}
		headers = append(headers, strings.TrimSpace(name))
		types = append(types, ct)
	}
	for _, rec := range records[1:] {
		if blankRecord(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return types, headers, rows, nil
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

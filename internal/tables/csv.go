package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadAssumptions decodes an assumption table. The header names the
// columns Model, Key1..Key3 and Cond1..Cond3 (all optional); every other
// column is a rate, ordered as it appears.
func ReadAssumptions(r io.Reader) ([]AssumptionRow, error) {
	header, records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	var rows []AssumptionRow
	for i, rec := range records {
		row, err := decodeAssumption(header, rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeAssumption(header, rec []string) (AssumptionRow, error) {
	var (
		row  AssumptionRow
		keys []string
	)
	for i, col := range header {
		cell := strings.TrimSpace(rec[i])
		switch name := strings.ToLower(col); {
		case name == "model":
			row.Model = cell
		case strings.HasPrefix(name, "key"):
			keys = append(keys, cell)
		case strings.HasPrefix(name, "cond"):
			if cell != "" {
				row.Conditions = append(row.Conditions, cell)
			}
		default:
			if cell == "" {
				row.Rates = append(row.Rates, 0)
				continue
			}
			rate, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return row, fmt.Errorf("rate column %q: %w", col, err)
			}
			row.Rates = append(row.Rates, rate)
		}
	}
	row.Key = CompositeKey(keys...)
	if row.Key == "" {
		return row, errors.New("row has no key")
	}
	return row, nil
}

// ReadExpenses decodes an expense table. The header names Product, Rider
// and Cond1..Cond3; every other column is an expense type holding a
// formula. Blank formula cells are left out of the row.
func ReadExpenses(r io.Reader) ([]ExpenseRow, error) {
	header, records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	var rows []ExpenseRow
	for i, rec := range records {
		row := ExpenseRow{Formulas: make(map[string]string)}
		for j, col := range header {
			cell := strings.TrimSpace(rec[j])
			switch name := strings.ToLower(col); {
			case name == "product":
				row.Product = cell
			case name == "rider":
				row.Rider = cell
			case strings.HasPrefix(name, "cond"):
				if cell != "" {
					row.Conditions = append(row.Conditions, cell)
				}
			default:
				if cell != "" {
					row.Formulas[col] = cell
				}
			}
		}
		if row.Product == "" {
			return nil, fmt.Errorf("line %d: row has no product", i+2)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readAll(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading table: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, errors.New("reading table: missing header")
	}
	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, records[1:], nil
}

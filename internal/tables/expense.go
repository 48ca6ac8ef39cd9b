package tables

import (
	"fmt"
	"sort"
)

// ExpenseRow is one condition-guarded bucket of named expense formulas.
type ExpenseRow struct {
	Product    string
	Rider      string
	Conditions []string
	// Formulas maps an expense type (e.g. "acquisition") to a numeric
	// formula.
	Formulas map[string]string
}

// Expenses indexes expense rows by product|rider.
type Expenses struct {
	byKey map[string][]ExpenseRow
	size  int
}

// NewExpenses builds the table.
func NewExpenses(rows []ExpenseRow) (*Expenses, error) {
	e := &Expenses{byKey: make(map[string][]ExpenseRow)}
	for i, r := range rows {
		if err := e.Add(r); err != nil {
			return nil, fmt.Errorf("expense row %d: %w", i+1, err)
		}
	}
	return e, nil
}

// Add appends a row to its bucket.
func (e *Expenses) Add(r ExpenseRow) error {
	key := CompositeKey(r.Product, r.Rider)
	if err := checkConditions(r.Conditions); err != nil {
		return fmt.Errorf("expense %q: %w", key, err)
	}
	e.byKey[key] = append(e.byKey[key], r)
	e.size++
	return nil
}

// Len returns the number of rows.
func (e *Expenses) Len() int { return e.size }

// Match returns the formula of expenseType in the first row of the
// product|rider bucket whose conditions all hold.
func (e *Expenses) Match(product, rider, expenseType string, eval ConditionFunc) (string, error) {
	key := CompositeKey(product, rider)
	for _, r := range e.byKey[key] {
		ok, err := matches(r.Conditions, eval)
		if err != nil {
			return "", fmt.Errorf("expense %q: %w", key, err)
		}
		if !ok {
			continue
		}
		formula, found := r.Formulas[expenseType]
		if !found {
			return "", fmt.Errorf("expense %q: %w %q (have %v)", key, ErrUnknownExpenseType, expenseType, typesOf(r))
		}
		return formula, nil
	}
	return "", fmt.Errorf("expense %q: %w", key, ErrNoMatch)
}

func typesOf(r ExpenseRow) []string {
	types := make([]string, 0, len(r.Formulas))
	for t := range r.Formulas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

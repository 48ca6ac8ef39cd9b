package tables

import (
	"fmt"
	"strings"
)

// AssumptionRow is one condition-guarded rate vector. An empty Model
// makes the row visible to every model.
type AssumptionRow struct {
	Model      string
	Key        string
	Conditions []string
	Rates      []float64
}

// Assumptions indexes assumption rows by composite key, keeping
// insertion order within a key.
type Assumptions struct {
	byKey map[string][]AssumptionRow
	size  int
}

// NewAssumptions builds the table. Keys are normalized through
// CompositeKey so "Mort| M" and "Mort|M" are the same bucket.
func NewAssumptions(rows []AssumptionRow) (*Assumptions, error) {
	a := &Assumptions{byKey: make(map[string][]AssumptionRow)}
	for i, r := range rows {
		if err := a.Add(r); err != nil {
			return nil, fmt.Errorf("assumption row %d: %w", i+1, err)
		}
	}
	return a, nil
}

// Add appends a row to its bucket.
func (a *Assumptions) Add(r AssumptionRow) error {
	if err := checkConditions(r.Conditions); err != nil {
		return fmt.Errorf("key %q: %w", r.Key, err)
	}
	r.Key = CompositeKey(strings.Split(r.Key, "|")...)
	a.byKey[r.Key] = append(a.byKey[r.Key], r)
	a.size++
	return nil
}

// Len returns the number of rows.
func (a *Assumptions) Len() int { return a.size }

// Match returns the first row of key whose conditions all hold. Rows
// scoped to model are tried before global rows.
func (a *Assumptions) Match(model, key string, eval ConditionFunc) (AssumptionRow, error) {
	rows, ok := a.byKey[key]
	if !ok {
		return AssumptionRow{}, fmt.Errorf("assumption %q: %w", key, ErrUnknownKey)
	}
	for _, scoped := range []bool{true, false} {
		for _, r := range rows {
			if (r.Model == model && model != "") != scoped {
				continue
			}
			if r.Model != "" && r.Model != model {
				continue
			}
			ok, err := matches(r.Conditions, eval)
			if err != nil {
				return AssumptionRow{}, fmt.Errorf("assumption %q: %w", key, err)
			}
			if ok {
				return r, nil
			}
		}
	}
	return AssumptionRow{}, fmt.Errorf("assumption %q for model %s: %w", key, model, ErrNoMatch)
}

// Rate returns rates[t], or 0 when t is outside the vector.
func (r AssumptionRow) Rate(t int) float64 {
	if t < 0 || t >= len(r.Rates) {
		return 0
	}
	return r.Rates[t]
}

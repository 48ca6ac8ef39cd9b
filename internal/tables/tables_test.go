package tables

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conds evaluates conditions against a fixed truth table.
func conds(truth map[string]bool) ConditionFunc {
	return func(src string) (bool, error) {
		if src == "" {
			return true, nil
		}
		v, ok := truth[src]
		if !ok {
			return false, errors.New("unknown condition " + src)
		}
		return v, nil
	}
}

func TestCompositeKey(t *testing.T) {
	assert.Equal(t, "Mort|M", CompositeKey("Mort", "", " M "))
	assert.Equal(t, "", CompositeKey("", " "))
}

func TestAssumptionMatch(t *testing.T) {
	a, err := NewAssumptions([]AssumptionRow{
		{Key: "Mort|M", Conditions: []string{"smoker"}, Rates: []float64{0.02}},
		{Key: "Mort|M", Rates: []float64{0.01}},
		{Model: "Term", Key: "Mort|M", Conditions: []string{"smoker"}, Rates: []float64{0.05}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, a.Len())

	t.Run("first full match wins", func(t *testing.T) {
		r, err := a.Match("Whole", "Mort|M", conds(map[string]bool{"smoker": true}))
		require.NoError(t, err)
		assert.Equal(t, []float64{0.02}, r.Rates)

		r, err = a.Match("Whole", "Mort|M", conds(map[string]bool{"smoker": false}))
		require.NoError(t, err)
		assert.Equal(t, []float64{0.01}, r.Rates)
	})

	t.Run("model scoped rows come first", func(t *testing.T) {
		r, err := a.Match("Term", "Mort|M", conds(map[string]bool{"smoker": true}))
		require.NoError(t, err)
		assert.Equal(t, []float64{0.05}, r.Rates)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := a.Match("Term", "Lapse", conds(nil))
		assert.ErrorIs(t, err, ErrUnknownKey)
	})

	t.Run("condition errors propagate", func(t *testing.T) {
		_, err := a.Match("Term", "Mort|M", conds(nil))
		assert.ErrorContains(t, err, "unknown condition smoker")
	})
}

func TestAssumptionNoMatch(t *testing.T) {
	a, err := NewAssumptions([]AssumptionRow{{Key: "Lapse", Conditions: []string{"x"}, Rates: []float64{1}}})
	require.NoError(t, err)
	_, err = a.Match("Main", "Lapse", conds(map[string]bool{"x": false}))
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestRateOutsideVector(t *testing.T) {
	r := AssumptionRow{Rates: []float64{0.1, 0.2}}
	assert.Equal(t, 0.2, r.Rate(1))
	assert.Zero(t, r.Rate(2))
	assert.Zero(t, r.Rate(-1))
}

func TestTooManyConditions(t *testing.T) {
	_, err := NewAssumptions([]AssumptionRow{{Key: "k", Conditions: []string{"a", "b", "c", "d"}}})
	assert.ErrorIs(t, err, ErrTooManyConditions)
}

func TestExpenseMatch(t *testing.T) {
	e, err := NewExpenses([]ExpenseRow{
		{Product: "TL", Rider: "ADB", Conditions: []string{"big"}, Formulas: map[string]string{"maint": "50"}},
		{Product: "TL", Rider: "ADB", Formulas: map[string]string{"maint": "10", "acq": "Premium*0.1"}},
	})
	require.NoError(t, err)

	f, err := e.Match("TL", "ADB", "maint", conds(map[string]bool{"big": true}))
	require.NoError(t, err)
	assert.Equal(t, "50", f)

	f, err = e.Match("TL", "ADB", "acq", conds(map[string]bool{"big": false}))
	require.NoError(t, err)
	assert.Equal(t, "Premium*0.1", f)

	_, err = e.Match("TL", "ADB", "acq", conds(map[string]bool{"big": true}))
	assert.ErrorIs(t, err, ErrUnknownExpenseType)

	_, err = e.Match("WL", "", "maint", conds(nil))
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.False(t, errors.Is(err, ErrUnknownExpenseType))
}

func TestReadAssumptions(t *testing.T) {
	src := "Model,Key1,Key2,Cond1,0,1,2\n" +
		",Mort,M,Age>40,0.01,0.02,\n" +
		"Term,Lapse,,,0.1,0.05,0.03\n"
	rows, err := ReadAssumptions(strings.NewReader(src))
	require.NoError(t, err)

	want := []AssumptionRow{
		{Key: "Mort|M", Conditions: []string{"Age>40"}, Rates: []float64{0.01, 0.02, 0}},
		{Model: "Term", Key: "Lapse", Rates: []float64{0.1, 0.05, 0.03}},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	_, err = ReadAssumptions(strings.NewReader("Key1,0\nMort,abc\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestReadExpenses(t *testing.T) {
	src := "Product,Rider,Cond1,maint,acq\nTL,ADB,Age>40,50,\nTL,,,10,Premium*0.1\n"
	rows, err := ReadExpenses(strings.NewReader(src))
	require.NoError(t, err)

	want := []ExpenseRow{
		{Product: "TL", Rider: "ADB", Conditions: []string{"Age>40"}, Formulas: map[string]string{"maint": "50"}},
		{Product: "TL", Formulas: map[string]string{"maint": "10", "acq": "Premium*0.1"}},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

package expand

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cashgrid/internal/value"
)

func texts(points []ModelPoint) [][]string {
	out := make([][]string, len(points))
	for i, p := range points {
		out[i] = p.Texts()
	}
	return out
}

func TestExpandIntRange(t *testing.T) {
	e, err := New([]ColumnType{TypeInt}, []string{"Age"})
	require.NoError(t, err)

	points, err := e.ExpandRow(0, []string{"10~12"})
	require.NoError(t, err)
	require.Len(t, points, 3)
	for i, want := range []float64{10, 11, 12} {
		assert.Equal(t, want, points[i].Values[0].Float())
		assert.Equal(t, i, points[i].Sub)
	}
}

func TestExpandBlankDouble(t *testing.T) {
	e, err := New([]ColumnType{TypeDouble}, []string{"Premium"})
	require.NoError(t, err)

	points, err := e.ExpandRow(3, []string{""})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, value.Number(0), points[0].Values[0])
	assert.Equal(t, 3, points[0].Row)
}

func TestExpandCartesianProduct(t *testing.T) {
	e, err := New(
		[]ColumnType{TypeString, TypeInt, TypeBool},
		[]string{"Sex", "Age", "Smoker"},
	)
	require.NoError(t, err)

	points, err := e.ExpandRow(0, []string{"M,F", "30~31, 40", "yes"})
	require.NoError(t, err)

	want := [][]string{
		{"M", "30", "true"},
		{"M", "31", "true"},
		{"M", "40", "true"},
		{"F", "30", "true"},
		{"F", "31", "true"},
		{"F", "40", "true"},
	}
	if diff := cmp.Diff(want, texts(points)); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}

	age, ok := points[4].Get("Age")
	require.True(t, ok)
	assert.Equal(t, 31.0, age.Float())
	assert.Equal(t, map[string]value.Value{
		"Sex": value.String("F"), "Age": value.Int(31), "Smoker": value.Bool(true),
	}, points[4].Frame())
}

func TestExpandShortRowUsesDefaults(t *testing.T) {
	e, err := New([]ColumnType{TypeString, TypeInt}, []string{"Plan", "Term"})
	require.NoError(t, err)
	points, err := e.ExpandRow(0, []string{"A"})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, []string{"A", "0"}, points[0].Texts())
}

func TestExpandErrors(t *testing.T) {
	e, err := New([]ColumnType{TypeInt, TypeDate}, []string{"Age", "Issue"})
	require.NoError(t, err)

	testCases := []struct {
		name string
		row  []string
		want string
	}{
		{name: "reversed range", row: []string{"12~10", ""}, want: "empty range 12~10"},
		{name: "bad int", row: []string{"1.5", ""}, want: `invalid int "1.5"`},
		{name: "bad date", row: []string{"1", "someday"}, want: `invalid date "someday"`},
		{name: "too many cells", row: []string{"1", "", "x"}, want: "3 cells for 2 columns"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.ExpandRow(7, tc.row)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			assert.Contains(t, err.Error(), "row 7")
		})
	}
}

func TestNewRejectsBadHeaders(t *testing.T) {
	_, err := New([]ColumnType{TypeInt}, []string{"a", "b"})
	assert.Error(t, err)
	_, err = New([]ColumnType{TypeInt, TypeInt}, []string{"a", "a"})
	assert.ErrorContains(t, err, "duplicate column")
}

func TestReadCSV(t *testing.T) {
	src := "Plan,Age:int,Premium:double,Issue:date\n" +
		"# comment rows are skipped\n" +
		"A,30~32,100.5,2024-01-01\n" +
		",,,\n" +
		"B,40,,\n"
	types, headers, rows, err := ReadCSV(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, []ColumnType{TypeString, TypeInt, TypeDouble, TypeDate}, types)
	assert.Equal(t, []string{"Plan", "Age", "Premium", "Issue"}, headers)
	assert.Equal(t, [][]string{{"A", "30~32", "100.5", "2024-01-01"}, {"B", "40", "", ""}}, rows)

	_, _, _, err = ReadCSV(strings.NewReader("Age:decimal\n"))
	assert.ErrorContains(t, err, `unknown column type "decimal"`)
}

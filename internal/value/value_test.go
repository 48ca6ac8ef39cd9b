package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestPackString(t *testing.T) {
	t.Run("short strings round trip", func(t *testing.T) {
		for _, s := range []string{"", "M", "NS", "TERM10", "12345678"} {
			assert.Equal(t, s, UnpackString(PackString(s)), "input %q", s)
		}
	})

	t.Run("long strings are truncated to 8 bytes", func(t *testing.T) {
		assert.Equal(t, "ENDOWMEN", UnpackString(PackString("ENDOWMENT")))
	})

	t.Run("channel truncates only strings", func(t *testing.T) {
		assert.Equal(t, "ABCDEFGH", Channel(String("ABCDEFGHIJ")).Text())
		assert.Equal(t, 1.5, Channel(Number(1.5)).Float())
		assert.Equal(t, KindBool, Channel(Bool(true)).Kind())
	})
}

func TestDates(t *testing.T) {
	d := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	serial := DateToSerial(d)
	assert.Equal(t, 45352.0, serial)
	assert.Equal(t, d, SerialToDate(serial))

	v := Date(d)
	assert.Equal(t, KindDate, v.Kind())
	assert.Equal(t, "2024-03-01", v.Text())
	assert.Equal(t, d, v.Time())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		text string
		want Value
	}{
		{"number", KindNumber, "1.25", Number(1.25)},
		{"blank number", KindNumber, "  ", Number(0)},
		{"bool word", KindBool, "yes", Bool(true)},
		{"bool literal", KindBool, "false", Bool(false)},
		{"string", KindString, " TERM ", String("TERM")},
		{"date", KindDate, "2020-01-31", Date(time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC))},
		{"serial date", KindDate, "43861", DateSerial(43861)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.kind, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Kind(), got.Kind())
			assert.True(t, Equal(tt.want, got), "want %s, got %s", tt.want.Text(), got.Text())
		})
	}

	_, err := Parse(KindNumber, "abc")
	assert.ErrorContains(t, err, "invalid number")
}

func TestIntGuardsTruncation(t *testing.T) {
	assert.Equal(t, 3, Number(2.99999999999).Int())
	assert.Equal(t, 2, Number(2.9).Int())
	assert.Equal(t, -1, Number(-0.5).Int())
}

func TestCompareAndEqual(t *testing.T) {
	assert.True(t, Equal(Number(1), Bool(true)))
	assert.True(t, Equal(String("a"), String("a")))
	assert.False(t, Equal(String("1"), Number(2)))
	assert.Equal(t, -1, Compare(Number(1), Number(2)))
	assert.Equal(t, 1, Compare(String("b"), String("a")))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.990000", Format(Number(0.99), "%.6f"))
	assert.Equal(t, "12", Format(Number(11.6), "%d"))
	assert.Equal(t, "0.99", Format(Number(0.99), ""))
	assert.Equal(t, "TERM", Format(String("TERM"), "%.2f"))
	assert.Equal(t, "100", FormatNumber(100))
}

func TestCtyConversion(t *testing.T) {
	v, err := FromCty(cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.StringVal("x"), cty.True}))
	require.NoError(t, err)
	require.Equal(t, KindList, v.Kind())
	items := v.Items()
	require.Len(t, items, 3)
	assert.Equal(t, 1.0, items[0].Float())
	assert.Equal(t, "x", items[1].Text())
	assert.True(t, items[2].Truthy())

	back := ToCty(Number(2.5))
	f, _ := back.AsBigFloat().Float64()
	assert.Equal(t, 2.5, f)
	assert.Equal(t, cty.StringVal("a"), ToCty(String("a")))
}

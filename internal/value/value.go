// Package value defines the tagged value type that flows through formulas,
// sheets and output tables, along with the codec that converts between its
// numeric, string and date representations.
package value

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindDate
	KindBool
	KindList
)

// String implements fmt.Stringer for Kind.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Epsilon guards float-to-int truncation against arithmetic noise such as
// 2.9999999999 standing in for 3.
const Epsilon = 1e-7

// Value is an immutable tagged union. The zero Value is Null.
type Value struct {
	kind Kind
	num  float64
	str  string
	list []Value
}

// Null is the empty value.
var Null = Value{}

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int returns a numeric value holding an integer.
func Int(i int) Value { return Value{kind: KindNumber, num: float64(i)} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, num: 1}
	}
	return Value{kind: KindBool}
}

// Date returns a date value. Only the calendar day is kept.
func Date(t time.Time) Value { return Value{kind: KindDate, num: DateToSerial(t)} }

// DateSerial returns a date value from a serial day number.
func DateSerial(serial float64) Value { return Value{kind: KindDate, num: math.Floor(serial)} }

// List returns a list value. The slice is not copied.
func List(items []Value) Value { return Value{kind: KindList, list: items} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumeric reports whether v can be used in arithmetic without going
// through the string codec.
func (v Value) IsNumeric() bool {
	return v.kind == KindNumber || v.kind == KindDate || v.kind == KindBool || v.kind == KindNull
}

// Float returns v on the numeric channel. Strings are packed with
// PackString, so only their first 8 bytes survive.
func (v Value) Float() float64 {
	switch v.kind {
	case KindNumber, KindDate, KindBool:
		return v.num
	case KindString:
		return PackString(v.str)
	case KindList:
		if len(v.list) == 0 {
			return 0
		}
		return v.list[0].Float()
	default:
		return 0
	}
}

// Int returns v truncated towards negative infinity after adding Epsilon.
func (v Value) Int() int {
	return FloorInt(v.Float())
}

// FloorInt converts f to an int, guarding against float truncation noise.
func FloorInt(f float64) int {
	return int(math.Floor(f + Epsilon))
}

// Truthy returns v as a boolean. Numbers are true when non-zero, strings
// when they spell "true" or a non-zero number.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool, KindNumber, KindDate:
		return v.num != 0
	case KindString:
		s := strings.TrimSpace(v.str)
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f != 0
		}
		return s != ""
	case KindList:
		return len(v.list) > 0
	default:
		return false
	}
}

// Text returns the display form of v.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return FormatNumber(v.num)
	case KindDate:
		return SerialToDate(v.num).Format(DateLayout)
	case KindBool:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.Text()
		}
		return strings.Join(parts, ";")
	default:
		return ""
	}
}

// Time returns v as a calendar date.
func (v Value) Time() time.Time {
	return SerialToDate(v.Float())
}

// Items returns the elements of a list value, or v itself as a single
// element for scalars.
func (v Value) Items() []Value {
	switch v.kind {
	case KindList:
		return v.list
	case KindNull:
		return nil
	default:
		return []Value{v}
	}
}

// Equal compares two values the way formulas do: numerically when both sides
// are numeric, textually otherwise.
func Equal(a, b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		return a.Float() == b.Float()
	}
	if a.kind == KindList || b.kind == KindList {
		ai, bi := a.Items(), b.Items()
		if len(ai) != len(bi) {
			return false
		}
		for i := range ai {
			if !Equal(ai[i], bi[i]) {
				return false
			}
		}
		return true
	}
	return a.Text() == b.Text()
}

// Compare orders two values numerically when both are numeric and
// lexically otherwise. It returns -1, 0 or 1.
func Compare(a, b Value) int {
	if a.IsNumeric() && b.IsNumeric() {
		x, y := a.Float(), b.Float()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return strings.Compare(a.Text(), b.Text())
}

// FormatNumber renders f in its shortest round-tripping form.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

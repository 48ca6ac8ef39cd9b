package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical text form of dates.
const DateLayout = "2006-01-02"

// MaxPackedBytes is the number of string bytes that survive the numeric
// channel. Longer strings are truncated.
const MaxPackedBytes = 8

// epoch is day zero of the serial date system (the spreadsheet convention).
var epoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{DateLayout, "2006/01/02", "01/02/2006", "2006-01-02T15:04:05Z07:00"}

// PackString stores up to the first 8 bytes of s in the bits of a float64.
func PackString(s string) float64 {
	var buf [MaxPackedBytes]byte
	copy(buf[:], s)
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))
}

// UnpackString reverses PackString. Trailing zero bytes are dropped.
func UnpackString(f float64) string {
	var buf [MaxPackedBytes]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	n := MaxPackedBytes
	for n > 0 && buf[n-1] == 0 {
		n--
	}
	return string(buf[:n])
}

// Channel passes v through the numeric channel that sheets store values in.
// Numbers, dates and booleans are returned unchanged; strings come back
// truncated to MaxPackedBytes.
func Channel(v Value) Value {
	if v.kind != KindString {
		return v
	}
	return String(UnpackString(PackString(v.str)))
}

// DateToSerial converts a calendar date to its serial day number.
func DateToSerial(t time.Time) float64 {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return math.Floor(d.Sub(epoch).Hours()/24 + 0.5)
}

// SerialToDate converts a serial day number to a calendar date.
func SerialToDate(serial float64) time.Time {
	return epoch.AddDate(0, 0, int(math.Floor(serial)))
}

// ParseDate accepts ISO dates, slash dates and serial day numbers.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return SerialToDate(f), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// Parse converts raw text to a value of the given kind. Blank text yields
// the kind's default.
func Parse(kind Kind, text string) (Value, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Default(kind), nil
	}
	switch kind {
	case KindNumber:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Null, fmt.Errorf("invalid number %q", text)
		}
		return Number(f), nil
	case KindBool:
		switch strings.ToLower(text) {
		case "1", "y", "yes":
			return Bool(true), nil
		case "0", "n", "no":
			return Bool(false), nil
		}
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Null, fmt.Errorf("invalid bool %q", text)
		}
		return Bool(b), nil
	case KindDate:
		t, err := ParseDate(text)
		if err != nil {
			return Null, err
		}
		return Date(t), nil
	default:
		return String(text), nil
	}
}

// Default returns the blank value of a kind.
func Default(kind Kind) Value {
	switch kind {
	case KindNumber:
		return Number(0)
	case KindBool:
		return Bool(false)
	case KindDate:
		return DateSerial(0)
	case KindString:
		return String("")
	default:
		return Null
	}
}

// Format renders v using a printf layout for numeric values. An empty
// layout, or a non-numeric value, falls back to Text.
func Format(v Value, layout string) string {
	verb := printfVerb(layout)
	if verb == 0 || v.kind == KindString || v.kind == KindDate || v.kind == KindList {
		return v.Text()
	}
	switch verb {
	case 'd', 'x', 'X':
		return fmt.Sprintf(layout, int64(math.Round(v.Float())))
	case 's', 'v':
		return fmt.Sprintf(layout, v.Text())
	}
	return fmt.Sprintf(layout, v.Float())
}

// printfVerb returns the verb of the first directive in layout, or 0.
func printfVerb(layout string) byte {
	i := strings.IndexByte(layout, '%')
	if i < 0 {
		return 0
	}
	for j := i + 1; j < len(layout); j++ {
		c := layout[j]
		if strings.IndexByte("+-# 0123456789.", c) >= 0 {
			continue
		}
		return c
	}
	return 0
}

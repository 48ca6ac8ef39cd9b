package expand

import (
	"fmt"

	"github.com/vk/cashgrid/internal/value"
)

// ModelPoint is one concrete, fully typed point. Row is the index of the
// raw row it came from and Sub its position in that row's expansion.
type ModelPoint struct {
	Row     int
	Sub     int
	Headers []string
	Values  []value.Value
}

// Get returns the value of the named column.
func (p ModelPoint) Get(name string) (value.Value, bool) {
	for i, h := range p.Headers {
		if h == name {
			return p.Values[i], true
		}
	}
	return value.Null, false
}

// Frame returns the point's columns as environment bindings.
func (p ModelPoint) Frame() map[string]value.Value {
	frame := make(map[string]value.Value, len(p.Headers))
	for i, h := range p.Headers {
		frame[h] = p.Values[i]
	}
	return frame
}

// Texts renders every value for output.
func (p ModelPoint) Texts() []string {
	out := make([]string, len(p.Values))
	for i, v := range p.Values {
		out[i] = v.Text()
	}
	return out
}

func (p ModelPoint) String() string {
	return fmt.Sprintf("point %d.%d", p.Row, p.Sub)
}

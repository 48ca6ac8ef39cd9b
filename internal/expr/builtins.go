package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vk/cashgrid/internal/value"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

func registerBuiltins(c *Compiler) {
	// String and rounding helpers come straight from the cty standard library.
	for name, f := range map[string]function.Function{
		"Upper":   stdlib.UpperFunc,
		"Lower":   stdlib.LowerFunc,
		"Len":     stdlib.StrlenFunc,
		"Substr":  stdlib.SubstrFunc,
		"Trim":    stdlib.TrimSpaceFunc,
		"Replace": stdlib.ReplaceFunc,
		"Format":  stdlib.FormatFunc,
		"Abs":     stdlib.AbsoluteFunc,
		"Floor":   stdlib.FloorFunc,
		"Ceiling": stdlib.CeilFunc,
		"Pow":     stdlib.PowFunc,
		"Log":     stdlib.LogFunc,
		"Sign":    stdlib.SignumFunc,
	} {
		c.Register(name, ctyFunc(f))
	}

	c.Register("Not", fixed(1, func(a []value.Value) (value.Value, error) {
		return value.Bool(!a[0].Truthy()), nil
	}))
	c.Register("Min", extreme(-1))
	c.Register("Max", extreme(1))
	c.Register("Round", roundFunc)
	c.Register("Exp", math1(math.Exp))
	c.Register("Ln", math1(math.Log))
	c.Register("Sqrt", math1(math.Sqrt))
	c.Register("Str", fixed(1, func(a []value.Value) (value.Value, error) {
		return value.String(a[0].Text()), nil
	}))
	c.Register("Num", fixed(1, numFunc))
	c.Register("Date", fixed(3, func(a []value.Value) (value.Value, error) {
		return value.Date(time.Date(a[0].Int(), time.Month(a[1].Int()), a[2].Int(), 0, 0, 0, 0, time.UTC)), nil
	}))
	c.Register("Year", fixed(1, func(a []value.Value) (value.Value, error) {
		return value.Int(a[0].Time().Year()), nil
	}))
	c.Register("Month", fixed(1, func(a []value.Value) (value.Value, error) {
		return value.Int(int(a[0].Time().Month())), nil
	}))
	c.Register("Day", fixed(1, func(a []value.Value) (value.Value, error) {
		return value.Int(a[0].Time().Day()), nil
	}))
	c.Register("EDate", fixed(2, func(a []value.Value) (value.Value, error) {
		return value.Date(addMonths(a[0].Time(), a[1].Int())), nil
	}))
	c.Register("Npv", npvFunc)
}

// fixed wraps fn with an exact arity check.
func fixed(n int, fn Func) Func {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != n {
			return value.Null, fmt.Errorf("%w: want %d, got %d", ErrArity, n, len(args))
		}
		return fn(args)
	}
}

func math1(f func(float64) float64) Func {
	return fixed(1, func(a []value.Value) (value.Value, error) {
		return value.Number(f(a[0].Float())), nil
	})
}

// extreme returns Min (sign -1) or Max (sign 1) over all arguments, with
// list arguments flattened.
func extreme(sign int) Func {
	return func(args []value.Value) (value.Value, error) {
		var best value.Value
		found := false
		for _, a := range args {
			for _, item := range a.Items() {
				if !found || value.Compare(item, best)*sign > 0 {
					best, found = item, true
				}
			}
		}
		if !found {
			return value.Null, fmt.Errorf("%w: need at least one value", ErrArity)
		}
		return best, nil
	}
}

func roundFunc(args []value.Value) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value.Null, fmt.Errorf("%w: want 1 or 2, got %d", ErrArity, len(args))
	}
	digits := 0
	if len(args) == 2 {
		digits = args[1].Int()
	}
	scale := math.Pow(10, float64(digits))
	return value.Number(math.Round(args[0].Float()*scale) / scale), nil
}

func numFunc(args []value.Value) (value.Value, error) {
	a := args[0]
	if a.Kind() != value.KindString {
		return value.Number(a.Float()), nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(a.Text()), 64)
	if err != nil {
		return value.Null, fmt.Errorf("not a number: %q", a.Text())
	}
	return value.Number(f), nil
}

// npvFunc discounts the cash flows in args[1:] at rate args[0], the first
// flow falling one period from now.
func npvFunc(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Null, fmt.Errorf("%w: want rate and at least one value", ErrArity)
	}
	rate := args[0].Float()
	total, period := 0.0, 1
	for _, a := range args[1:] {
		for _, item := range a.Items() {
			total += item.Float() / math.Pow(1+rate, float64(period))
			period++
		}
	}
	return value.Number(total), nil
}

// addMonths moves d by n calendar months, clamping to the last day of the
// target month.
func addMonths(d time.Time, n int) time.Time {
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// ctyFunc adapts a cty function, converting each argument to the declared
// parameter type before the call.
func ctyFunc(f function.Function) Func {
	params := f.Params()
	varParam := f.VarParam()
	return func(args []value.Value) (value.Value, error) {
		if len(args) < len(params) || (varParam == nil && len(args) > len(params)) {
			return value.Null, fmt.Errorf("%w: want %d, got %d", ErrArity, len(params), len(args))
		}
		in := make([]cty.Value, len(args))
		for i, a := range args {
			want := cty.DynamicPseudoType
			if i < len(params) {
				want = params[i].Type
			} else {
				want = varParam.Type
			}
			cv := value.ToCty(a)
			if !want.Equals(cty.DynamicPseudoType) {
				converted, err := convert.Convert(cv, want)
				if err != nil {
					return value.Null, fmt.Errorf("argument %d: %w", i+1, err)
				}
				cv = converted
			}
			in[i] = cv
		}
		out, err := f.Call(in)
		if err != nil {
			return value.Null, err
		}
		return value.FromCty(out)
	}
}

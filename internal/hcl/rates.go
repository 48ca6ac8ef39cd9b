package hcl

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ratesContext is the evaluation context of assumption rate vectors. It
// has no variables, only list builders.
var ratesContext = &hcl.EvalContext{
	Functions: map[string]function.Function{
		"concat":  stdlib.ConcatFunc,
		"flatten": stdlib.FlattenFunc,
		"max":     stdlib.MaxFunc,
		"min":     stdlib.MinFunc,
		"pow":     stdlib.PowFunc,
		"range":   stdlib.RangeFunc,
		"reverse": stdlib.ReverseListFunc,
		"slice":   stdlib.SliceFunc,
	},
}

// decodeRates evaluates a rates expression into a vector indexed by t.
func decodeRates(expr hcl.Expression) ([]float64, error) {
	val, diags := expr.Value(ratesContext)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, errors.New("rates must not be null")
	}
	if !val.IsWhollyKnown() {
		return nil, errors.New("rates must be known")
	}
	list, err := convert.Convert(val, cty.List(cty.Number))
	if err != nil {
		return nil, fmt.Errorf("rates must be a list of numbers: %w", err)
	}
	var rates []float64
	if err := gocty.FromCtyValue(list, &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

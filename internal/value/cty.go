package value

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// FromCty converts a known cty value into a Value. Numbers, strings, bools
// and homogeneous or heterogeneous sequences are supported.
func FromCty(v cty.Value) (Value, error) {
	if v.IsNull() {
		return Null, nil
	}
	if !v.IsKnown() {
		return Null, fmt.Errorf("value is not known")
	}
	ty := v.Type()
	switch {
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return Number(f), nil
	case ty == cty.String:
		return String(v.AsString()), nil
	case ty == cty.Bool:
		return Bool(v.True()), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		items := make([]Value, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			item, err := FromCty(ev)
			if err != nil {
				return Null, err
			}
			items = append(items, item)
		}
		return List(items), nil
	}
	return Null, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}

// ToCty converts v into its cty equivalent. Dates become serial numbers.
func ToCty(v Value) cty.Value {
	switch v.kind {
	case KindNumber, KindDate:
		return cty.NumberFloatVal(v.num)
	case KindString:
		return cty.StringVal(v.str)
	case KindBool:
		return cty.BoolVal(v.num != 0)
	case KindList:
		if len(v.list) == 0 {
			return cty.EmptyTupleVal
		}
		items := make([]cty.Value, len(v.list))
		for i, item := range v.list {
			items[i] = ToCty(item)
		}
		return cty.TupleVal(items)
	default:
		return cty.NullVal(cty.DynamicPseudoType)
	}
}

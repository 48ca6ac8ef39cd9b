package expr

import (
	"github.com/vk/cashgrid/internal/value"
)

// Expression is a compiled formula. It holds no environment state, so one
// Expression can be evaluated any number of times against changing
// bindings.
type Expression struct {
	// Source is the text the expression was compiled from.
	Source string
	// Normalized is Source rewritten into HCL syntax.
	Normalized string

	root node
}

// Constant returns an expression that always yields v.
func Constant(v value.Value) *Expression {
	return &Expression{Source: v.Text(), Normalized: v.Text(), root: constant(v)}
}

// Evaluate runs the expression against the current bindings of env.
func (x *Expression) Evaluate(env *Env) (value.Value, error) {
	return x.root(env)
}

// EvalBool evaluates and coerces the result to a boolean.
func (x *Expression) EvalBool(env *Env) (bool, error) {
	v, err := x.root(env)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// EvalFloat evaluates and coerces the result to a float.
func (x *Expression) EvalFloat(env *Env) (float64, error) {
	v, err := x.root(env)
	if err != nil {
		return 0, err
	}
	return v.Float(), nil
}

// EvalInt evaluates and truncates the result to an int.
func (x *Expression) EvalInt(env *Env) (int, error) {
	v, err := x.root(env)
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

// EvalString evaluates and renders the result as text.
func (x *Expression) EvalString(env *Env) (string, error) {
	v, err := x.root(env)
	if err != nil {
		return "", err
	}
	return v.Text(), nil
}

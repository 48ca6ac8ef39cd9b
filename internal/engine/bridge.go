package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/vk/cashgrid/internal/expr"
	"github.com/vk/cashgrid/internal/model"
	"github.com/vk/cashgrid/internal/tables"
	"github.com/vk/cashgrid/internal/value"
)

// registerBridge exposes the engine to formulas. The transformer emits
// calls with the model name already injected, so every bridge function
// receives it as its first argument.
func (e *Engine) registerBridge() {
	e.compiler.Register("Eval", e.evalFunc)
	e.compiler.Register("Sum", e.foldFunc(e.Sum))
	e.compiler.Register("Prd", e.foldFunc(e.Prd))
	e.compiler.Register("Vector", e.vectorFunc)
	e.compiler.Register("Assum", e.assumFunc)
	e.compiler.Register("GetExpense", e.expenseFunc)
}

// maxTime bounds the magnitude of a formula time so the conversion to int
// stays exact.
const maxTime = 1 << 53

// toT converts a formula time to a step index, absorbing float noise
// from upstream arithmetic. NaN, infinities and times too large for a
// step index are range errors.
func toT(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxTime {
		return 0, fmt.Errorf("%w: time %v is not a step", ErrRange, f)
	}
	return value.FloorInt(f), nil
}

// Eval reads cell of modelName at t. Overrides select a parameter variant:
// they are merged into the model's parameter for the duration of the call
// and bound as a child scope of the environment. The variant's sheet
// outlives the call.
//
// Eval rejects t above MaxT with ErrRange instead of clamping it.
func (e *Engine) Eval(modelName, cell string, t float64, overrides ...model.Pair) (value.Value, error) {
	m, err := e.Model(modelName)
	if err != nil {
		return value.Null, err
	}
	ti, err := toT(t)
	if err != nil {
		return value.Null, fmt.Errorf("%s.%s: %w", modelName, cell, err)
	}
	if ti > e.cfg.MaxT {
		return value.Null, fmt.Errorf("%s.%s[%d]: %w (MaxT=%d)", modelName, cell, ti, ErrRange, e.cfg.MaxT)
	}
	if len(overrides) == 0 {
		return m.CurrentSheet().Get(cell, ti)
	}

	restore := m.Parameter().Merge(overrides)
	defer restore()
	sh := m.CurrentSheet()

	scope := make([]expr.Binding, 0, len(overrides))
	for _, o := range overrides {
		scope = append(scope, expr.Binding{Name: o.Key, Value: o.Value})
	}
	e.env.Push(scope...)
	defer e.env.Pop()
	return sh.Get(cell, ti)
}

// Sum adds cell over the inclusive range [start, end]. A reversed range
// yields 0.
func (e *Engine) Sum(modelName, cell string, start, end float64) (float64, error) {
	return e.fold(modelName, cell, start, end, 0, func(acc, v float64) float64 { return acc + v })
}

// Prd multiplies cell over the inclusive range [start, end]. A reversed
// range yields 0, not 1.
func (e *Engine) Prd(modelName, cell string, start, end float64) (float64, error) {
	return e.fold(modelName, cell, start, end, 1, func(acc, v float64) float64 { return acc * v })
}

func (e *Engine) fold(modelName, cell string, start, end, identity float64, op func(acc, v float64) float64) (float64, error) {
	lo, hi, err := e.bounds(modelName, cell, start, end)
	if err != nil {
		return 0, err
	}
	if hi > e.cfg.MaxT {
		return 0, fmt.Errorf("%s.%s[%d~%d]: %w (MaxT=%d)", modelName, cell, lo, hi, ErrRange, e.cfg.MaxT)
	}
	if lo > hi {
		return 0, nil
	}
	acc := identity
	for t := lo; t <= hi; t++ {
		v, err := e.Eval(modelName, cell, float64(t))
		if err != nil {
			return 0, err
		}
		acc = op(acc, v.Float())
	}
	return acc, nil
}

func (e *Engine) bounds(modelName, cell string, start, end float64) (int, int, error) {
	lo, err := toT(start)
	if err != nil {
		return 0, 0, fmt.Errorf("%s.%s: range start: %w", modelName, cell, err)
	}
	hi, err := toT(end)
	if err != nil {
		return 0, 0, fmt.Errorf("%s.%s: range end: %w", modelName, cell, err)
	}
	return lo, hi, nil
}

// Vector collects cell over the inclusive range [start, end].
func (e *Engine) Vector(modelName, cell string, start, end float64) ([]value.Value, error) {
	lo, hi, err := e.bounds(modelName, cell, start, end)
	if err != nil {
		return nil, err
	}
	if hi > e.cfg.MaxT {
		return nil, fmt.Errorf("%s.%s[%d~%d]: %w (MaxT=%d)", modelName, cell, lo, hi, ErrRange, e.cfg.MaxT)
	}
	var out []value.Value
	for t := lo; t <= hi; t++ {
		v, err := e.Eval(modelName, cell, float64(t))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Assum looks up the rate vector for the non-blank keys and returns its
// entry at t, capped at MaxT. Reading past the end of the vector yields 0.
func (e *Engine) Assum(modelName string, t float64, keys ...string) (float64, error) {
	ti, err := toT(t)
	if err != nil {
		return 0, fmt.Errorf("Assum %s: %w", strings.Join(keys, ","), err)
	}
	key := tables.CompositeKey(keys...)
	row, err := e.assumptions.Match(modelName, key, e.condition)
	if err != nil {
		return 0, err
	}
	return row.Rate(min(ti, e.cfg.MaxT)), nil
}

// GetExpense evaluates the expenseType formula of the first matching
// product|rider row.
func (e *Engine) GetExpense(product, rider, expenseType string) (float64, error) {
	src, err := e.expenses.Match(product, rider, expenseType, e.condition)
	if err != nil {
		return 0, err
	}
	x, err := e.CompileDouble(src)
	if err != nil {
		return 0, fmt.Errorf("expense %s|%s %s: %w", product, rider, expenseType, err)
	}
	return x.EvalFloat(e.env)
}

// condition evaluates a table condition against the current environment.
func (e *Engine) condition(src string) (bool, error) {
	x, err := e.CompileBool(src)
	if err != nil {
		return false, err
	}
	return x.EvalBool(e.env)
}

func (e *Engine) evalFunc(args []value.Value) (value.Value, error) {
	if len(args) < 3 {
		return value.Null, fmt.Errorf("want model, cell and t, got %d arguments", len(args))
	}
	rest := args[3:]
	if len(rest)%2 != 0 {
		return value.Null, fmt.Errorf("overrides must be key/value pairs, got %d values", len(rest))
	}
	var overrides []model.Pair
	for i := 0; i < len(rest); i += 2 {
		overrides = append(overrides, model.Pair{Key: rest[i].Text(), Value: rest[i+1]})
	}
	return e.Eval(args[0].Text(), args[1].Text(), args[2].Float(), overrides...)
}

func (e *Engine) foldFunc(fold func(m, c string, start, end float64) (float64, error)) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 4 {
			return value.Null, fmt.Errorf("want model, cell, start and end, got %d arguments", len(args))
		}
		f, err := fold(args[0].Text(), args[1].Text(), args[2].Float(), args[3].Float())
		if err != nil {
			return value.Null, err
		}
		return value.Number(f), nil
	}
}

func (e *Engine) vectorFunc(args []value.Value) (value.Value, error) {
	if len(args) != 4 {
		return value.Null, fmt.Errorf("want model, cell, start and end, got %d arguments", len(args))
	}
	items, err := e.Vector(args[0].Text(), args[1].Text(), args[2].Float(), args[3].Float())
	if err != nil {
		return value.Null, err
	}
	return value.List(items), nil
}

func (e *Engine) assumFunc(args []value.Value) (value.Value, error) {
	if len(args) < 3 {
		return value.Null, fmt.Errorf("want model, t and at least one key, got %d arguments", len(args))
	}
	keys := make([]string, 0, len(args)-2)
	for _, k := range args[2:] {
		keys = append(keys, k.Text())
	}
	f, err := e.Assum(args[0].Text(), args[1].Float(), keys...)
	if err != nil {
		return value.Null, err
	}
	return value.Number(f), nil
}

func (e *Engine) expenseFunc(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return value.Null, fmt.Errorf("want product, rider and type, got %d arguments", len(args))
	}
	f, err := e.GetExpense(args[0].Text(), args[1].Text(), args[2].Text())
	if err != nil {
		return value.Null, err
	}
	return value.Number(f), nil
}

package engine

import (
	"fmt"
	"strings"

	"github.com/vk/cashgrid/internal/expr"
	"github.com/vk/cashgrid/internal/formula"
	"github.com/vk/cashgrid/internal/value"
)

// ResultKind selects the blank default of a memoized expression.
type ResultKind int

const (
	KindBool ResultKind = iota
	KindDouble
	KindInt
	KindString
	KindDynamic
)

type memoKey struct {
	kind ResultKind
	src  string
}

var blankDefaults = map[ResultKind]value.Value{
	KindBool:    value.Bool(true),
	KindDouble:  value.Number(0),
	KindInt:     value.Int(0),
	KindString:  value.String(""),
	KindDynamic: value.Number(0),
}

// CompileBool compiles a condition. Blank text always holds.
func (e *Engine) CompileBool(src string) (*expr.Expression, error) {
	return e.compileMemo(KindBool, src)
}

// CompileDouble compiles a numeric formula. Blank text yields 0.
func (e *Engine) CompileDouble(src string) (*expr.Expression, error) {
	return e.compileMemo(KindDouble, src)
}

// CompileInt compiles an integer formula. Blank text yields 0.
func (e *Engine) CompileInt(src string) (*expr.Expression, error) {
	return e.compileMemo(KindInt, src)
}

// CompileString compiles a text formula. Blank text yields "".
func (e *Engine) CompileString(src string) (*expr.Expression, error) {
	return e.compileMemo(KindString, src)
}

// CompileDynamic compiles a formula of any result type. Blank text
// yields 0.
func (e *Engine) CompileDynamic(src string) (*expr.Expression, error) {
	return e.compileMemo(KindDynamic, src)
}

// compileMemo compiles src in the context of the main model, keyed by the
// exact source text. Failures are not memoized.
func (e *Engine) compileMemo(kind ResultKind, src string) (*expr.Expression, error) {
	key := memoKey{kind: kind, src: src}
	if x, ok := e.memo[key]; ok {
		return x, nil
	}

	var x *expr.Expression
	if strings.TrimSpace(src) == "" {
		x = expr.Constant(blankDefaults[kind])
	} else {
		res, err := formula.Transform(e.cfg.MainModel, src)
		if err != nil {
			return nil, fmt.Errorf("transform %q: %w", src, err)
		}
		if !res.Converged {
			e.logger.Warn("Formula transform did not converge.", "formula", src, "passes", res.Passes)
		}
		if x, err = e.compiler.Compile(res.Text); err != nil {
			return nil, err
		}
	}
	e.memo[key] = x
	return x, nil
}

// MemoSize returns the number of memoized expressions.
func (e *Engine) MemoSize() int { return len(e.memo) }

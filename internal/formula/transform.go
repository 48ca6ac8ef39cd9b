// Package formula rewrites the cell DSL into plain expressions whose cell,
// aggregate and assumption references are calls to the engine's bridge
// functions (Eval, Sum, Prd, Vector, Assum).
package formula

import (
	"errors"
	"fmt"
)

// MaxPasses caps the fixed-point iteration of the rewrite passes.
const MaxPasses = 10

var (
	// ErrIfsArity is returned for Ifs calls without an odd argument count of at least three.
	ErrIfsArity = errors.New("Ifs requires an odd number of arguments (at least 3)")
	// ErrUnbalanced is returned when a call's parentheses never close.
	ErrUnbalanced = errors.New("unbalanced brackets")
)

// Result is the outcome of a transformation.
type Result struct {
	Text string
	// Passes is the number of passes that ran, including the final no-op one.
	Passes int
	// Converged is false when the pass limit was hit while text was still
	// changing. Text then holds the output of the last pass.
	Converged bool
}

type rewrite func(model, s string) (string, error)

// Transformer applies the rewrite passes in order until the text stops changing.
type Transformer struct {
	maxPasses int
	passes    []rewrite
}

// New returns a Transformer that runs at most maxPasses iterations.
// Non-positive values fall back to MaxPasses.
func New(maxPasses int) *Transformer {
	if maxPasses <= 0 {
		maxPasses = MaxPasses
	}
	return &Transformer{
		maxPasses: maxPasses,
		passes:    []rewrite{expandIfs, rewriteCellRefs, injectAggregateModel, rewriteAssum},
	}
}

var defaultTransformer = New(MaxPasses)

// Transform rewrites src in the context of the given model using the
// default pass limit.
func Transform(model, src string) (Result, error) {
	return defaultTransformer.Transform(model, src)
}

// Transform rewrites src in the context of the given model.
func (tr *Transformer) Transform(model, src string) (Result, error) {
	text := src
	for pass := 1; pass <= tr.maxPasses; pass++ {
		next := text
		for _, rw := range tr.passes {
			var err error
			next, err = rw(model, next)
			if err != nil {
				return Result{}, fmt.Errorf("transform %q: %w", src, err)
			}
		}
		if next == text {
			return Result{Text: next, Passes: pass, Converged: true}, nil
		}
		text = next
	}
	return Result{Text: text, Passes: tr.maxPasses, Converged: false}, nil
}

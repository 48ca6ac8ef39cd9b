package expr

import "github.com/vk/cashgrid/internal/value"

// Binding is a single named value in a frame.
type Binding struct {
	Name  string
	Value value.Value
}

// Env is the evaluation environment: a base frame of long-lived bindings
// (point fields, horizon) plus a stack of short-lived frames pushed by
// nested evaluations. Lookups search the stack top-down, then the base.
//
// An Env is single-writer and must not be shared between goroutines.
type Env struct {
	base   map[string]value.Value
	frames [][]Binding
}

// NewEnv returns an environment with an empty base frame.
func NewEnv() *Env {
	return &Env{base: make(map[string]value.Value)}
}

// ResetBase replaces the base frame with the given bindings. The frame
// stack is left untouched.
func (e *Env) ResetBase(bindings map[string]value.Value) {
	e.base = make(map[string]value.Value, len(bindings))
	for k, v := range bindings {
		e.base[k] = v
	}
}

// Push opens a child scope holding only the given bindings.
func (e *Env) Push(bindings ...Binding) {
	e.frames = append(e.frames, bindings)
}

// Pop closes the innermost scope. Popping with no open scope is a no-op.
func (e *Env) Pop() {
	if len(e.frames) == 0 {
		return
	}
	e.frames[len(e.frames)-1] = nil
	e.frames = e.frames[:len(e.frames)-1]
}

// Unwind pops scopes until depth remain.
func (e *Env) Unwind(depth int) {
	for len(e.frames) > depth {
		e.Pop()
	}
}

// Depth reports the number of open scopes above the base frame.
func (e *Env) Depth() int {
	return len(e.frames)
}

// Lookup resolves name against the innermost binding.
func (e *Env) Lookup(name string) (value.Value, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		frame := e.frames[i]
		for j := len(frame) - 1; j >= 0; j-- {
			if frame[j].Name == name {
				return frame[j].Value, true
			}
		}
	}
	v, ok := e.base[name]
	return v, ok
}

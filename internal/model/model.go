// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/vk/cashgrid/internal/expr"
	"github.com/vk/cashgrid/internal/script"
	"github.com/vk/cashgrid/internal/sheet"
	"github.com/vk/cashgrid/internal/value"
)

// MaxAbs bounds the magnitude of any numeric cell result.
const MaxAbs = 1e11

var (
	ErrOutOfRange  = errors.New("result out of range")
	ErrNotCompiled = errors.New("cell failed to compile")
)

// EvalError attaches the innermost failing cell to an evaluation error.
type EvalError struct {
	Model string
	Cell  string
	T     int
	Err   error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s.%s[%d]: %v", e.Model, e.Cell, e.T, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// Model owns compiled cells and the sheets evaluating them. Sheets are
// created on first use of a variant and kept until Reset.
type Model struct {
	name     string
	compiler Compiler
	env      *expr.Env
	logger   *slog.Logger

	cells  map[string]*CompiledCell
	order  []string
	sheets map[string]*sheet.Sheet
	param  *Parameter
}

// New returns an empty model. All models of one engine share env.
func New(name string, compiler Compiler, env *expr.Env, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{
		name:     name,
		compiler: compiler,
		env:      env,
		logger:   logger.With("model", name),
		cells:    make(map[string]*CompiledCell),
		sheets:   make(map[string]*sheet.Sheet),
		param:    NewParameter(),
	}
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// SetCell compiles source as the formula of the named cell, replacing any
// previous formula. Existing sheets are re-registered and cleared.
func (m *Model) SetCell(name, source, description string) *CompiledCell {
	cell := compileCell(m.compiler, m.name, name, source, description)
	if !cell.Compiled {
		m.logger.Warn("Cell failed to compile.", "cell", name, "status", cell.Status)
	} else if cell.Status != StatusOK {
		m.logger.Warn("Cell compiled with a warning.", "cell", name, "status", cell.Status)
	} else {
		m.logger.Debug("Cell compiled.", "cell", name, "transformed", cell.Transformed)
	}

	if _, ok := m.cells[name]; !ok {
		m.order = append(m.order, name)
	}
	m.cells[name] = cell
	for _, sh := range m.sheets {
		sh.Register(name, m.evaluator(cell))
		sh.Clear()
	}
	return cell
}

// Load sets every definition of a parsed script and returns how many
// cells failed to compile.
func (m *Model) Load(defs []script.Definition) int {
	failed := 0
	for _, d := range defs {
		if !m.SetCell(d.Name, d.Formula, d.Description).Compiled {
			failed++
		}
	}
	return failed
}

// Cell returns the named cell.
func (m *Model) Cell(name string) (*CompiledCell, bool) {
	c, ok := m.cells[name]
	return c, ok
}

// Cells returns all cells in definition order.
func (m *Model) Cells() []*CompiledCell {
	cells := make([]*CompiledCell, len(m.order))
	for i, name := range m.order {
		cells[i] = m.cells[name]
	}
	return cells
}

// Failed returns the cells that did not compile.
func (m *Model) Failed() []*CompiledCell {
	var failed []*CompiledCell
	for _, c := range m.Cells() {
		if !c.Compiled {
			failed = append(failed, c)
		}
	}
	return failed
}

// Parameter returns the model's persistent override set.
func (m *Model) Parameter() *Parameter { return m.param }

// Sheet returns the sheet for a variant key, creating it on first use.
func (m *Model) Sheet(key string) *sheet.Sheet {
	if sh, ok := m.sheets[key]; ok {
		return sh
	}
	return m.AddSheet(key)
}

// CurrentSheet returns the sheet for the model's current overrides.
func (m *Model) CurrentSheet() *sheet.Sheet {
	return m.Sheet(m.param.Canonical())
}

// AddSheet creates a sheet for key and registers an evaluator for every
// cell. An existing sheet for key is replaced.
func (m *Model) AddSheet(key string) *sheet.Sheet {
	name := m.name
	if key != "" {
		name += "{" + key + "}"
	}
	sh := sheet.New(name)
	for _, cellName := range m.order {
		sh.Register(cellName, m.evaluator(m.cells[cellName]))
	}
	m.sheets[key] = sh
	m.logger.Debug("Sheet created.", "variant", key, "sheets", len(m.sheets))
	return sh
}

// Sheets returns the number of variant sheets currently held.
func (m *Model) Sheets() int { return len(m.sheets) }

// Reset drops every sheet and override, starting a fresh run.
func (m *Model) Reset() {
	m.sheets = make(map[string]*sheet.Sheet)
	m.param.Reset()
}

// evaluator binds t, evaluates the cell and checks the result's range.
func (m *Model) evaluator(cell *CompiledCell) sheet.Evaluator {
	return func(t int) (value.Value, error) {
		if !cell.Compiled {
			return value.Null, &EvalError{Model: m.name, Cell: cell.Name, T: t, Err: fmt.Errorf("%w: %s", ErrNotCompiled, cell.Status)}
		}
		m.env.Push(expr.Binding{Name: "t", Value: value.Int(t)})
		v, err := cell.Expression.Evaluate(m.env)
		m.env.Pop()
		if err != nil {
			// Keep the innermost failure; nested Eval calls add nothing useful.
			var inner *EvalError
			if errors.As(err, &inner) {
				return value.Null, inner
			}
			var cycle *sheet.CycleError
			if errors.As(err, &cycle) {
				return value.Null, cycle
			}
			return value.Null, &EvalError{Model: m.name, Cell: cell.Name, T: t, Err: err}
		}
		if v.IsNumeric() {
			f := v.Float()
			if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > MaxAbs {
				return value.Null, &EvalError{Model: m.name, Cell: cell.Name, T: t, Err: fmt.Errorf("%w: %v", ErrOutOfRange, f)}
			}
		}
		return value.Channel(v), nil
	}
}

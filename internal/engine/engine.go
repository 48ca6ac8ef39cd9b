package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vk/cashgrid/internal/expand"
	"github.com/vk/cashgrid/internal/expr"
	"github.com/vk/cashgrid/internal/model"
	"github.com/vk/cashgrid/internal/script"
	"github.com/vk/cashgrid/internal/sheet"
	"github.com/vk/cashgrid/internal/tables"
	"github.com/vk/cashgrid/internal/value"
)

// DefaultMaxT is the projection horizon used when Config.MaxT is unset.
const DefaultMaxT = 1200

// ErrorCell names the cell of the synthetic sheet returned by Invoke on
// failure.
const ErrorCell = "Error"

var (
	ErrModelNotFound = errors.New("model not found")
	ErrRange         = errors.New("time out of range")
	ErrNoPoints      = errors.New("no model points loaded")
)

// Config holds the engine settings.
type Config struct {
	// MaxT is the last projected time step.
	MaxT int
	// MainModel is the model name used when transforming formulas that
	// do not belong to a model, such as output columns and conditions.
	MainModel string
	Logger    *slog.Logger
}

// Engine evaluates models for one active model point at a time.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	compiler *expr.Compiler
	env      *expr.Env

	models map[string]*model.Model
	order  []string
	memo   map[memoKey]*expr.Expression

	assumptions *tables.Assumptions
	expenses    *tables.Expenses

	expander *expand.Expander
	rows     [][]string
	active   *expand.ModelPoint
}

// New returns an engine with no models. The bridge functions are
// registered on a compiler owned by this engine alone.
func New(cfg Config) *Engine {
	if cfg.MaxT <= 0 {
		cfg.MaxT = DefaultMaxT
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine{
		cfg:         cfg,
		logger:      cfg.Logger,
		compiler:    expr.NewCompiler(),
		env:         expr.NewEnv(),
		models:      make(map[string]*model.Model),
		memo:        make(map[memoKey]*expr.Expression),
		assumptions: emptyAssumptions(),
		expenses:    emptyExpenses(),
	}
	e.registerBridge()
	e.env.ResetBase(e.baseFrame(nil))
	return e
}

// MaxT returns the projection horizon.
func (e *Engine) MaxT() int { return e.cfg.MaxT }

// MainModel returns the model used for formulas outside any model.
func (e *Engine) MainModel() string { return e.cfg.MainModel }

// Env returns the shared evaluation environment.
func (e *Engine) Env() *expr.Env { return e.env }

// AddModel creates, or replaces, a model and loads its cell definitions.
func (e *Engine) AddModel(name string, defs []script.Definition) *model.Model {
	m := model.New(name, e.compiler, e.env, e.logger)
	if _, exists := e.models[name]; !exists {
		e.order = append(e.order, name)
	} else {
		e.logger.Warn("Model redefined, replacing.", "model", name)
	}
	e.models[name] = m
	failed := m.Load(defs)
	e.logger.Debug("Model loaded.", "model", name, "cells", len(defs), "failed", failed)
	if e.cfg.MainModel == "" {
		e.cfg.MainModel = name
	}
	return m
}

// Model returns a model by name.
func (e *Engine) Model(name string) (*model.Model, error) {
	m, ok := e.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrModelNotFound, name, strings.Join(e.sortedModels(), ", "))
	}
	return m, nil
}

// Models returns model names in the order they were added.
func (e *Engine) Models() []string {
	return append([]string(nil), e.order...)
}

// SetAssumptions replaces the assumption table.
func (e *Engine) SetAssumptions(rows []tables.AssumptionRow) error {
	a, err := tables.NewAssumptions(rows)
	if err != nil {
		return err
	}
	e.assumptions = a
	return nil
}

// SetExpenses replaces the expense table.
func (e *Engine) SetExpenses(rows []tables.ExpenseRow) error {
	x, err := tables.NewExpenses(rows)
	if err != nil {
		return err
	}
	e.expenses = x
	return nil
}

// SetModelPoints loads the raw point table. Rows are expanded on demand.
func (e *Engine) SetModelPoints(types []expand.ColumnType, headers []string, rows [][]string) error {
	x, err := expand.New(types, headers)
	if err != nil {
		return fmt.Errorf("model points: %w", err)
	}
	e.expander = x
	e.rows = rows
	e.logger.Debug("Model points set.", "columns", len(headers), "rows", len(rows))
	return nil
}

// PointHeaders returns the model-point column names.
func (e *Engine) PointHeaders() []string {
	if e.expander == nil {
		return nil
	}
	return append([]string(nil), e.expander.Headers...)
}

// Rows returns the number of raw point rows.
func (e *Engine) Rows() int { return len(e.rows) }

// Expand expands raw row i into concrete points.
func (e *Engine) Expand(i int) ([]expand.ModelPoint, error) {
	if e.expander == nil {
		return nil, ErrNoPoints
	}
	if i < 0 || i >= len(e.rows) {
		return nil, fmt.Errorf("row %d: %w", i, ErrRange)
	}
	return e.expander.ExpandRow(i, e.rows[i])
}

// Active returns the active point, if any.
func (e *Engine) Active() (expand.ModelPoint, bool) {
	if e.active == nil {
		return expand.ModelPoint{}, false
	}
	return *e.active, true
}

// Activate clears every model's sheets and overrides and binds the
// point's columns into the base environment frame.
func (e *Engine) Activate(p expand.ModelPoint) {
	e.resetModels()
	e.active = &p
	e.env.ResetBase(e.baseFrame(p.Frame()))
}

// Reset clears every model and the active point.
func (e *Engine) Reset() {
	e.resetModels()
	e.active = nil
	e.env.ResetBase(e.baseFrame(nil))
}

func (e *Engine) resetModels() {
	for _, name := range e.order {
		e.models[name].Reset()
	}
}

func (e *Engine) baseFrame(point map[string]value.Value) map[string]value.Value {
	frame := make(map[string]value.Value, len(point)+1)
	for k, v := range point {
		frame[k] = v
	}
	frame["MaxT"] = value.Int(e.cfg.MaxT)
	return frame
}

// Invoke evaluates one cell for the active point. On failure it returns a
// one-cell sheet carrying the message under ErrorCell, together with the
// error, so callers always have a sheet to render.
func (e *Engine) Invoke(modelName, cell string, t int) (sh *sheet.Sheet, err error) {
	depth := e.env.Depth()
	defer func() {
		if r := recover(); r != nil {
			e.env.Unwind(depth)
			err = fmt.Errorf("panic evaluating %s.%s[%d]: %v", modelName, cell, t, r)
			sh = errorSheet(modelName, err)
		}
	}()

	m, err := e.Model(modelName)
	if err != nil {
		return errorSheet(modelName, err), err
	}
	sh = m.CurrentSheet()
	if _, err := sh.Get(cell, t); err != nil {
		e.logger.Warn("Evaluation failed.", "model", modelName, "cell", cell, "t", t, "error", err)
		return errorSheet(modelName, err), err
	}
	return sh, nil
}

func errorSheet(modelName string, err error) *sheet.Sheet {
	sh := sheet.New(modelName)
	sh.Set(ErrorCell, 0, value.String(err.Error()))
	return sh
}

// Failed lists every cell that did not compile, keyed by model.
func (e *Engine) Failed() map[string][]*model.CompiledCell {
	failed := make(map[string][]*model.CompiledCell)
	for _, name := range e.order {
		if cells := e.models[name].Failed(); len(cells) > 0 {
			failed[name] = cells
		}
	}
	return failed
}

// SheetCount returns the total number of variant sheets across models.
func (e *Engine) SheetCount() int {
	n := 0
	for _, m := range e.models {
		n += m.Sheets()
	}
	return n
}

// sortedModels is used for deterministic diagnostics.
func (e *Engine) sortedModels() []string {
	names := e.Models()
	sort.Strings(names)
	return names
}

func emptyAssumptions() *tables.Assumptions {
	a, _ := tables.NewAssumptions(nil)
	return a
}

func emptyExpenses() *tables.Expenses {
	x, _ := tables.NewExpenses(nil)
	return x
}

// This file translates decoded schema blocks into the format-agnostic
// config.Project.

package hcl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/cashgrid/internal/batch"
	"github.com/vk/cashgrid/internal/config"
	"github.com/vk/cashgrid/internal/ctxlog"
	"github.com/vk/cashgrid/internal/expand"
	"github.com/vk/cashgrid/internal/schema"
	"github.com/vk/cashgrid/internal/script"
	"github.com/vk/cashgrid/internal/tables"
)

// DefaultMonitorInterval applies when a monitor block sets no interval.
const DefaultMonitorInterval = 2 * time.Second

// translator accumulates the blocks of every project file.
type translator struct {
	ctx        context.Context
	project    *config.Project
	seenModels map[string]bool
	seenTables map[string]bool
	hasProject bool
}

func newTranslator(ctx context.Context, dir string) *translator {
	return &translator{
		ctx:        ctx,
		project:    &config.Project{Dir: dir},
		seenModels: make(map[string]bool),
		seenTables: make(map[string]bool),
	}
}

// translateFile merges one decoded file. dir is the file's directory.
func (t *translator) translateFile(dir string, root *schema.File) error {
	logger := ctxlog.FromContext(t.ctx)

	if root.Project != nil {
		if t.hasProject {
			return errors.New("duplicate project block")
		}
		t.hasProject = true
		t.translateSettings(dir, root.Project)
	}
	for _, m := range root.Models {
		model, err := t.translateModel(dir, m)
		if err != nil {
			return err
		}
		t.project.Models = append(t.project.Models, model)
		logger.Debug("Model translated.", "model", model.Name, "cells", len(model.Definitions))
	}
	if root.ModelPoints != nil {
		if t.project.Points != nil {
			return errors.New("duplicate model_points block")
		}
		points, err := translatePoints(t.ctx, dir, root.ModelPoints)
		if err != nil {
			return fmt.Errorf("model_points: %w", err)
		}
		t.project.Points = points
	}
	for _, a := range root.Assumptions {
		row, err := translateAssumption(a)
		if err != nil {
			return err
		}
		t.project.Assumptions = append(t.project.Assumptions, row)
	}
	for _, f := range root.AssumptionFiles {
		rows, err := readTable(dir, f.File, tables.ReadAssumptions)
		if err != nil {
			return fmt.Errorf("assumptions: %w", err)
		}
		t.project.Assumptions = append(t.project.Assumptions, rows...)
	}
	for _, e := range root.Expenses {
		t.project.Expenses = append(t.project.Expenses, tables.ExpenseRow{
			Product:    e.Product,
			Rider:      e.Rider,
			Conditions: e.When,
			Formulas:   e.Formulas,
		})
	}
	for _, f := range root.ExpenseFiles {
		rows, err := readTable(dir, f.File, tables.ReadExpenses)
		if err != nil {
			return fmt.Errorf("expenses: %w", err)
		}
		t.project.Expenses = append(t.project.Expenses, rows...)
	}
	for _, tb := range root.Tables {
		if t.seenTables[tb.Name] {
			return fmt.Errorf("table %q defined more than once", tb.Name)
		}
		t.seenTables[tb.Name] = true
		t.project.Columns = append(t.project.Columns, translateTable(tb)...)
	}
	if root.Monitor != nil {
		if t.project.Monitor != nil {
			return errors.New("duplicate monitor block")
		}
		mon, err := translateMonitor(root.Monitor)
		if err != nil {
			return err
		}
		t.project.Monitor = mon
	}
	return nil
}

func (t *translator) translateSettings(dir string, s *schema.ProjectSettings) {
	if s.MaxT != nil {
		t.project.MaxT = *s.MaxT
	}
	if s.Workers != nil {
		t.project.Workers = *s.Workers
	}
	t.project.MainModel = s.MainModel
	if s.OutDir != "" {
		t.project.OutDir = resolve(dir, s.OutDir)
	}
}

func (t *translator) translateModel(dir string, m *schema.ModelBlock) (*config.Model, error) {
	if t.seenModels[m.Name] {
		return nil, fmt.Errorf("model %q defined more than once", m.Name)
	}
	t.seenModels[m.Name] = true

	model := &config.Model{Name: m.Name}
	text := m.Script
	switch {
	case m.Script != "" && m.ScriptFile != "":
		return nil, fmt.Errorf("model %q: script and script_file are mutually exclusive", m.Name)
	case m.ScriptFile != "":
		model.Path = resolve(dir, m.ScriptFile)
		b, err := os.ReadFile(model.Path)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", m.Name, err)
		}
		text = string(b)
	case m.Script == "":
		return nil, fmt.Errorf("model %q: script or script_file is required", m.Name)
	}

	defs, err := script.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", m.Name, err)
	}
	model.Definitions = defs
	return model, nil
}

func translatePoints(ctx context.Context, dir string, b *schema.ModelPointsBlock) (*config.Points, error) {
	inline := !isNullExpr(b.Columns)
	switch {
	case b.File != "" && (inline || len(b.Rows) > 0):
		return nil, errors.New("file and inline columns are mutually exclusive")
	case b.File != "":
		f, err := os.Open(resolve(dir, b.File))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		types, headers, rows, err := expand.ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.File, err)
		}
		return &config.Points{Types: types, Headers: headers, Rows: rows}, nil
	case !inline:
		return nil, errors.New("file or columns is required")
	}

	types, headers, err := translateColumns(ctx, b.Columns)
	if err != nil {
		return nil, err
	}
	return &config.Points{Types: types, Headers: headers, Rows: b.Rows}, nil
}

func translateAssumption(a *schema.AssumptionBlock) (tables.AssumptionRow, error) {
	rates, err := decodeRates(a.Rates)
	if err != nil {
		return tables.AssumptionRow{}, fmt.Errorf("assumption %q: rates: %w", a.Key, err)
	}
	return tables.AssumptionRow{Model: a.Model, Key: a.Key, Conditions: a.When, Rates: rates}, nil
}

func translateTable(tb *schema.TableBlock) []batch.Column {
	cols := make([]batch.Column, 0, len(tb.Columns))
	for _, c := range tb.Columns {
		cols = append(cols, batch.Column{
			Table:  tb.Name,
			Name:   c.Name,
			Value:  c.Value,
			Range:  c.Range,
			Format: c.Format,
		})
	}
	return cols
}

func translateMonitor(m *schema.MonitorBlock) (*config.Monitor, error) {
	mon := &config.Monitor{URL: m.URL, Namespace: m.Namespace, Interval: DefaultMonitorInterval}
	if mon.Namespace == "" {
		mon.Namespace = "/"
	}
	if m.Interval != "" {
		d, err := time.ParseDuration(m.Interval)
		if err != nil {
			return nil, fmt.Errorf("monitor: invalid interval: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("monitor: interval must be positive, got %s", d)
		}
		mon.Interval = d
	}
	return mon, nil
}

// finish applies cross-file checks.
func (t *translator) finish() (*config.Project, error) {
	p := t.project
	if len(p.Models) == 0 {
		return nil, errors.New("project defines no models")
	}
	if p.MainModel == "" {
		p.MainModel = p.Models[0].Name
	}
	if p.Model(p.MainModel) == nil {
		return nil, fmt.Errorf("main_model %q is not defined", p.MainModel)
	}
	if p.MaxT < 0 {
		return nil, fmt.Errorf("max_t must not be negative, got %d", p.MaxT)
	}
	return p, nil
}

func readTable[T any](dir, name string, read func(r io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(resolve(dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return rows, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

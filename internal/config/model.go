package config

import (
	"time"

	"github.com/vk/cashgrid/internal/batch"
	"github.com/vk/cashgrid/internal/expand"
	"github.com/vk/cashgrid/internal/script"
	"github.com/vk/cashgrid/internal/tables"
)

// Project is the unified, format-agnostic representation of a projection
// project: its models, input data, lookup tables and output layout.
type Project struct {
	// Dir is the directory relative paths were resolved against.
	Dir       string
	MaxT      int
	MainModel string
	OutDir    string
	Workers   int

	Models      []*Model
	Points      *Points
	Assumptions []tables.AssumptionRow
	Expenses    []tables.ExpenseRow
	Columns     []batch.Column
	Monitor     *Monitor
}

// Model is one named script, already split into cell definitions.
type Model struct {
	Name        string
	Path        string // empty for inline scripts
	Definitions []script.Definition
}

// Points is the typed model point table before expansion.
type Points struct {
	Types   []expand.ColumnType
	Headers []string
	Rows    [][]string
}

// Monitor configures progress publishing to a socket.io server.
type Monitor struct {
	URL       string
	Namespace string
	Interval  time.Duration
}

// Model returns the model called name, or nil.
func (p *Project) Model(name string) *Model {
	for _, m := range p.Models {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Package schema defines the Go structs that project HCL files decode into.
// It mirrors the file syntax and carries no behavior; internal/hcl translates
// these structs into the format-agnostic config.Project.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// ProjectSettings is the `project` block.
type ProjectSettings struct {
	MaxT      *int   `hcl:"max_t,optional"`
	MainModel string `hcl:"main_model,optional"`
	OutDir    string `hcl:"out_dir,optional"`
	Workers   *int   `hcl:"workers,optional"`
}

// ModelBlock is a `model "<name>"` block. Exactly one of Script or
// ScriptFile is set.
type ModelBlock struct {
	Name       string `hcl:"name,label"`
	Script     string `hcl:"script,optional"`
	ScriptFile string `hcl:"script_file,optional"`
}

// ModelPointsBlock is the `model_points` block. Either File names a CSV
// whose header cells are `Name:type`, or Columns and Rows hold the data
// inline. Columns is an object of keyword types, e.g. `{ Age = int }`.
type ModelPointsBlock struct {
	File    string         `hcl:"file,optional"`
	Columns hcl.Expression `hcl:"columns,optional"`
	Rows    [][]string     `hcl:"rows,optional"`
}

// AssumptionBlock is an `assumption "<key>"` block. Rates is an expression
// so rate vectors can be built with functions such as range and concat.
type AssumptionBlock struct {
	Key   string         `hcl:"key,label"`
	Model string         `hcl:"model,optional"`
	When  []string       `hcl:"when,optional"`
	Rates hcl.Expression `hcl:"rates"`
}

// ExpenseBlock is an `expense "<product>"` block.
type ExpenseBlock struct {
	Product  string            `hcl:"product,label"`
	Rider    string            `hcl:"rider,optional"`
	When     []string          `hcl:"when,optional"`
	Formulas map[string]string `hcl:"formulas"`
}

// FileBlock points at a CSV table (`assumptions` or `expenses`).
type FileBlock struct {
	File string `hcl:"file"`
}

// ColumnBlock is a `column "<name>"` block inside a table.
type ColumnBlock struct {
	Name   string `hcl:"name,label"`
	Value  string `hcl:"value"`
	Range  string `hcl:"range,optional"`
	Format string `hcl:"format,optional"`
}

// TableBlock is a `table "<name>"` output block.
type TableBlock struct {
	Name    string         `hcl:"name,label"`
	Columns []*ColumnBlock `hcl:"column,block"`
}

// MonitorBlock is the `monitor` block.
type MonitorBlock struct {
	URL       string `hcl:"url"`
	Namespace string `hcl:"namespace,optional"`
	Interval  string `hcl:"interval,optional"`
}

// File is the top-level structure of one project file. A project may be
// split across several files in a directory; their blocks are merged.
type File struct {
	Project         *ProjectSettings   `hcl:"project,block"`
	Models          []*ModelBlock      `hcl:"model,block"`
	ModelPoints     *ModelPointsBlock  `hcl:"model_points,block"`
	Assumptions     []*AssumptionBlock `hcl:"assumption,block"`
	AssumptionFiles []*FileBlock       `hcl:"assumptions,block"`
	Expenses        []*ExpenseBlock    `hcl:"expense,block"`
	ExpenseFiles    []*FileBlock       `hcl:"expenses,block"`
	Tables          []*TableBlock      `hcl:"table,block"`
	Monitor         *MonitorBlock      `hcl:"monitor,block"`
	Remain          hcl.Body           `hcl:",remain"`
}

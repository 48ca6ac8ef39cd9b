// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"fmt"

	"github.com/vk/cashgrid/internal/expr"
	"github.com/vk/cashgrid/internal/formula"
)

// StatusOK is the status message of a cleanly compiled cell.
const StatusOK = "OK"

// CompiledCell holds a cell's source formula and everything derived from
// it. Only Source is authoritative; the rest is rebuilt on every edit.
type CompiledCell struct {
	Name        string
	Description string
	Source      string
	Transformed string
	Expression  *expr.Expression
	Compiled    bool
	// Status is StatusOK, a transform note, or the compile diagnostic of a
	// failed cell.
	Status string
}

// Compiler turns transformed formula text into an expression.
type Compiler interface {
	Compile(src string) (*expr.Expression, error)
}

// compileCell transforms and compiles source in the context of modelName.
// Failures are recorded on the cell rather than returned.
func compileCell(c Compiler, modelName, name, source, description string) *CompiledCell {
	cell := &CompiledCell{Name: name, Description: description, Source: source}

	res, err := formula.Transform(modelName, source)
	if err != nil {
		cell.Status = err.Error()
		return cell
	}
	cell.Transformed = res.Text

	compiled, err := c.Compile(res.Text)
	if err != nil {
		cell.Status = err.Error()
		return cell
	}
	cell.Expression = compiled
	cell.Compiled = true
	cell.Status = StatusOK
	if !res.Converged {
		cell.Status = fmt.Sprintf("transform stopped after %d passes without converging", res.Passes)
	}
	return cell
}

package app

import (
	"context"
	"fmt"

	"github.com/vk/cashgrid/internal/batch"
	"github.com/vk/cashgrid/internal/ctxlog"
)

// Check compiles every cell and output column and expands every model
// point row without evaluating anything. It writes a report to the
// output writer and returns the number of problems found.
func (a *App) Check(ctx context.Context) (int, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := ctxlog.FromContext(ctx)
	e, err := a.BuildEngine()
	if err != nil {
		return 0, err
	}

	problems := 0
	failed := e.Failed()
	for _, name := range e.Models() {
		m, err := e.Model(name)
		if err != nil {
			return problems, err
		}
		fmt.Fprintf(a.outW, "model %s: %d cells, %d failed\n", name, len(m.Cells()), len(failed[name]))
		for _, c := range failed[name] {
			fmt.Fprintf(a.outW, "  %s: %s\n", c.Name, c.Status)
			problems++
		}
	}

	colErrs := batch.CheckColumns(e, a.project.Columns)
	fmt.Fprintf(a.outW, "columns: %d, %d failed\n", len(a.project.Columns), len(colErrs))
	for _, err := range colErrs {
		fmt.Fprintf(a.outW, "  %v\n", err)
		problems++
	}

	if a.project.Points != nil {
		points := 0
		for i := 0; i < e.Rows(); i++ {
			ps, err := e.Expand(i)
			if err != nil {
				fmt.Fprintf(a.outW, "  %v\n", err)
				problems++
				continue
			}
			points += len(ps)
		}
		fmt.Fprintf(a.outW, "model points: %d rows, %d points\n", e.Rows(), points)
	}

	logger.Debug("Check finished.", "problems", problems)
	return problems, nil
}

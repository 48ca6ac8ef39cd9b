package app

import (
	"context"
	"fmt"

	"github.com/vk/cashgrid/internal/ctxlog"
)

// EvalRequest selects one cell of one point for interactive evaluation.
type EvalRequest struct {
	Model string // defaults to the main model
	Cell  string
	T     int
	// Row and Sub pick the point, both 1-based as in the output tables.
	// Row 0 evaluates without a point.
	Row int
	Sub int
}

// Eval evaluates a single cell and writes every value the evaluation
// cached, as a t-by-cell table, to the output writer. On failure the
// table holds the error message and the error is returned.
func (a *App) Eval(ctx context.Context, req EvalRequest) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := ctxlog.FromContext(ctx)
	e, err := a.BuildEngine()
	if err != nil {
		return err
	}

	if req.Row > 0 {
		points, err := e.Expand(req.Row - 1)
		if err != nil {
			return fmt.Errorf("model point row %d: %w", req.Row, err)
		}
		sub := max(req.Sub, 1)
		if sub > len(points) {
			return fmt.Errorf("model point row %d has %d points, requested %d", req.Row, len(points), sub)
		}
		e.Activate(points[sub-1])
	}

	modelName := req.Model
	if modelName == "" {
		modelName = e.MainModel()
	}
	attrs := []any{"model", modelName, "cell", req.Cell, "t", req.T}
	if p, ok := e.Active(); ok {
		attrs = append(attrs, "point", p.String())
	}
	logger.Debug("Evaluating cell.", attrs...)
	sh, evalErr := e.Invoke(modelName, req.Cell, req.T)
	fmt.Fprint(a.outW, sh.GetAllData())
	return evalErr
}

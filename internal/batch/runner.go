package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vk/cashgrid/internal/ctxlog"
	"github.com/vk/cashgrid/internal/engine"
	"github.com/vk/cashgrid/internal/expand"
	"github.com/vk/cashgrid/internal/expr"
	"github.com/vk/cashgrid/internal/value"
)

// DefaultStatusCapacity bounds the status queue when none is configured.
const DefaultStatusCapacity = 256

// DefaultChunkSize is the number of points a worker hands to the writer
// at once when a row expands into many points.
const DefaultChunkSize = 1024

// Config holds the runner settings.
type Config struct {
	OutDir  string
	Workers int
	Columns []Column
	// ChunkSize caps how many evaluated points of one row are buffered
	// before they are passed to the writer.
	ChunkSize int
	// NewEngine builds one fully loaded engine per worker. Engines are
	// never shared between goroutines.
	NewEngine func() (*engine.Engine, error)
	Status    *StatusQueue
}

// Summary describes a finished run.
type Summary struct {
	Rows     int
	Points   int
	Failed   int
	Duration time.Duration
}

// Runner evaluates output tables for every model point.
type Runner struct {
	cfg      Config
	tables   []Table
	counters counters
	status   *StatusQueue
}

// tableRow is the evaluated output of one table for one point.
type tableRow struct {
	Names  []string
	Values []string
}

// pointResult is the outcome of one point. Err is set when the point, or
// the expansion of its row, failed.
type pointResult struct {
	Row    int
	Sub    int
	Fields []string
	Tables map[string]tableRow
	Err    error
}

type rowJob struct {
	seq int
}

// rowResult is one chunk of a row's points. Chunks of a row arrive in
// order from a single worker; last marks the final one.
type rowResult struct {
	seq    int
	points []pointResult
	last   bool
}

// New validates the configuration.
func New(cfg Config) (*Runner, error) {
	if cfg.NewEngine == nil {
		return nil, errors.New("batch: NewEngine is required")
	}
	if cfg.OutDir == "" {
		return nil, errors.New("batch: output directory is required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = DefaultChunkSize
	}
	tables, err := Group(cfg.Columns)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if len(tables) == 0 {
		return nil, errors.New("batch: no output columns configured")
	}
	status := cfg.Status
	if status == nil {
		status = NewStatusQueue(DefaultStatusCapacity)
	}
	return &Runner{cfg: cfg, tables: tables, status: status}, nil
}

// Progress returns a snapshot of the run counters. It is safe to call
// from any goroutine.
func (r *Runner) Progress() Progress { return r.counters.snapshot() }

// Status returns the queue pollers drain for messages.
func (r *Runner) Status() *StatusQueue { return r.status }

// Tables returns the output tables in file order.
func (r *Runner) Tables() []Table { return r.tables }

// Run projects every row. A failing point is written to the error file
// and the run continues. Cancellation is checked between points; rows
// finished before it are still written in order.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	logger := ctxlog.FromContext(ctx)

	engines := make([]*engine.Engine, r.cfg.Workers)
	for i := range engines {
		e, err := r.cfg.NewEngine()
		if err != nil {
			return Summary{}, fmt.Errorf("building engine for worker %d: %w", i, err)
		}
		engines[i] = e
	}
	rows := engines[0].Rows()
	out, err := newOutput(r.cfg.OutDir, r.tables, engines[0].PointHeaders())
	if err != nil {
		return Summary{}, err
	}

	r.counters.rows.Store(int64(rows))
	r.counters.running.Store(true)
	defer r.counters.running.Store(false)
	logger.Info("Batch run started.", "rows", rows, "workers", len(engines), "tables", len(r.tables), "out", r.cfg.OutDir)
	r.push("info", fmt.Sprintf("run started: %d rows", rows))

	// window bounds how far workers may run ahead of the writer.
	window := make(chan struct{}, 4*len(engines))
	jobs := make(chan rowJob)
	results := make(chan rowResult)

	var wg sync.WaitGroup
	for i, e := range engines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx, e, jobs, results, i)
		}()
	}
	go func() {
		defer close(jobs)
		for seq := 0; seq < rows; seq++ {
			select {
			case window <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- rowJob{seq: seq}:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	summary := Summary{}
	pending := make(map[int][]rowResult)
	next := 0
	for res := range results {
		pending[res.seq] = append(pending[res.seq], res)
		for {
			chunks, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			done := false
			for _, c := range chunks {
				r.write(out, c.points, &summary)
				done = done || c.last
			}
			if !done {
				break
			}
			summary.Rows++
			next++
			<-window
		}
	}
	if err := out.close(); err != nil {
		return summary, fmt.Errorf("writing output: %w", err)
	}

	summary.Duration = time.Since(start)
	if err := ctx.Err(); err != nil {
		logger.Warn("Batch run cancelled.", "rows_written", summary.Rows, "points", summary.Points)
		r.push("warn", "run cancelled")
		return summary, err
	}
	logger.Info("Batch run finished.", "rows", summary.Rows, "points", summary.Points, "failed", summary.Failed, "duration", summary.Duration)
	r.push("info", fmt.Sprintf("run finished: %d points, %d failed", summary.Points, summary.Failed))
	return summary, nil
}

// worker is the processing loop of one engine.
func (r *Runner) worker(ctx context.Context, e *engine.Engine, jobs <-chan rowJob, results chan<- rowResult, workerID int) {
	ctx, logger := ctxlog.With(ctx, "workerID", workerID)
	logger.Debug("Worker started.")

	for job := range jobs {
		res := rowResult{seq: job.seq}
		points, err := e.Expand(job.seq)
		if err != nil {
			logger.Warn("Row expansion failed.", "row", job.seq, "error", err)
			res.points = []pointResult{{Row: job.seq, Err: err}}
			r.counters.failed.Add(1)
			r.push("error", fmt.Sprintf("row %d: %v", job.seq+1, err))
		}
		for _, p := range points {
			if ctx.Err() != nil {
				break
			}
			pr := r.evalPoint(e, p)
			if pr.Err != nil {
				logger.Warn("Point failed.", "row", p.Row, "sub", p.Sub, "error", pr.Err)
				r.counters.failed.Add(1)
				r.push("error", fmt.Sprintf("%s: %v", p, pr.Err))
			}
			r.counters.points.Add(1)
			res.points = append(res.points, pr)
			if len(res.points) >= r.cfg.ChunkSize {
				results <- res
				res = rowResult{seq: job.seq}
			}
		}
		r.counters.rowsRun.Add(1)
		res.last = true
		results <- res
	}
	logger.Debug("Worker finished.")
}

// evalPoint activates p and evaluates every table. Panics are reported as
// the point's error.
func (r *Runner) evalPoint(e *engine.Engine, p expand.ModelPoint) (res pointResult) {
	res = pointResult{Row: p.Row, Sub: p.Sub, Fields: p.Texts()}
	depth := e.Env().Depth()
	defer func() {
		if rec := recover(); rec != nil {
			e.Env().Unwind(depth)
			res.Tables = nil
			res.Err = fmt.Errorf("panic: %v", rec)
		}
	}()

	e.Activate(p)
	res.Tables = make(map[string]tableRow, len(r.tables))
	for _, t := range r.tables {
		row, err := evalTable(e, t)
		if err != nil {
			res.Tables = nil
			res.Err = fmt.Errorf("table %s: %w", t.Name, err)
			return res
		}
		res.Tables[t.Name] = row
	}
	return res
}

func evalTable(e *engine.Engine, t Table) (tableRow, error) {
	var row tableRow
	for _, c := range t.Columns {
		names, values, err := evalColumn(e, c)
		if err != nil {
			return row, fmt.Errorf("column %s: %w", c.Name, err)
		}
		row.Names = append(row.Names, names...)
		row.Values = append(row.Values, values...)
	}
	return row, nil
}

// evalColumn returns the header names and rendered values of one column.
func evalColumn(e *engine.Engine, c Column) ([]string, []string, error) {
	x, err := e.CompileDynamic(c.Value)
	if err != nil {
		return nil, nil, err
	}
	startSrc, endSrc, err := c.rangeBounds()
	if err != nil {
		return nil, nil, err
	}
	if startSrc == "" {
		v, err := evalAt(e, x, 0)
		if err != nil {
			return nil, nil, err
		}
		return []string{c.Name}, []string{value.Format(v, c.layout())}, nil
	}

	lo, err := evalBound(e, startSrc)
	if err != nil {
		return nil, nil, fmt.Errorf("range start: %w", err)
	}
	hi, err := evalBound(e, endSrc)
	if err != nil {
		return nil, nil, fmt.Errorf("range end: %w", err)
	}
	var names, values []string
	for t := lo; t <= hi; t++ {
		v, err := evalAt(e, x, t)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, fmt.Sprintf("%s[%d]", c.Name, t))
		values = append(values, value.Format(v, c.layout()))
	}
	if delim, ok := c.join(); ok {
		return []string{c.Name}, []string{strings.Join(values, delim)}, nil
	}
	return names, values, nil
}

func evalBound(e *engine.Engine, src string) (int, error) {
	x, err := e.CompileInt(src)
	if err != nil {
		return 0, err
	}
	return x.EvalInt(e.Env())
}

func evalAt(e *engine.Engine, x *expr.Expression, t int) (value.Value, error) {
	e.Env().Push(expr.Binding{Name: "t", Value: value.Int(t)})
	defer e.Env().Pop()
	return x.Evaluate(e.Env())
}

// write hands evaluated points to the output. Points the output rejects
// count as failed.
func (r *Runner) write(out *output, points []pointResult, summary *Summary) {
	for _, p := range points {
		failed := p.Err != nil
		if err := out.write(p); err != nil && !failed {
			r.counters.failed.Add(1)
			r.push("error", fmt.Sprintf("row %d sub %d: %v", p.Row+1, p.Sub+1, err))
			failed = true
		}
		summary.Points++
		if failed {
			summary.Failed++
		}
	}
}

func (r *Runner) push(level, msg string) {
	r.status.Push(Status{Level: level, Message: msg})
}

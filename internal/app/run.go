package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/vk/cashgrid/internal/batch"
	"github.com/vk/cashgrid/internal/ctxlog"
	"github.com/vk/cashgrid/internal/monitor"
)

// DefaultOutDir is used, relative to the project, when neither the flags
// nor the project name an output directory.
const DefaultOutDir = "out"

// Run projects every model point of the project and writes the output
// tables.
func (a *App) Run(ctx context.Context) (batch.Summary, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	if a.project.Points == nil {
		return batch.Summary{}, errors.New("project has no model_points block")
	}

	if a.config.StatusPort > 0 {
		a.statusServer()
		defer a.closeStatusServer()
	}

	outDir, workers := a.runSettings()
	r, err := batch.New(batch.Config{
		OutDir:    outDir,
		Workers:   workers,
		Columns:   a.project.Columns,
		NewEngine: a.BuildEngine,
	})
	if err != nil {
		return batch.Summary{}, fmt.Errorf("configuring batch run: %w", err)
	}
	a.runner.Store(r)

	stopMonitor := a.startMonitor(ctx, r)
	a.logger.Info("🚀 Starting projection run...", "out", outDir, "workers", workers)
	summary, err := r.Run(ctx)
	stopMonitor()
	if err != nil {
		return summary, fmt.Errorf("projection run failed: %w", err)
	}
	a.logger.Info("🏁 Projection run finished.", "points", summary.Points, "failed", summary.Failed, "duration", summary.Duration)

	a.logger.Debug("App.Run method finished.")
	return summary, nil
}

func (a *App) runSettings() (string, int) {
	outDir := a.config.OutDir
	if outDir == "" {
		outDir = a.project.OutDir
	}
	if outDir == "" {
		outDir = filepath.Join(a.project.Dir, DefaultOutDir)
	}
	workers := a.config.Workers
	if workers == 0 {
		workers = a.project.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return outDir, workers
}

// startMonitor publishes progress while the run is going, when the
// project has a monitor block. The returned func stops it after the final
// message has been sent.
func (a *App) startMonitor(ctx context.Context, r *batch.Runner) func() {
	mon := a.project.Monitor
	if mon == nil {
		return func() {}
	}
	pub, err := monitor.New(monitor.Config{URL: mon.URL, Namespace: mon.Namespace, Interval: mon.Interval})
	if err != nil {
		a.logger.Warn("Monitor disabled.", "error", err)
		return func() {}
	}

	monCtx, cancel := context.WithCancel(ctx)
	run := fmt.Sprintf("%s-%s", filepath.Base(a.project.Dir), time.Now().Format("20060102T150405"))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pub.Run(monCtx, run, r)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/vk/cashgrid/internal/batch"
	"github.com/vk/cashgrid/internal/config"
	"github.com/vk/cashgrid/internal/ctxlog"
	"github.com/vk/cashgrid/internal/engine"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	project *config.Project

	ctx        context.Context
	httpServer *http.Server
	runner     atomic.Pointer[batch.Runner]
}

// NewApp loads the project and returns a ready App. Command output goes to
// outW and logs to logW.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	project, err := loader.Load(ctx, cfg.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	logger.Debug("Project loaded and translated into unified model.", "dir", project.Dir, "models", len(project.Models))

	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		project: project,
		ctx:     ctx,
	}, nil
}

// Project returns the loaded project.
func (a *App) Project() *config.Project {
	return a.project
}

// BuildEngine returns a fresh engine with every model, table and the
// model points of the project loaded. Each call builds an independent
// engine, so batch workers never share one.
func (a *App) BuildEngine() (*engine.Engine, error) {
	p := a.project
	e := engine.New(engine.Config{MaxT: p.MaxT, MainModel: p.MainModel, Logger: a.logger})
	for _, m := range p.Models {
		e.AddModel(m.Name, m.Definitions)
	}
	if err := e.SetAssumptions(p.Assumptions); err != nil {
		return nil, fmt.Errorf("loading assumptions: %w", err)
	}
	if err := e.SetExpenses(p.Expenses); err != nil {
		return nil, fmt.Errorf("loading expenses: %w", err)
	}
	if p.Points != nil {
		if err := e.SetModelPoints(p.Points.Types, p.Points.Headers, p.Points.Rows); err != nil {
			return nil, fmt.Errorf("loading model points: %w", err)
		}
	}
	return e, nil
}

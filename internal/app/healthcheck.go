package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/cashgrid/internal/batch"
	"github.com/vk/cashgrid/internal/ctxlog"
)

// StatusReport is the body of the /status endpoint.
type StatusReport struct {
	Progress batch.Progress `json:"progress"`
	Statuses []batch.Status `json:"statuses"`
	Dropped  int64          `json:"dropped"`
}

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// statusHandler reports the run counters and drains queued status
// messages, so each message is delivered to one poller.
func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Status endpoint hit.", "remote_addr", r.RemoteAddr)

	report := StatusReport{Statuses: []batch.Status{}}
	if runner := a.runner.Load(); runner != nil {
		report.Progress = runner.Progress()
		report.Statuses = runner.Status().Drain()
		report.Dropped = runner.Status().Dropped()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.Warn("Failed to write status response.", "error", err)
	}
}

// statusHandlers routes the status server endpoints.
func (a *App) statusHandlers() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/status", a.statusHandler)
	return mux
}

// statusServer initializes and runs the status HTTP server.
func (a *App) statusServer() {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Configuring status server.")

	addr := fmt.Sprintf(":%d", a.config.StatusPort)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.statusHandlers(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly", "error", err)
		}
	}()
}

func (a *App) closeStatusServer() error {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Closing status server...")

	if a.httpServer == nil {
		logger.Debug("Status server was not running.")
		return nil
	}

	// The run context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down status server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Status server shutdown failed", "error", err)
		return err
	}

	logger.Debug("Status server shut down gracefully.")
	return nil
}

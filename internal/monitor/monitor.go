// Package monitor publishes batch progress to a socket.io server so a
// dashboard can follow a long run. Publishing is best effort: connection
// problems are logged and never stop the run.
package monitor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/vk/cashgrid/internal/batch"
	"github.com/vk/cashgrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// ProgressEvent is the event name of every progress message.
const ProgressEvent = "progress"

// Config holds the connection settings.
type Config struct {
	URL                string
	Namespace          string
	Interval           time.Duration
	InsecureSkipVerify bool
}

// Source supplies the counters to publish.
type Source interface {
	Progress() batch.Progress
}

// Message is the payload of a progress event.
type Message struct {
	Run      string         `json:"run"`
	Progress batch.Progress `json:"progress"`
	Final    bool           `json:"final"`
}

// Publisher emits progress events until its context ends.
type Publisher struct {
	cfg     Config
	baseURL string
	path    string
}

// New validates cfg.
func New(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("monitor: url is required")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("monitor: failed to parse URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("monitor: URL %q needs a scheme and a host", cfg.URL)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("monitor: interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	return &Publisher{
		cfg:     cfg,
		baseURL: fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host),
		path:    parsed.Path,
	}, nil
}

// Run connects and publishes src every interval until ctx is done, then
// sends a final message and disconnects. run names the batch run in every
// message.
func (p *Publisher) Run(ctx context.Context, run string, src Source) {
	logger := ctxlog.FromContext(ctx).With("url", p.cfg.URL, "namespace", p.cfg.Namespace)
	logger.Debug("Monitor publisher started.")
	defer logger.Debug("Monitor publisher finished.")

	var connected atomic.Bool

	opts := socket.DefaultOptions()
	if p.path != "" && p.path != "/" {
		opts.SetPath(p.path)
	}
	if p.cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(p.baseURL, opts)
	io := manager.Socket(p.cfg.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client.")
		io.Disconnect()
	}()

	io.On(types.EventName("connect"), func(...any) {
		connected.Store(true)
		logger.Info("Monitor connected.", "sid", io.Id())
	})
	io.On(types.EventName("disconnect"), func(reason ...any) {
		connected.Store(false)
		logger.Debug("Monitor disconnected.", "reason", reason)
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		logger.Warn("Monitor connection failed.", "error", errs)
	})
	io.Connect()

	emit := func(m Message) {
		if !connected.Load() {
			logger.Debug("Monitor not connected, progress skipped.")
			return
		}
		logger.Debug("Emitting progress.", "points", m.Progress.Points, "final", m.Final)
		io.Emit(ProgressEvent, m)
	}
	publish(ctx, p.cfg.Interval, run, src, emit)
}

// publish drives the ticker. It is split from Run so the schedule can be
// tested without a server.
func publish(ctx context.Context, interval time.Duration, run string, src Source, emit func(Message)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			emit(Message{Run: run, Progress: src.Progress(), Final: true})
			return
		case <-ticker.C:
			emit(Message{Run: run, Progress: src.Progress()})
		}
	}
}

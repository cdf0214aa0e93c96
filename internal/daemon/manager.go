// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon runs the orkestra HTTP servers and background subsystems
// and shuts them down in order.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/orkestra/internal/config"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	failedStartTimeout     = 5 * time.Second
)

// ShutdownHook releases a subsystem. Hooks run after the servers have
// drained, newest first.
type ShutdownHook func(ctx context.Context) error

// Manager owns the listeners of one orkestra process.
type Manager interface {
	// Start binds every listener, serves until ctx is done or a server
	// fails, then runs Shutdown.
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
	// APIAddr is empty until the API listener is bound.
	APIAddr() string
}

// endpoint is one listener plus the server bound to it.
type endpoint struct {
	name string
	addr string
	srv  *http.Server
}

type hookEntry struct {
	name string
	fn   ShutdownHook
}

type manager struct {
	cfg    config.ServerConfig
	deps   Deps
	logger zerolog.Logger

	mu        sync.Mutex
	state     int
	endpoints []endpoint
	apiAddr   string
	hooks     []hookEntry
}

const (
	stateIdle = iota
	stateRunning
	stateStopping
)

// NewManager validates deps and returns an idle manager.
func NewManager(cfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str(xglog.FieldComponent, "daemon").Logger(),
	}, nil
}

func (m *manager) plan() []endpoint {
	api := endpoint{
		name: "API",
		addr: m.cfg.ListenAddr,
		srv: &http.Server{
			Handler:           m.deps.APIHandler,
			ReadTimeout:       m.cfg.ReadTimeout,
			ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
			WriteTimeout:      m.cfg.WriteTimeout,
			IdleTimeout:       m.cfg.IdleTimeout,
		},
	}
	if !m.deps.metricsEnabled() {
		return []endpoint{api}
	}
	metrics := endpoint{
		name: "metrics",
		addr: m.deps.MetricsAddr,
		srv:  &http.Server{Handler: m.deps.MetricsHandler, ReadHeaderTimeout: 5 * time.Second},
	}
	return []endpoint{metrics, api}
}

func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("daemon: start context is nil")
	}

	m.mu.Lock()
	if m.state != stateIdle {
		m.mu.Unlock()
		return ErrManagerAlreadyStarted
	}
	m.state = stateRunning
	m.mu.Unlock()

	m.logger.Info().
		Str("listen", m.cfg.ListenAddr).
		Dur("read_timeout", m.cfg.ReadTimeout).
		Dur("write_timeout", m.cfg.WriteTimeout).
		Dur("shutdown_timeout", m.cfg.ShutdownTimeout).
		Msg("starting daemon manager")

	eps := m.plan()
	serveErr := make(chan error, len(eps))
	var lc net.ListenConfig
	for _, ep := range eps {
		ln, err := lc.Listen(ctx, "tcp", ep.addr)
		if err != nil {
			m.abortStart(ctx)
			return fmt.Errorf("failed to start %s server: %w", ep.name, err)
		}
		m.mu.Lock()
		m.endpoints = append(m.endpoints, ep)
		if ep.name == "API" {
			m.apiAddr = ln.Addr().String()
		}
		m.mu.Unlock()

		m.logger.Info().
			Str(xglog.FieldEvent, "server.listening").
			Str("server", ep.name).
			Str("addr", ln.Addr().String()).
			Msg("listening")
		go m.serve(ep, ln, serveErr)
	}

	var cause error
	select {
	case cause = <-serveErr:
		m.logger.Error().Err(cause).Msg("server error, initiating shutdown")
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	err := m.Shutdown(stopCtx)
	switch {
	case cause != nil && err != nil:
		return fmt.Errorf("server error and shutdown failure: %w", errors.Join(cause, err))
	case cause != nil:
		return cause
	}
	return err
}

func (m *manager) serve(ep endpoint, ln net.Listener, errc chan<- error) {
	err := ep.srv.Serve(ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	m.logger.Error().
		Err(err).
		Str(xglog.FieldEvent, "server.failed").
		Str("server", ep.name).
		Msg("server failed")
	errc <- fmt.Errorf("%s server: %w", ep.name, err)
}

func (m *manager) abortStart(ctx context.Context) {
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), failedStartTimeout)
	defer cancel()
	_ = m.Shutdown(c)
}

func (m *manager) APIAddr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiAddr
}

// Shutdown drains the servers, then runs the hooks in LIFO order. It is
// idempotent once started; every failure is joined into the result.
func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("daemon: shutdown context is nil")
	}

	m.mu.Lock()
	switch m.state {
	case stateIdle:
		m.mu.Unlock()
		return ErrManagerNotStarted
	case stateStopping:
		m.mu.Unlock()
		return nil
	}
	m.state = stateStopping
	eps := append([]endpoint(nil), m.endpoints...)
	hooks := append([]hookEntry(nil), m.hooks...)
	m.mu.Unlock()

	m.logger.Info().Msg("shutting down daemon manager")

	timeout := m.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var errs []error
	for _, ep := range eps {
		if err := ep.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s server shutdown: %w", ep.name, err))
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		began := time.Now()
		err := h.fn(ctx)
		ev := m.logger.Debug()
		if err != nil {
			ev = m.logger.Error().Err(err)
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
		ev.Str("hook", h.name).Dur("duration", time.Since(began)).Msg("shutdown hook finished")
	}

	if len(errs) > 0 {
		m.logger.Error().Int("error_count", len(errs)).Msg("shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Msg("daemon manager stopped cleanly")
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hookEntry{name: name, fn: hook})
}

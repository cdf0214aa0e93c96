// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package portalloc reserves free TCP ports for worker processes.
//
// The kernel picks the port (bind to :0); the allocator only guarantees that
// two in-flight creations in this process never receive the same port. A
// port is pending from Reserve until Release, which the launcher calls once
// the worker spawn was attempted. Between close and the worker's own bind an
// unrelated process may still grab the port.
package portalloc

import (
	"context"
	"fmt"
	"net"

	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/ManuGH/orkestra/internal/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// DefaultMaxAttempts bounds the bind/collide loop.
const DefaultMaxAttempts = 64

// ErrExhausted is returned when every attempt hit an already pending port.
var ErrExhausted = ports.ErrPortsExhausted

// ListenFunc opens a TCP listener. Tests replace it to force collisions.
type ListenFunc func(ctx context.Context, network, address string) (net.Listener, error)

// Options configures an Allocator.
type Options struct {
	BindHost    string // host to bind when probing; empty means all interfaces
	MaxAttempts int
	Listen      ListenFunc
	Logger      *zerolog.Logger
}

// Allocator hands out kernel-assigned ports and tracks pending ones.
type Allocator struct {
	bindHost    string
	maxAttempts int
	listen      ListenFunc
	pending     *xsync.MapOf[uint16, struct{}]
	logger      zerolog.Logger
}

// New returns an Allocator with defaults applied.
func New(opts Options) *Allocator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Listen == nil {
		var lc net.ListenConfig
		opts.Listen = lc.Listen
	}
	logger := xglog.WithComponent("portalloc")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Allocator{
		bindHost:    opts.BindHost,
		maxAttempts: opts.MaxAttempts,
		listen:      opts.Listen,
		pending:     xsync.NewMapOf[uint16, struct{}](),
		logger:      logger,
	}
}

// Reserve returns a port that no other pending reservation holds.
func (a *Allocator) Reserve(ctx context.Context) (uint16, error) {
	addr := net.JoinHostPort(a.bindHost, "0")
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			metrics.IncPortReservation("canceled")
			return 0, err
		}

		port, err := a.probe(ctx, addr)
		if err != nil {
			metrics.IncPortReservation("error")
			return 0, fmt.Errorf("probe port: %w", err)
		}

		if _, loaded := a.pending.LoadOrStore(port, struct{}{}); loaded {
			metrics.IncPortCollision()
			a.logger.Debug().
				Str(xglog.FieldEvent, "port.collision").
				Int(xglog.FieldPort, int(port)).
				Int(xglog.FieldAttempt, attempt).
				Msg("port already pending, retrying")
			continue
		}

		metrics.IncPortReservation("ok")
		metrics.SetPortsPending(a.Pending())
		return port, nil
	}

	metrics.IncPortReservation("exhausted")
	a.logger.Warn().
		Str(xglog.FieldEvent, "port.exhausted").
		Int("max_attempts", a.maxAttempts).
		Msg("port reservation exhausted")
	return 0, ErrExhausted
}

// Release drops port from the pending set. Releasing an unknown port is a no-op.
func (a *Allocator) Release(port uint16) {
	a.pending.Delete(port)
	metrics.SetPortsPending(a.Pending())
}

// Pending returns the number of reserved, unreleased ports. It feeds the
// pending-ports gauge and the readiness report.
func (a *Allocator) Pending() int {
	return a.pending.Size()
}

func (a *Allocator) probe(ctx context.Context, addr string) (uint16, error) {
	ln, err := a.listen(ctx, "tcp", addr)
	if err != nil {
		return 0, err
	}
	defer ln.Close()

	tcp, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address %T", ln.Addr())
	}
	return uint16(tcp.Port), nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ports

import (
	"context"
	"errors"
	"time"
)

// ErrPortsExhausted is wrapped by a PortReserver that ran out of attempts,
// as opposed to failing to bind at all.
var ErrPortsExhausted = errors.New("no free port after max attempts")

// PortReserver hands out ports no other in-flight creation holds.
type PortReserver interface {
	Reserve(ctx context.Context) (uint16, error)
	Release(port uint16)
}

// LaunchSpec identifies the worker to start.
type LaunchSpec struct {
	SessionID string
	Code      string
	Port      uint16
}

// WorkerExit describes how a worker ended.
type WorkerExit struct {
	SessionID string
	PID       int
	ExitCode  int
	Err       error
	Stderr    []string
	Lifetime  time.Duration
}

// Clean reports a zero exit status.
func (e WorkerExit) Clean() bool { return e.Err == nil && e.ExitCode == 0 }

// LaunchHooks are invoked by the launcher from its supervision goroutine.
// Release runs exactly once after the spawn attempt. OnExit runs once after
// a successfully spawned worker terminates.
type LaunchHooks struct {
	Release func()
	OnExit  func(WorkerExit)
}

// WorkerHandle is a running worker.
type WorkerHandle interface {
	PID() int
	Exited() bool
}

// WorkerLauncher starts worker processes and reports the spawn outcome
// synchronously. It never waits for the worker to finish.
type WorkerLauncher interface {
	Launch(ctx context.Context, spec LaunchSpec, hooks LaunchHooks) (WorkerHandle, error)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package worker launches and supervises game server processes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ManuGH/orkestra/internal/domain/session/model"
	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/ManuGH/orkestra/internal/metrics"
	"github.com/ManuGH/orkestra/internal/procgroup"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	stderrTail         = 20
	defaultStderrDrain = 2 * time.Second
)

// Options configures a Launcher.
type Options struct {
	Bin         string
	Args        []string // prepended to the per-session arguments
	Dir         string
	LaunchRate  float64 // spawns per second, <= 0 disables throttling
	LaunchBurst int
	StderrLines int
	// StderrDrain bounds how long exit handling waits for stderr to close
	// after the worker itself has exited. Children that inherited the pipe
	// would otherwise hold the session open.
	StderrDrain time.Duration
	Logger      *zerolog.Logger
}

// Launcher starts one process per session and watches it until exit.
type Launcher struct {
	bin     string
	args    []string
	dir     string
	lines   int
	drain   time.Duration
	limiter *rate.Limiter
	logger  zerolog.Logger

	running  *xsync.MapOf[string, *Handle]
	wg       sync.WaitGroup
	stopping atomic.Bool
	grace    atomic.Int64
}

var _ ports.WorkerLauncher = (*Launcher)(nil)

// NewLauncher validates opts and returns a Launcher.
func NewLauncher(opts Options) (*Launcher, error) {
	if opts.Bin == "" {
		return nil, ErrMissingBinary
	}
	limit := rate.Inf
	if opts.LaunchRate > 0 {
		limit = rate.Limit(opts.LaunchRate)
	}
	burst := opts.LaunchBurst
	if burst <= 0 {
		burst = 1
	}
	drain := opts.StderrDrain
	if drain <= 0 {
		drain = defaultStderrDrain
	}
	logger := xglog.WithComponent("worker")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Launcher{
		bin:     opts.Bin,
		args:    append([]string(nil), opts.Args...),
		dir:     opts.Dir,
		lines:   opts.StderrLines,
		drain:   drain,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		running: xsync.NewMapOf[string, *Handle](),
	}, nil
}

// Args returns the full argument list for a session worker.
func (l *Launcher) Args(spec ports.LaunchSpec) []string {
	args := make([]string, 0, len(l.args)+6)
	args = append(args, l.args...)
	return append(args,
		"-log",
		"-Port="+strconv.Itoa(int(spec.Port)),
		"--serverid", spec.SessionID,
		"--servercode", spec.Code,
	)
}

// Launch spawns the worker for spec and returns once the spawn outcome is
// known. hooks.Release is called exactly once whatever the outcome.
// hooks.OnExit is called after a spawned worker terminates.
func (l *Launcher) Launch(ctx context.Context, spec ports.LaunchSpec, hooks ports.LaunchHooks) (ports.WorkerHandle, error) {
	release := onceFunc(hooks.Release)

	if l.stopping.Load() {
		release()
		return nil, &model.SpawnError{SessionID: spec.SessionID, Err: ErrShuttingDown}
	}
	if err := l.limiter.Wait(ctx); err != nil {
		release()
		metrics.IncWorkerStart("throttled")
		return nil, &model.SpawnError{SessionID: spec.SessionID, Err: fmt.Errorf("launch throttled: %w", err)}
	}

	h := &Handle{
		sessionID: spec.SessionID,
		stderr:    NewLineRing(l.lines),
		done:      make(chan struct{}),
	}
	ack := make(chan error, 1)

	l.wg.Add(1)
	go l.supervise(spec, h, ack, release, hooks.OnExit)

	if err := <-ack; err != nil {
		return nil, &model.SpawnError{SessionID: spec.SessionID, Err: err}
	}
	return h, nil
}

func (l *Launcher) supervise(spec ports.LaunchSpec, h *Handle, ack chan<- error, release func(), onExit func(ports.WorkerExit)) {
	defer l.wg.Done()

	logger := l.logger.With().
		Str(xglog.FieldSessionID, spec.SessionID).
		Int(xglog.FieldPort, int(spec.Port)).
		Logger()

	// Not CommandContext: the worker outlives the request that created it.
	cmd := exec.Command(l.bin, l.Args(spec)...)
	cmd.Dir = l.dir
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = h.stderr
	cmd.WaitDelay = l.drain
	procgroup.Isolate(cmd)

	err := cmd.Start()
	release()
	if err != nil {
		metrics.IncWorkerStart("failed")
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "worker.spawn_failed").
			Msg("worker process could not be started")
		ack <- err
		return
	}

	h.cmd = cmd
	h.pid = cmd.Process.Pid
	h.startedAt = time.Now()
	l.running.Store(spec.SessionID, h)
	if l.stopping.Load() {
		// Spawned while Shutdown was already iterating.
		go procgroup.Terminate(cmd, h.done, time.Duration(l.grace.Load()))
	}
	metrics.IncWorkerStart("ok")
	metrics.SetWorkersRunning(l.running.Size())

	logger.Debug().
		Str(xglog.FieldEvent, "worker.started").
		Int(xglog.FieldPID, h.pid).
		Str(xglog.FieldJoinCode, spec.Code).
		Msg("worker process started")
	ack <- nil

	waitErr := cmd.Wait()
	h.stderr.Flush()

	exit := ports.WorkerExit{
		SessionID: spec.SessionID,
		PID:       h.pid,
		ExitCode:  cmd.ProcessState.ExitCode(),
		Stderr:    h.stderr.LastN(stderrTail),
		Lifetime:  time.Since(h.startedAt),
	}
	var exitErr *exec.ExitError
	switch {
	case errors.Is(waitErr, exec.ErrWaitDelay):
		// The worker exited; only an inherited stderr was still open.
		logger.Debug().Str(xglog.FieldEvent, "worker.stderr_abandoned").Msg("stderr still held by a child after exit")
	case waitErr != nil && !errors.As(waitErr, &exitErr):
		exit.Err = waitErr
	}

	l.running.Delete(spec.SessionID)
	metrics.SetWorkersRunning(l.running.Size())
	metrics.ObserveWorkerExit(exitReason(cmd), exit.Lifetime)

	h.exited.Store(true)
	close(h.done)

	if exit.Clean() {
		logger.Debug().
			Str(xglog.FieldEvent, "worker.exited").
			Int(xglog.FieldPID, h.pid).
			Dur("lifetime", exit.Lifetime).
			Msg("worker process exited")
	} else {
		logger.Warn().
			Err(waitErr).
			Str(xglog.FieldEvent, "worker.exit_failed").
			Int(xglog.FieldPID, h.pid).
			Int(xglog.FieldExitCode, exit.ExitCode).
			Strs(xglog.FieldStderr, exit.Stderr).
			Msg("worker process exited with error")
	}

	if onExit != nil {
		onExit(exit)
	}
}

// Running returns the number of supervised workers.
func (l *Launcher) Running() int { return l.running.Size() }

// Shutdown refuses new launches, terminates every running worker group
// (SIGTERM, then SIGKILL after grace) and waits for supervision goroutines.
func (l *Launcher) Shutdown(ctx context.Context, grace time.Duration) error {
	l.grace.Store(int64(grace))
	l.stopping.Store(true)

	var (
		forced     atomic.Int32
		terminates sync.WaitGroup
	)
	l.running.Range(func(_ string, h *Handle) bool {
		terminates.Add(1)
		go func() {
			defer terminates.Done()
			if procgroup.Terminate(h.cmd, h.done, grace) {
				forced.Add(1)
			}
		}()
		return true
	})

	done := make(chan struct{})
	go func() {
		terminates.Wait()
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if n := forced.Load(); n > 0 {
			l.logger.Warn().Str(xglog.FieldEvent, "worker.shutdown_forced").Int32("count", n).Msg("workers killed after grace period")
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}
}

func exitReason(cmd *exec.Cmd) string {
	if cmd.ProcessState == nil {
		return "failed"
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return "signaled"
	}
	if cmd.ProcessState.Success() {
		return "clean"
	}
	return "failed"
}

func onceFunc(f func()) func() {
	if f == nil {
		return func() {}
	}
	return sync.OnceFunc(f)
}

// Handle tracks one spawned worker.
type Handle struct {
	sessionID string
	pid       int
	startedAt time.Time
	cmd       *exec.Cmd
	stderr    *LineRing
	done      chan struct{}
	exited    atomic.Bool
}

func (h *Handle) PID() int { return h.pid }

// Exited reports whether the process has terminated.
func (h *Handle) Exited() bool { return h.exited.Load() }

// Done is closed when the process has terminated.
func (h *Handle) Done() <-chan struct{} { return h.done }

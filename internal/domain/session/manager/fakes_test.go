// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/orkestra/internal/domain/session/model"
	"github.com/ManuGH/orkestra/internal/domain/session/ports"
)

type fakeHandle struct {
	pid    int
	exited atomic.Bool
}

func (h *fakeHandle) PID() int     { return h.pid }
func (h *fakeHandle) Exited() bool { return h.exited.Load() }

// fakeLauncher records launches and lets tests trigger worker exits.
type fakeLauncher struct {
	mu       sync.Mutex
	fail     error
	exitFast bool // worker dies before Launch returns
	specs    []ports.LaunchSpec
	hooks    map[string]ports.LaunchHooks
	handles  map[string]*fakeHandle
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{hooks: map[string]ports.LaunchHooks{}, handles: map[string]*fakeHandle{}}
}

func (f *fakeLauncher) Launch(_ context.Context, spec ports.LaunchSpec, hooks ports.LaunchHooks) (ports.WorkerHandle, error) {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	fail, exitFast := f.fail, f.exitFast
	h := &fakeHandle{pid: 1000 + len(f.specs)}
	if fail == nil {
		f.hooks[spec.SessionID] = hooks
		f.handles[spec.SessionID] = h
	}
	f.mu.Unlock()

	hooks.Release()
	if fail != nil {
		return nil, &model.SpawnError{SessionID: spec.SessionID, Err: fail}
	}
	if exitFast {
		h.exited.Store(true)
		hooks.OnExit(ports.WorkerExit{SessionID: spec.SessionID, PID: h.pid, ExitCode: 1})
	}
	return h, nil
}

// exit simulates the worker for id terminating with code.
func (f *fakeLauncher) exit(id string, code int) {
	f.mu.Lock()
	hooks := f.hooks[id]
	h := f.handles[id]
	f.mu.Unlock()
	h.exited.Store(true)
	hooks.OnExit(ports.WorkerExit{SessionID: id, PID: h.pid, ExitCode: code, Stderr: []string{"bye"}})
}

func (f *fakeLauncher) launches() []ports.LaunchSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.LaunchSpec(nil), f.specs...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev ports.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(t ports.EventType) []ports.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ports.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

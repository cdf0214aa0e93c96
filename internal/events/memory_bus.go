// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package events fans session lifecycle events out to in-process consumers
// (websocket hub, audit log) and to external sinks (Redis).
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/ManuGH/orkestra/internal/metrics"
)

const (
	defaultBuffer = 64
	dropLogEvery  = 100
)

var dropCount atomic.Uint64

// MemoryBus is an in-memory pub/sub. It is not durable; delivery to a
// subscriber is attempted until the publish context is done.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

var _ ports.Publisher = (*MemoryBus)(nil)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*Subscription]struct{})}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

// Publish delivers ev to every subscriber whose filter accepts it.
func (b *MemoryBus) Publish(ctx context.Context, ev ports.Event) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	// Held for the whole fan-out so Close cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		case <-ctx.Done():
			reason := publishDropReason(ctx.Err())
			metrics.IncEventDrop("memory", reason)
			if count := dropCount.Add(1); count%dropLogEvery == 0 {
				xglog.L().Warn().
					Str(xglog.FieldEvent, "events.dropped").
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("memory bus failed to publish due to context cancellation")
			}
			return fmt.Errorf("publish %s: %w", ev.Type, ctx.Err())
		}
	}
	return nil
}

// Filter selects the events a subscription receives.
type Filter func(ports.Event) bool

// ForSession accepts only events about id.
func ForSession(id string) Filter {
	return func(ev ports.Event) bool { return ev.SessionID == id }
}

// Subscribe registers a consumer. A nil filter receives everything.
func (b *MemoryBus) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{bus: b, ch: make(chan ports.Event, defaultBuffer), filter: filter}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Close closes every subscription channel. Publishing afterwards is a no-op.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}

// Subscription is one consumer's view of the bus.
type Subscription struct {
	bus    *MemoryBus
	ch     chan ports.Event
	filter Filter
	once   sync.Once
}

func (s *Subscription) C() <-chan ports.Event {
	return s.ch
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if _, ok := s.bus.subs[s]; ok {
			delete(s.bus.subs, s)
			close(s.ch)
		}
	})
	return nil
}

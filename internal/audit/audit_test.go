// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	"github.com/ManuGH/orkestra/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "audit.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	code := 1
	require.NoError(t, s.Record(ctx, ports.Event{Type: ports.EventSessionCreated, SessionID: "a", Code: "000000"}))
	require.NoError(t, s.Record(ctx, ports.Event{Type: ports.EventSessionCreated, SessionID: "b"}))
	require.NoError(t, s.Record(ctx, ports.Event{Type: ports.EventSessionTerminated, SessionID: "a", ExitCode: &code, Stderr: []string{"crash"}}))

	all, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ports.EventSessionTerminated, all[0].Event.Type, "newest first")
	require.NotNil(t, all[0].Event.ExitCode)
	assert.Equal(t, 1, *all[0].Event.ExitCode)
	assert.Equal(t, []string{"crash"}, all[0].Event.Stderr)

	onlyA, err := s.Recent(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	for _, e := range onlyA {
		assert.Equal(t, "a", e.Event.SessionID)
	}

	limited, err := s.Recent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.sqlite")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), ports.Event{Type: ports.EventSessionCreated, SessionID: "a"}))
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Recent(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, s.Verify(context.Background()))
}

func TestStore_RunConsumesBus(t *testing.T) {
	s := openTestStore(t)
	bus := events.NewMemoryBus()
	sub := bus.Subscribe(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, sub) }()

	require.NoError(t, bus.Publish(context.Background(), ports.Event{Type: ports.EventSessionUpdated, SessionID: "z", At: time.Now()}))

	require.Eventually(t, func() bool {
		got, err := s.Recent(context.Background(), "z", 10)
		return err == nil && len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

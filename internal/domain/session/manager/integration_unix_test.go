// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/orkestra/internal/domain/session/model"
	"github.com/ManuGH/orkestra/internal/domain/session/store"
	"github.com/ManuGH/orkestra/internal/events"
	"github.com/ManuGH/orkestra/internal/portalloc"
	"github.com/ManuGH/orkestra/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScriptService(t *testing.T, body string) (*Service, *worker.Launcher, *events.MemoryBus) {
	t.Helper()
	script := filepath.Join(t.TempDir(), "server.sh")
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	launcher, err := worker.NewLauncher(worker.Options{Bin: script, StderrLines: 5})
	require.NoError(t, err)
	bus := events.NewMemoryBus()

	svc, err := New(Options{
		Store:     store.NewMemoryStore(),
		Ports:     portalloc.New(portalloc.Options{BindHost: "127.0.0.1"}),
		Launcher:  launcher,
		Publisher: bus,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = launcher.Shutdown(ctx, time.Second)
		bus.Close()
	})
	return svc, launcher, bus
}

func TestIntegration_WorkerExitRemovesSession(t *testing.T) {
	cases := map[string]string{
		"clean":  "#!/bin/sh\nsleep 0.2\nexit 0\n",
		"failed": "#!/bin/sh\nsleep 0.2\necho boom >&2\nexit 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, _ := newScriptService(t, body)
			ctx := context.Background()

			sess, err := svc.CreateSession(ctx, "alice", model.Config{Title: "t", GameMap: "m", MaxPlayers: 2})
			require.NoError(t, err)

			assert.Eventually(t, func() bool {
				_, err := svc.GetByID(ctx, sess.ID)
				return err != nil
			}, 5*time.Second, 20*time.Millisecond)
			assert.Empty(t, svc.ListAll(ctx))
		})
	}
}

func TestIntegration_RunningWorkerKeepsSession(t *testing.T) {
	svc, launcher, _ := newScriptService(t, "#!/bin/sh\nexec sleep 30\n")
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "alice", model.Config{Title: "t", GameMap: "m", MaxPlayers: 2})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Code, got.Code)
	assert.Equal(t, 1, launcher.Running())

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, launcher.Shutdown(shutdownCtx, time.Second))
	assert.Empty(t, svc.ListAll(ctx), "terminated workers drop their sessions")
}

func TestIntegration_MissingBinaryIsSpawnFailure(t *testing.T) {
	launcher, err := worker.NewLauncher(worker.Options{Bin: filepath.Join(t.TempDir(), "absent")})
	require.NoError(t, err)
	alloc := portalloc.New(portalloc.Options{BindHost: "127.0.0.1"})
	svc, err := New(Options{Store: store.NewMemoryStore(), Ports: alloc, Launcher: launcher})
	require.NoError(t, err)

	_, err = svc.CreateSession(context.Background(), "alice", model.Config{MaxPlayers: 2})
	assert.ErrorIs(t, err, model.ErrSpawnFailed)
	assert.Empty(t, svc.ListAll(context.Background()))
	assert.Equal(t, 0, alloc.Pending())
}

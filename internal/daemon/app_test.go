// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/orkestra/internal/config"
	"github.com/ManuGH/orkestra/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestManager(t *testing.T) Manager {
	t.Helper()
	mgr, err := NewManager(testServerConfig(), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	return mgr
}

func TestApp_MissingManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil)
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestApp_RunnersStopAfterShutdownHooks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := newTestManager(t)

	var hooksDone atomic.Bool
	mgr.RegisterShutdownHook("drain", func(context.Context) error {
		time.Sleep(50 * time.Millisecond)
		hooksDone.Store(true)
		return nil
	})

	var sawHooks atomic.Bool
	runner := Runner{Name: "sink", Run: func(ctx context.Context) error {
		<-ctx.Done()
		sawHooks.Store(hooksDone.Load())
		return nil
	}}

	app := NewApp(log.WithComponent("test"), mgr, nil, runner)
	app.reload = nil

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- app.Run(ctx) }()
	waitForAddr(t, mgr)
	cancel()

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
	}
	assert.True(t, sawHooks.Load(), "runner stopped before shutdown hooks completed")
}

func TestApp_RunnerFailureStopsServers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := newTestManager(t)
	boom := errors.New("sink lost")
	runner := Runner{Name: "sink", Run: func(context.Context) error { return boom }}

	app := NewApp(log.WithComponent("test"), mgr, nil, runner)
	app.reload = nil

	select {
	case err := <-runAsync(app):
		require.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after runner failure")
	}
}

func TestApp_WatchesConfigFile(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	path := filepath.Join(dir, "orkestra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: info\nworker:\n  bin: /bin/true\n"), 0o600))

	loader := config.NewLoaderWithEnv(path, map[string]string{})
	cfg, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewHolder(cfg, loader)

	reloaded := make(chan string, 1)
	holder.OnReload(func(_, next config.AppConfig) {
		select {
		case reloaded <- next.LogLevel:
		default:
		}
	})

	mgr := newTestManager(t)
	app := NewApp(log.WithComponent("test"), mgr, holder)
	app.reload = nil

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- app.Run(ctx) }()
	waitForAddr(t, mgr)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\nworker:\n  bin: /bin/true\n"), 0o600))

	select {
	case level := <-reloaded:
		assert.Equal(t, "debug", level)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not picked up")
	}

	cancel()
	require.NoError(t, <-errChan)
}

func runAsync(app *App) <-chan error {
	errChan := make(chan error, 1)
	go func() { errChan <- app.Run(context.Background()) }()
	return errChan
}

// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_ReloadKeepsOldOnError(t *testing.T) {
	path := writeConfig(t, "worker:\n  bin: /bin/true\nlogLevel: info\n")
	loader := NewLoaderWithEnv(path, nil)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	var calls atomic.Int32
	h.OnReload(func(old, next AppConfig) {
		calls.Add(1)
		assert.Equal(t, "info", old.LogLevel)
		assert.Equal(t, "debug", next.LogLevel)
	})

	require.NoError(t, os.WriteFile(path, []byte("worker:\n  bin: /bin/true\nlogLevel: debug\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, "debug", h.Get().LogLevel)
	assert.EqualValues(t, 1, calls.Load())

	require.NoError(t, os.WriteFile(path, []byte("logLevel: [broken\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "debug", h.Get().LogLevel)
	assert.EqualValues(t, 1, calls.Load())
}

func TestHolder_WatchAppliesFileChanges(t *testing.T) {
	path := writeConfig(t, "worker:\n  bin: /bin/true\nlogLevel: info\n")
	loader := NewLoaderWithEnv(path, nil)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.Watch(ctx))
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})

	require.NoError(t, os.WriteFile(path, []byte("worker:\n  bin: /bin/true\nlogLevel: warn\n"), 0o600))
	assert.Eventually(t, func() bool { return h.Get().LogLevel == "warn" }, 5*time.Second, 50*time.Millisecond)
}

func TestHolder_WatchWithoutFileIsNoop(t *testing.T) {
	h := NewHolder(Defaults(), NewLoaderWithEnv("", nil))
	require.NoError(t, h.Watch(context.Background()))
	select {
	case <-h.Done():
	default:
		t.Fatal("done should be closed without a file")
	}
}

func TestApplyLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	old := Defaults()
	old.LogLevel = "info"
	next := old
	next.LogLevel = "warn"
	ApplyLogLevel(old, next)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	bad := next
	bad.LogLevel = "loud"
	ApplyLogLevel(next, bad)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel(), "unknown level leaves the current one")
}

func TestHolder_ListenersRegisteredDuringReload(t *testing.T) {
	path := writeConfig(t, "worker:\n  bin: /bin/true\n")
	loader := NewLoaderWithEnv(path, nil)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	var late atomic.Int32
	h.OnReload(func(AppConfig, AppConfig) {
		h.OnReload(func(AppConfig, AppConfig) { late.Add(1) })
	})

	require.NoError(t, h.Reload(context.Background()))
	assert.EqualValues(t, 0, late.Load(), "listener added mid-reload runs from the next reload")
	require.NoError(t, h.Reload(context.Background()))
	assert.EqualValues(t, 1, late.Load())
}

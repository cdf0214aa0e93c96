// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Holder keeps the current configuration and reloads it when the file
// changes. Only settings that can change at runtime are applied by
// listeners; the rest take effect on restart.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	listenMu  sync.Mutex
	listeners []func(old, next AppConfig)

	watchOnce sync.Once
	done      chan struct{}
}

func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  xglog.WithComponent("config"),
		done:    make(chan struct{}),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers fn to run after every successful reload.
func (h *Holder) OnReload(fn func(old, next AppConfig)) {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload loads and validates the file again. On failure the old
// configuration stays active.
func (h *Holder) Reload(_ context.Context) error {
	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("configuration reload rejected")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = next
	h.mu.Unlock()

	h.listenMu.Lock()
	listeners := slices.Clone(h.listeners)
	h.listenMu.Unlock()
	for _, fn := range listeners {
		fn(old, next)
	}

	h.logger.Info().Str(xglog.FieldEvent, "config.reloaded").Msg("configuration reloaded")
	return nil
}

// Watch reloads on file changes until ctx is done. It returns immediately
// when no file is configured. The parent directory is watched so editors
// that replace the file are handled.
func (h *Holder) Watch(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.watchOnce.Do(func() { close(h.done) })
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().Str(xglog.FieldEvent, "config.watcher_started").Str("path", path).Msg("watching config file for changes")

	go h.watchLoop(ctx, watcher, filepath.Clean(path))
	return nil
}

// Done is closed once the watcher has stopped.
func (h *Holder) Done() <-chan struct{} { return h.done }

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer h.watchOnce.Do(func() { close(h.done) })
	defer func() { _ = watcher.Close() }()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			_ = h.Reload(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

// ApplyLogLevel is a reload listener that changes the global log level.
func ApplyLogLevel(old, next AppConfig) {
	if old.LogLevel == next.LogLevel {
		return
	}
	logger := xglog.WithComponent("config")
	if err := xglog.SetLevel(next.LogLevel); err != nil {
		logger.Warn().Err(err).Msg("log level not applied")
		return
	}
	logger.Info().Str("old", old.LogLevel).Str("new", next.LogLevel).Msg("log level changed")
}

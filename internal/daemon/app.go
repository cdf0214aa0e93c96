// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/orkestra/internal/config"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/rs/zerolog"
)

// Runner is a background subsystem (event sink, audit writer). Run must
// return once ctx is done.
type Runner struct {
	Name string
	Run  func(ctx context.Context) error
}

// App ties the Manager to the config holder and the background runners.
type App struct {
	logger  zerolog.Logger
	manager Manager
	cfg     *config.Holder
	runners []Runner
	reload  os.Signal
}

// NewApp creates a new App. cfg may be nil, which disables hot reload.
func NewApp(logger zerolog.Logger, manager Manager, cfg *config.Holder, runners ...Runner) *App {
	return &App{
		logger:  logger,
		manager: manager,
		cfg:     cfg,
		runners: runners,
		reload:  syscall.SIGHUP,
	}
}

// Run blocks until ctx is cancelled or something fails. Runners are stopped
// only after Manager.Start has returned, so events published by shutdown
// hooks still reach them.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, gctx := errgroup.WithContext(ctx)
	runnerCtx, stopRunners := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRunners()

	if a.cfg != nil {
		a.watchConfig(gctx, g)
		if a.reload != nil {
			g.Go(func() error { return a.reloadOnSignal(gctx) })
		}
	}

	for _, r := range a.runners {
		g.Go(func() error { return a.runRunner(runnerCtx, r) })
	}

	g.Go(func() error {
		defer stopRunners()
		if err := a.manager.Start(gctx); err != nil {
			_ = a.manager.Shutdown(context.WithoutCancel(gctx))
			return err
		}
		return nil
	})

	return g.Wait()
}

func (a *App) watchConfig(ctx context.Context, g *errgroup.Group) {
	if err := a.cfg.Watch(ctx); err != nil {
		a.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "config.watcher_start_failed").
			Msg("config file watcher unavailable")
		return
	}
	g.Go(func() error {
		<-a.cfg.Done()
		return nil
	})
}

func (a *App) reloadOnSignal(ctx context.Context) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, a.reload)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
		}
		a.logger.Info().
			Str(xglog.FieldEvent, "config.reload_signal").
			Str("signal", a.reload.String()).
			Msg("reloading config")
		if err := a.cfg.Reload(ctx); err != nil {
			a.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "config.reload_failed").
				Msg("config reload failed")
		}
	}
}

func (a *App) runRunner(ctx context.Context, r Runner) error {
	err := r.Run(ctx)
	if err != nil {
		a.logger.Error().Err(err).Str("runner", r.Name).Msg("background runner failed")
	}
	return err
}

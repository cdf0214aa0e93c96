// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/orkestra/internal/audit"
	"github.com/ManuGH/orkestra/internal/config"
	"github.com/ManuGH/orkestra/internal/daemon"
	"github.com/ManuGH/orkestra/internal/domain/session/manager"
	"github.com/ManuGH/orkestra/internal/domain/session/store"
	"github.com/ManuGH/orkestra/internal/events"
	"github.com/ManuGH/orkestra/internal/health"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/ManuGH/orkestra/internal/portalloc"
	"github.com/ManuGH/orkestra/internal/telemetry"
	"github.com/ManuGH/orkestra/internal/version"
	"github.com/ManuGH/orkestra/internal/worker"
)

const redisRecentEvents = 100

// runtime is the session machinery shared by the HTTP and stdio front ends.
type runtime struct {
	cfg       config.AppConfig
	bus       *events.MemoryBus
	launcher  *worker.Launcher
	service   *manager.Service
	health    *health.Manager
	audit     *audit.Store
	redis     *events.RedisSink
	telemetry *telemetry.Provider
	runners   []daemon.Runner
}

func buildRuntime(ctx context.Context, cfg config.AppConfig) (*runtime, error) {
	logger := xglog.WithComponent("main")
	rt := &runtime{cfg: cfg}
	built := false
	defer func() {
		if !built {
			rt.close(context.Background())
		}
	}()

	var err error
	rt.telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "orkestra",
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
		rt.telemetry = nil
	}

	bin, args, err := cfg.Worker.Command()
	if err != nil {
		return nil, err
	}
	rt.launcher, err = worker.NewLauncher(worker.Options{
		Bin:         bin,
		Args:        args,
		Dir:         cfg.Worker.Dir,
		LaunchRate:  cfg.Worker.LaunchRate,
		LaunchBurst: cfg.Worker.LaunchBurst,
		StderrLines: cfg.Worker.StderrLines,
	})
	if err != nil {
		return nil, err
	}

	rt.bus = events.NewMemoryBus()
	alloc := portalloc.New(portalloc.Options{
		BindHost:    cfg.PortBindHost,
		MaxAttempts: cfg.PortMaxAttempts,
	})
	rt.service, err = manager.New(manager.Options{
		Store:      store.NewMemoryStore(),
		Ports:      alloc,
		Launcher:   rt.launcher,
		Publisher:  rt.bus,
		PublicHost: cfg.PublicHost,
	})
	if err != nil {
		return nil, err
	}

	rt.health = health.NewManager(version.Version)
	rt.health.RegisterChecker(health.NewExecutableChecker("worker", cfg.Worker.ProbePath()))
	rt.health.RegisterChecker(health.NewCountChecker("ports_pending", alloc.Pending))

	if cfg.Redis.Enabled() {
		rt.redis, err = events.NewRedisSink(ctx, events.RedisConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			Channel:    cfg.Redis.Channel,
			RecentSize: redisRecentEvents,
		}, xglog.WithComponent("redis"))
		if err != nil {
			return nil, err
		}
		sub := rt.bus.Subscribe(nil)
		sink := rt.redis
		rt.runners = append(rt.runners, daemon.Runner{Name: "redis", Run: func(ctx context.Context) error {
			return sink.Run(ctx, sub)
		}})
		rt.health.RegisterChecker(health.NewPingChecker("redis", true, sink.Ping))
	}

	if cfg.Audit.Enabled() {
		rt.audit, err = audit.Open(ctx, cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		sub := rt.bus.Subscribe(nil)
		st := rt.audit
		rt.runners = append(rt.runners, daemon.Runner{Name: "audit", Run: func(ctx context.Context) error {
			return st.Run(ctx, sub)
		}})
		rt.health.RegisterChecker(health.NewPingChecker("audit", false, st.Verify))
	}

	built = true
	return rt, nil
}

// stopWorkers terminates running game servers unless they are configured to
// outlive the orchestrator.
func (rt *runtime) stopWorkers(ctx context.Context) error {
	var err error
	if rt.launcher != nil {
		if rt.cfg.Worker.KillOnShutdown {
			err = rt.launcher.Shutdown(ctx, rt.cfg.Worker.ShutdownGrace)
		} else if n := rt.launcher.Running(); n > 0 {
			logger := xglog.WithComponent("main")
			logger.Info().
				Str(xglog.FieldEvent, "worker.left_running").
				Int("count", n).
				Msg("leaving game servers running")
		}
	}
	return err
}

// close releases the sinks. Call after runners have stopped.
func (rt *runtime) close(ctx context.Context) {
	logger := xglog.WithComponent("main")
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var errs []error
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	if rt.audit != nil {
		errs = append(errs, rt.audit.Close())
	}
	if rt.telemetry != nil {
		errs = append(errs, rt.telemetry.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn().Err(err).Msg("closing runtime")
	}
}

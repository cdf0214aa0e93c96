// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"os"

	"github.com/ManuGH/orkestra/internal/api"
	"github.com/ManuGH/orkestra/internal/api/middleware"
	"github.com/ManuGH/orkestra/internal/config"
	"github.com/ManuGH/orkestra/internal/daemon"
	"github.com/ManuGH/orkestra/internal/health"
	xglog "github.com/ManuGH/orkestra/internal/log"
	mcptransport "github.com/ManuGH/orkestra/internal/transport/mcp"
	"github.com/ManuGH/orkestra/internal/transport/websocket"
	"github.com/ManuGH/orkestra/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
)

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, loader, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	configureLogging(cfg, os.Stdout)
	logger := xglog.WithComponent("main")
	logger.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("config", loader.Path()).
		Msg("starting orkestra")

	if cfg.Worker.SyncOnStart {
		if err := syncWorker(ctx, cfg); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "worker.sync_failed").Msg("game server sync failed, using existing checkout")
		}
	}
	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return err
	}

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	handler, hub, err := buildHTTP(cfg, rt)
	if err != nil {
		return err
	}

	mgr, err := daemon.NewManager(cfg.API.Server(), daemon.Deps{
		Logger:         xglog.WithComponent("daemon"),
		APIHandler:     handler.Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    cfg.Metrics.ListenAddr,
	})
	if err != nil {
		return err
	}
	// LIFO: workers stop first so their terminated events reach the bus
	// consumers before the bus closes.
	mgr.RegisterShutdownHook("event-bus", func(context.Context) error {
		rt.bus.Close()
		return nil
	})
	mgr.RegisterShutdownHook("websocket", func(context.Context) error {
		hub.Close()
		return nil
	})
	mgr.RegisterShutdownHook("workers", rt.stopWorkers)

	holder := config.NewHolder(cfg, loader)
	holder.OnReload(config.ApplyLogLevel)

	return daemon.NewApp(logger, mgr, holder, rt.runners...).Run(ctx)
}

func buildHTTP(cfg config.AppConfig, rt *runtime) (*api.Server, *websocket.Hub, error) {
	mcpSrv, err := mcptransport.New(rt.service, version.Version)
	if err != nil {
		return nil, nil, err
	}
	hub := websocket.NewHub(rt.bus)

	stack := middleware.StackConfig{
		EnableMetrics: true,
		EnableLogging: true,
	}
	if rt.telemetry.Enabled() {
		stack.TracingService = "orkestra"
	}
	if cfg.API.RateLimit.Enabled {
		stack.RateLimitRPM = cfg.API.RateLimit.RequestsPerMinute
	}

	deps := api.Deps{
		Sessions: rt.service,
		Events:   hub,
		MCP:      mcpSrv.Handler(),
		Health:   rt.health,
		Stack:    stack,
	}
	if rt.audit != nil {
		deps.History = rt.audit
	}
	srv, err := api.New(deps)
	if err != nil {
		hub.Close()
		return nil, nil, err
	}
	return srv, hub, nil
}

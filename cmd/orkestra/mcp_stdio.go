// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"os"
	"time"

	xglog "github.com/ManuGH/orkestra/internal/log"
	mcptransport "github.com/ManuGH/orkestra/internal/transport/mcp"
	"github.com/ManuGH/orkestra/internal/version"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// runMCPStdio serves the session tools on stdin/stdout. stdout carries the
// protocol, so logs go to stderr.
func runMCPStdio(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	configureLogging(cfg, os.Stderr)
	logger := xglog.WithComponent("main")

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	srv, err := mcptransport.New(rt.service, version.Version)
	if err != nil {
		return err
	}

	runCtx, stopRunners := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRunners()
	var g errgroup.Group
	for _, r := range rt.runners {
		g.Go(func() error { return r.Run(runCtx) })
	}

	logger.Info().Str(xglog.FieldEvent, "mcp.stdio_started").Msg("serving MCP on stdio")
	serveErr := srv.ServeStdio()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Worker.ShutdownGrace+5*time.Second)
	defer cancel()
	if err := rt.stopWorkers(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("stopping game servers")
	}
	rt.bus.Close()
	stopRunners()
	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Msg("event consumer failed")
	}
	return serveErr
}

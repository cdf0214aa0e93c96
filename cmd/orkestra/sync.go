// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"os"

	"github.com/ManuGH/orkestra/internal/config"
	"github.com/ManuGH/orkestra/internal/worker"
	"github.com/urfave/cli/v3"
)

func runSyncWorker(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	configureLogging(cfg, os.Stdout)
	return syncWorker(ctx, cfg)
}

func syncWorker(ctx context.Context, cfg config.AppConfig) error {
	return worker.RepoSyncer{
		GitBin:      cfg.Worker.GitBin,
		RepoURL:     cfg.Worker.RepoURL,
		BaseDir:     cfg.Worker.Dir,
		ProjectName: cfg.Worker.ProjectName,
	}.Sync(ctx)
}

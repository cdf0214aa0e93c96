// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command orkestra runs the game session orchestrator.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/orkestra/internal/config"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/ManuGH/orkestra/internal/version"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// A missing .env is the normal case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "orkestra: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "orkestra",
		Usage:   "run one game server process per session and hand out join codes",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				Sources: cli.EnvVars("ORKESTRA_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level (trace, debug, info, warn, error)",
			},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP API (default)",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "serve the session tools over MCP stdio",
				Action: runMCPStdio,
			},
			{
				Name:   "sync-worker",
				Usage:  "clone the game server repository and fetch LFS files",
				Action: runSyncWorker,
			},
			healthcheckCommand(),
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(_ context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintln(cmd.Root().Writer, version.String())
					return err
				},
			},
		},
	}
}

// loadConfig reads the file named by --config, applies the environment and
// the --log-level override.
func loadConfig(cmd *cli.Command) (config.AppConfig, *config.Loader, error) {
	loader := config.NewLoader(cmd.String("config"))
	cfg, err := loader.Load()
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
		if err := config.Validate(cfg); err != nil {
			return config.AppConfig{}, nil, err
		}
	}
	return cfg, loader, nil
}

func configureLogging(cfg config.AppConfig, out io.Writer) {
	xglog.Reconfigure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  out,
		Service: "orkestra",
		Version: version.Version,
	})
}

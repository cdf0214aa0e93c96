// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
)

func healthcheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "healthcheck",
		Usage: "probe a running instance (for container health checks)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Usage:   "base URL of the orkestra API",
				Sources: cli.EnvVars("ORKESTRA_HEALTHCHECK_URL"),
			},
			&cli.StringFlag{
				Name:  "mode",
				Value: "ready",
				Usage: "ready or live",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 5 * time.Second,
				Usage: "check timeout",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := probe(ctx, cmd.String("url"), cmd.String("mode"), cmd.Duration("timeout")); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.Root().Writer, "healthcheck successful (%s)\n", cmd.String("mode"))
			return err
		},
	}
}

func probe(ctx context.Context, baseURL, mode string, timeout time.Duration) error {
	path := "/healthz"
	switch mode {
	case "ready":
		path = "/readyz"
	case "live":
	default:
		return fmt.Errorf("unknown healthcheck mode %q", mode)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck failed (network): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck failed (status): %s", resp.Status)
	}
	return nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"

	"github.com/ManuGH/orkestra/internal/config"
	"github.com/ManuGH/orkestra/internal/log"
)

// PerformStartupChecks validates the host before serving. Every failing
// step is reported.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"worker_dir", func() error { return checkDir(cfg.Worker.Dir) }},
		{"git", func() error {
			if !cfg.Worker.SyncOnStart {
				return nil
			}
			_, err := exec.LookPath(cfg.Worker.GitBin)
			return err
		}},
		{"bind_host", func() error { return checkBindHost(ctx, cfg.PortBindHost) }},
	}

	var errs []error
	for _, s := range steps {
		if err := s.run(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	logger := log.WithComponent("startup-check")
	logger.Info().
		Str(log.FieldEvent, "startup.checks_passed").
		Msg("startup checks passed")
	return nil
}

func checkDir(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// checkBindHost makes sure worker ports can be probed on host.
func checkBindHost(ctx context.Context, host string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return fmt.Errorf("port bind host %q unusable: %w", host, err)
	}
	return ln.Close()
}

// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

func unhealthy(err, msg string) CheckResult {
	return CheckResult{Status: StatusUnhealthy, Error: err, Message: msg}
}

// ExecutableChecker verifies the worker command can be started. A bare
// command name is resolved through PATH.
type ExecutableChecker struct {
	name   string
	path   string
	lookup func(string) (string, error)
}

func NewExecutableChecker(name, path string) *ExecutableChecker {
	return &ExecutableChecker{name: name, path: path, lookup: exec.LookPath}
}

func (c *ExecutableChecker) Name() string { return c.name }

func (c *ExecutableChecker) Check(context.Context) CheckResult {
	if c.path == "" {
		return unhealthy("no worker command configured", "")
	}
	if filepath.Base(c.path) == c.path {
		resolved, err := c.lookup(c.path)
		if err != nil {
			return unhealthy(err.Error(), c.path)
		}
		return CheckResult{Status: StatusHealthy, Message: resolved}
	}

	info, err := os.Stat(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return unhealthy("file not found", c.path)
	}
	if err != nil {
		return unhealthy(err.Error(), c.path)
	}
	if info.IsDir() {
		return unhealthy("expected file, got directory", c.path)
	}
	// Scripts run through an interpreter may lack the exec bit.
	if info.Mode().Perm()&0o111 == 0 && filepath.Ext(c.path) != ".sh" {
		return CheckResult{Status: StatusDegraded, Message: "file is not executable"}
	}
	return CheckResult{Status: StatusHealthy, Message: c.path}
}

// PingChecker wraps a dependency ping. Optional dependencies report
// degraded instead of unhealthy.
type PingChecker struct {
	name     string
	ping     func(context.Context) error
	optional bool
}

func NewPingChecker(name string, optional bool, ping func(context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, optional: optional}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	err := c.ping(ctx)
	switch {
	case err == nil:
		return CheckResult{Status: StatusHealthy}
	case c.optional:
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	default:
		return unhealthy(err.Error(), "")
	}
}

// CountChecker reports a gauge-like value in the verbose report. It never
// degrades readiness.
type CountChecker struct {
	name  string
	count func() int
}

func NewCountChecker(name string, count func() int) *CountChecker {
	return &CountChecker{name: name, count: count}
}

func (c *CountChecker) Name() string { return c.name }

func (c *CountChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: StatusHealthy, Message: strconv.Itoa(c.count())}
}

// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ManuGH/orkestra/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker struct {
	name string
	res  CheckResult
}

func (c staticChecker) Name() string { return c.name }
func (c staticChecker) Check(context.Context) CheckResult { return c.res }

func TestManager_ReadyAggregates(t *testing.T) {
	m := NewManager("v1")
	assert.True(t, *m.Ready(context.Background()).Ready, "no checkers means ready")

	m.RegisterChecker(staticChecker{"a", CheckResult{Status: StatusHealthy}})
	m.RegisterChecker(staticChecker{"b", CheckResult{Status: StatusDegraded}})
	resp := m.Ready(context.Background())
	assert.True(t, *resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)

	m.RegisterChecker(staticChecker{"c", CheckResult{Status: StatusUnhealthy}})
	resp = m.Ready(context.Background())
	assert.False(t, *resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Len(t, resp.Checks, 3)
}

func TestServeHealthAndReady(t *testing.T) {
	m := NewManager("v1.2.3")
	m.RegisterChecker(staticChecker{"worker_binary", CheckResult{Status: StatusUnhealthy, Error: "file not found"}})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var h Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&h))
	assert.Equal(t, "v1.2.3", h.Version)
	assert.Empty(t, h.Checks)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&h))
	assert.Equal(t, StatusUnhealthy, h.Status)

	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var ready Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ready))
	require.NotNil(t, ready.Ready)
	assert.False(t, *ready.Ready)
}

func TestExecutableChecker(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "server")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	plain := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))

	ctx := context.Background()
	assert.Equal(t, StatusHealthy, NewExecutableChecker("w", exe).Check(ctx).Status)
	assert.Equal(t, StatusDegraded, NewExecutableChecker("w", plain).Check(ctx).Status)
	assert.Equal(t, StatusUnhealthy, NewExecutableChecker("w", filepath.Join(dir, "missing")).Check(ctx).Status)
	assert.Equal(t, StatusUnhealthy, NewExecutableChecker("w", dir).Check(ctx).Status)
	assert.Equal(t, StatusUnhealthy, NewExecutableChecker("w", "").Check(ctx).Status)

	c := NewExecutableChecker("w", "bash")
	c.lookup = func(string) (string, error) { return "/usr/bin/bash", nil }
	res := c.Check(ctx)
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, "/usr/bin/bash", res.Message)
}

func TestPingChecker(t *testing.T) {
	boom := func(context.Context) error { return errors.New("connection refused") }
	assert.Equal(t, StatusDegraded, NewPingChecker("redis", true, boom).Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, NewPingChecker("audit", false, boom).Check(context.Background()).Status)
	ok := func(context.Context) error { return nil }
	assert.Equal(t, StatusHealthy, NewPingChecker("redis", true, ok).Check(context.Background()).Status)
}

func TestCountChecker(t *testing.T) {
	n := 3
	c := NewCountChecker("ports_pending", func() int { return n })
	res := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, "3", res.Message)

	m := NewManager("v1")
	m.RegisterChecker(c)
	rep := m.Health(context.Background(), true)
	assert.Equal(t, "3", rep.Checks["ports_pending"].Message)
}

func TestPerformStartupChecks(t *testing.T) {
	cfg := config.Defaults()
	cfg.PortBindHost = "127.0.0.1"
	cfg.Worker.Dir = t.TempDir()
	require.NoError(t, PerformStartupChecks(context.Background(), cfg))

	cfg.Worker.Dir = filepath.Join(cfg.Worker.Dir, "missing")
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))

	cfg.Worker.Dir = ""
	cfg.Worker.SyncOnStart = true
	cfg.Worker.GitBin = "definitely-not-a-git-binary"
	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git:")
}

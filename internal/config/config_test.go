// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/orkestra/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsNeedWorkerCommand(t *testing.T) {
	_, err := NewLoaderWithEnv("", nil).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker.bin")
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  listenAddr: "127.0.0.1:9000"
  shutdownTimeout: 3s
publicHost: games.example.net
worker:
  bin: /opt/game/server
  args: ["-batchmode", "-nographics"]
  shutdownGrace: 2s
redis:
  addr: "localhost:6379"
logLevel: debug
`)
	cfg, err := NewLoaderWithEnv(path, nil).Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.API.ListenAddr)
	assert.Equal(t, 3*time.Second, cfg.API.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.API.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, "games.example.net", cfg.PublicHost)
	assert.Equal(t, []string{"-batchmode", "-nographics"}, cfg.Worker.Args)
	assert.Equal(t, 2*time.Second, cfg.Worker.ShutdownGrace)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "orkestra:sessions", cfg.Redis.Channel)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "worker:\n  bin: /bin/true\n  binary: oops\n")
	_, err := NewLoaderWithEnv(path, nil).Load()
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_MultipleDocumentsRejected(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n---\nlogLevel: debug\n")
	_, err := NewLoaderWithEnv(path, nil).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := NewLoaderWithEnv(path, map[string]string{"ORKESTRA_WORKER_BIN": "/bin/true"}).Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "worker:\n  bin: /opt/game/server\nlogLevel: warn\n")
	cfg, err := NewLoaderWithEnv(path, map[string]string{
		"ORKESTRA_WORKER_BIN":              "/usr/local/bin/game",
		"ORKESTRA_WORKER_ARGS":             "-a -b",
		"ORKESTRA_LOG_LEVEL":               "debug",
		"ORKESTRA_RATELIMIT_ENABLED":       "false",
		"ORKESTRA_WORKER_SHUTDOWN_GRACE":   "750ms",
		"ORKESTRA_TELEMETRY_ENABLED":       "true",
		"ORKESTRA_TELEMETRY_EXPORTER":      "grpc",
		"ORKESTRA_TELEMETRY_SAMPLING_RATE": "0.25",
	}).Load()
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/game", cfg.Worker.Bin)
	assert.Equal(t, []string{"-a", "-b"}, cfg.Worker.Args)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.API.RateLimit.Enabled)
	assert.Equal(t, 750*time.Millisecond, cfg.Worker.ShutdownGrace)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "grpc", cfg.Telemetry.Exporter)
	assert.InDelta(t, 0.25, cfg.Telemetry.SamplingRate, 1e-9)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	cfg, err := NewLoaderWithEnv("", map[string]string{
		"HOST":         "192.168.1.20",
		"PORT":         "7000",
		"PROJECT_NAME": "arena",
		"REPO_PATH":    "https://example.com/arena.git",
	}).Load()
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.20:7000", cfg.API.ListenAddr)
	assert.Equal(t, "192.168.1.20", cfg.PublicHost)
	assert.Equal(t, "arena", cfg.Worker.ProjectName)
	assert.Equal(t, "https://example.com/arena.git", cfg.Worker.RepoURL)

	bin, args, err := cfg.Worker.Command()
	require.NoError(t, err)
	assert.Equal(t, "bash", bin)
	assert.Equal(t, []string{"./arena/arena.sh"}, args)
}

func TestLoad_BadEnvValue(t *testing.T) {
	_, err := NewLoaderWithEnv("", map[string]string{"PORT": "eighty"}).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestValidate_ReportsAllFailures(t *testing.T) {
	cfg := Defaults()
	cfg.Worker.Bin = "/bin/true"
	cfg.API.ListenAddr = "nope"
	cfg.PortMaxAttempts = 0
	cfg.LogLevel = "loud"
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "zipkin"

	err := Validate(cfg)
	var ve validate.ValidationError
	require.ErrorAs(t, err, &ve)
	fields := make([]string, 0, len(ve.Errors()))
	for _, e := range ve.Errors() {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"api.listenAddr", "portMaxAttempts", "logLevel", "telemetry.exporter"}, fields)
}

func TestValidate_SyncNeedsRepo(t *testing.T) {
	cfg := Defaults()
	cfg.Worker.ProjectName = "arena"
	cfg.Worker.SyncOnStart = true
	assert.Error(t, Validate(cfg))

	cfg.Worker.RepoURL = "https://example.com/arena.git"
	assert.NoError(t, Validate(cfg))
}

func TestWorkerConfig_ProbePath(t *testing.T) {
	assert.Equal(t, "/opt/server", WorkerConfig{Bin: "/opt/server", Dir: "/srv"}.ProbePath())
	assert.Equal(t, filepath.Join("/srv", "run.sh"), WorkerConfig{Bin: "run.sh", Dir: "/srv"}.ProbePath())
	assert.Equal(t, filepath.Join("/srv", "arena", "arena.sh"), WorkerConfig{ProjectName: "arena", Dir: "/srv"}.ProbePath())
	assert.Empty(t, WorkerConfig{}.ProbePath())
}

func TestAPIConfig_Server(t *testing.T) {
	cfg := Defaults()
	sc := cfg.API.Server()
	assert.Equal(t, cfg.API.ListenAddr, sc.ListenAddr)
	assert.Equal(t, cfg.API.ShutdownTimeout, sc.ShutdownTimeout)
}

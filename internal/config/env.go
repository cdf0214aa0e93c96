// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// envOverlay lists every environment override. Pointer fields stay nil when
// the variable is unset so an explicit zero still wins over the file.
type envOverlay struct {
	// Legacy deployment variables.
	Host        string `env:"HOST"`
	Port        *int   `env:"PORT"`
	ProjectName string `env:"PROJECT_NAME"`
	RepoPath    string `env:"REPO_PATH"`

	ListenAddr      string         `env:"ORKESTRA_LISTEN_ADDR"`
	ShutdownTimeout *time.Duration `env:"ORKESTRA_SHUTDOWN_TIMEOUT"`
	RateLimit       *bool          `env:"ORKESTRA_RATELIMIT_ENABLED"`
	RateLimitRPM    *int           `env:"ORKESTRA_RATELIMIT_RPM"`
	PublicHost      string         `env:"ORKESTRA_PUBLIC_HOST"`
	PortBindHost    string         `env:"ORKESTRA_PORT_BIND_HOST"`
	PortMaxAttempts *int           `env:"ORKESTRA_PORT_MAX_ATTEMPTS"`

	WorkerBin           string         `env:"ORKESTRA_WORKER_BIN"`
	WorkerArgs          []string       `env:"ORKESTRA_WORKER_ARGS" envSeparator:" "`
	WorkerDir           string         `env:"ORKESTRA_WORKER_DIR"`
	WorkerSyncOnStart   *bool          `env:"ORKESTRA_WORKER_SYNC_ON_START"`
	WorkerLaunchRate    *float64       `env:"ORKESTRA_WORKER_LAUNCH_RATE"`
	WorkerShutdownGrace *time.Duration `env:"ORKESTRA_WORKER_SHUTDOWN_GRACE"`

	MetricsAddr string `env:"ORKESTRA_METRICS_ADDR"`

	RedisAddr     string `env:"ORKESTRA_REDIS_ADDR"`
	RedisPassword string `env:"ORKESTRA_REDIS_PASSWORD"`
	RedisDB       *int   `env:"ORKESTRA_REDIS_DB"`
	RedisChannel  string `env:"ORKESTRA_REDIS_CHANNEL"`

	AuditPath string `env:"ORKESTRA_AUDIT_PATH"`

	TelemetryEnabled  *bool    `env:"ORKESTRA_TELEMETRY_ENABLED"`
	TelemetryExporter string   `env:"ORKESTRA_TELEMETRY_EXPORTER"`
	TelemetryEndpoint string   `env:"ORKESTRA_TELEMETRY_ENDPOINT"`
	TelemetrySampling *float64 `env:"ORKESTRA_TELEMETRY_SAMPLING_RATE"`

	LogLevel string `env:"ORKESTRA_LOG_LEVEL"`
}

// applyEnv overlays environ onto cfg.
func applyEnv(cfg *AppConfig, environ map[string]string) error {
	var ov envOverlay
	if err := env.ParseWithOptions(&ov, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	// HOST/PORT describe both the listener and the advertised host.
	if ov.Host != "" || ov.Port != nil {
		host, port, err := net.SplitHostPort(cfg.API.ListenAddr)
		if err != nil {
			host, port = "", "8080"
		}
		if ov.Host != "" {
			host = ov.Host
			cfg.PublicHost = ov.Host
		}
		if ov.Port != nil {
			port = strconv.Itoa(*ov.Port)
		}
		cfg.API.ListenAddr = net.JoinHostPort(host, port)
	}
	if ov.ProjectName != "" {
		cfg.Worker.ProjectName = ov.ProjectName
	}
	if ov.RepoPath != "" {
		cfg.Worker.RepoURL = ov.RepoPath
	}

	setString(&cfg.API.ListenAddr, ov.ListenAddr)
	setPtr(&cfg.API.ShutdownTimeout, ov.ShutdownTimeout)
	setPtr(&cfg.API.RateLimit.Enabled, ov.RateLimit)
	setPtr(&cfg.API.RateLimit.RequestsPerMinute, ov.RateLimitRPM)
	setString(&cfg.PublicHost, ov.PublicHost)
	setString(&cfg.PortBindHost, ov.PortBindHost)
	setPtr(&cfg.PortMaxAttempts, ov.PortMaxAttempts)

	setString(&cfg.Worker.Bin, ov.WorkerBin)
	if len(ov.WorkerArgs) > 0 {
		cfg.Worker.Args = ov.WorkerArgs
	}
	setString(&cfg.Worker.Dir, ov.WorkerDir)
	setPtr(&cfg.Worker.SyncOnStart, ov.WorkerSyncOnStart)
	setPtr(&cfg.Worker.LaunchRate, ov.WorkerLaunchRate)
	setPtr(&cfg.Worker.ShutdownGrace, ov.WorkerShutdownGrace)

	setString(&cfg.Metrics.ListenAddr, ov.MetricsAddr)

	setString(&cfg.Redis.Addr, ov.RedisAddr)
	setString(&cfg.Redis.Password, ov.RedisPassword)
	setPtr(&cfg.Redis.DB, ov.RedisDB)
	setString(&cfg.Redis.Channel, ov.RedisChannel)

	setString(&cfg.Audit.Path, ov.AuditPath)

	setPtr(&cfg.Telemetry.Enabled, ov.TelemetryEnabled)
	setString(&cfg.Telemetry.Exporter, ov.TelemetryExporter)
	setString(&cfg.Telemetry.Endpoint, ov.TelemetryEndpoint)
	setPtr(&cfg.Telemetry.SamplingRate, ov.TelemetrySampling)

	setString(&cfg.LogLevel, ov.LogLevel)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

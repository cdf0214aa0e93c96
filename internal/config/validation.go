// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/orkestra/internal/validate"
)

// Validate checks an AppConfig. All failures are reported together.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.PositiveDuration("api.shutdownTimeout", cfg.API.ShutdownTimeout)
	if cfg.API.RateLimit.Enabled {
		v.Positive("api.rateLimit.requestsPerMinute", cfg.API.RateLimit.RequestsPerMinute)
	}
	v.NotEmpty("publicHost", cfg.PublicHost)
	v.Positive("portMaxAttempts", cfg.PortMaxAttempts)

	if _, _, err := cfg.Worker.Command(); err != nil {
		v.AddError("worker.bin", err.Error(), cfg.Worker.Bin)
	}
	if cfg.Worker.SyncOnStart {
		v.NotEmpty("worker.repoURL", cfg.Worker.RepoURL)
		v.NotEmpty("worker.projectName", cfg.Worker.ProjectName)
	}
	v.NonNegative("worker.launchBurst", cfg.Worker.LaunchBurst)
	v.NonNegative("worker.stderrLines", cfg.Worker.StderrLines)
	v.PositiveDuration("worker.shutdownGrace", cfg.Worker.ShutdownGrace)

	if cfg.Metrics.ListenAddr != "" {
		v.ListenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr)
	}
	if cfg.Redis.Enabled() {
		v.NotEmpty("redis.channel", cfg.Redis.Channel)
		validate.InRange(v, "redis.db", cfg.Redis.DB, 0, 15)
	}
	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		validate.InRange(v, "telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}
	v.LogLevel("logLevel", cfg.LogLevel)
	return v.Err()
}

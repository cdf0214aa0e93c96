// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads orkestra configuration.
//
// Precedence: environment > YAML file > defaults.
package config

import (
	"errors"
	"path/filepath"
	"time"
)

// ErrNoWorkerCommand means neither worker.bin nor worker.projectName is set.
var ErrNoWorkerCommand = errors.New("no worker command configured (set worker.bin or worker.projectName)")

// AppConfig is the effective runtime configuration.
type AppConfig struct {
	API             APIConfig       `yaml:"api"`
	PublicHost      string          `yaml:"publicHost"`
	PortBindHost    string          `yaml:"portBindHost"`
	PortMaxAttempts int             `yaml:"portMaxAttempts"`
	Worker          WorkerConfig    `yaml:"worker"`
	Metrics         MetricsConfig   `yaml:"metrics"`
	Redis           RedisConfig     `yaml:"redis"`
	Audit           AuditConfig     `yaml:"audit"`
	Telemetry       TelemetryConfig `yaml:"telemetry"`
	LogLevel        string          `yaml:"logLevel"`
}

type APIConfig struct {
	ListenAddr      string          `yaml:"listenAddr"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	IdleTimeout     time.Duration   `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
}

// ServerConfig is the subset of APIConfig the daemon needs to run a listener.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (a APIConfig) Server() ServerConfig {
	return ServerConfig{
		ListenAddr:      a.ListenAddr,
		ReadTimeout:     a.ReadTimeout,
		WriteTimeout:    a.WriteTimeout,
		IdleTimeout:     a.IdleTimeout,
		ShutdownTimeout: a.ShutdownTimeout,
	}
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
}

// WorkerConfig describes the game server executable and how it is fetched.
type WorkerConfig struct {
	Bin            string        `yaml:"bin"`
	Args           []string      `yaml:"args"`
	Dir            string        `yaml:"dir"`
	ProjectName    string        `yaml:"projectName"`
	RepoURL        string        `yaml:"repoURL"`
	SyncOnStart    bool          `yaml:"syncOnStart"`
	GitBin         string        `yaml:"gitBin"`
	LaunchRate     float64       `yaml:"launchRate"`
	LaunchBurst    int           `yaml:"launchBurst"`
	StderrLines    int           `yaml:"stderrLines"`
	KillOnShutdown bool          `yaml:"killOnShutdown"`
	ShutdownGrace  time.Duration `yaml:"shutdownGrace"`
}

// Command returns the executable and its base arguments. Without an explicit
// bin the project's launcher script is run through bash.
func (w WorkerConfig) Command() (string, []string, error) {
	if w.Bin != "" {
		return w.Bin, append([]string(nil), w.Args...), nil
	}
	if w.ProjectName == "" {
		return "", nil, ErrNoWorkerCommand
	}
	script := "./" + filepath.ToSlash(filepath.Join(w.ProjectName, w.ProjectName+".sh"))
	return "bash", append([]string{script}, w.Args...), nil
}

// ProbePath is the file whose presence the health check verifies.
func (w WorkerConfig) ProbePath() string {
	if w.Bin != "" {
		if filepath.IsAbs(w.Bin) || w.Dir == "" {
			return w.Bin
		}
		return filepath.Join(w.Dir, w.Bin)
	}
	if w.ProjectName == "" {
		return ""
	}
	return filepath.Join(w.Dir, w.ProjectName, w.ProjectName+".sh")
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// RedisConfig enables the Redis event sink when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// AuditConfig enables the SQLite audit log when Path is set.
type AuditConfig struct {
	Path string `yaml:"path"`
}

func (a AuditConfig) Enabled() bool { return a.Path != "" }

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		API: APIConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       RateLimitConfig{Enabled: true, RequestsPerMinute: 600},
		},
		PublicHost:      "127.0.0.1",
		PortBindHost:    "0.0.0.0",
		PortMaxAttempts: 64,
		Worker: WorkerConfig{
			GitBin:         "git",
			LaunchRate:     20,
			LaunchBurst:    10,
			StderrLines:    64,
			KillOnShutdown: true,
			ShutdownGrace:  5 * time.Second,
		},
		Metrics:   MetricsConfig{ListenAddr: ":9090"},
		Redis:     RedisConfig{Channel: "orkestra:sessions"},
		Telemetry: TelemetryConfig{Exporter: "http", Endpoint: "localhost:4318", SamplingRate: 1.0, Environment: "production"},
		LogLevel:  "info",
	}
}

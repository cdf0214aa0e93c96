// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultService = "orkestra"

// Config describes the process-wide logger. Empty fields fall back to
// LOG_LEVEL, LOG_SERVICE and VERSION from the environment.
type Config struct {
	Level   string
	Output  io.Writer // defaults to stdout
	Service string
	Version string
}

var (
	once sync.Once
	mu   sync.RWMutex
	root zerolog.Logger
)

// Configure installs cfg unless a logger is already installed.
func Configure(cfg Config) {
	once.Do(func() { install(cfg) })
}

// Reconfigure replaces the installed logger. The CLI calls it after flags
// and the config file have been read.
func Reconfigure(cfg Config) {
	once.Do(func() {})
	install(cfg)
}

func orEnv(v, key, fallback string) string {
	if v != "" {
		return v
	}
	if e := os.Getenv(key); e != "" {
		return e
	}
	return fallback
}

func install(cfg Config) {
	level, err := zerolog.ParseLevel(orEnv(cfg.Level, "LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	l := zerolog.New(out).With().
		Timestamp().
		Str("service", orEnv(cfg.Service, "LOG_SERVICE", defaultService)).
		Str("version", orEnv(cfg.Version, "VERSION", "")).
		Logger()

	mu.Lock()
	root = l
	mu.Unlock()
}

// SetLevel changes the global level at runtime. Unknown levels are rejected.
func SetLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

func current() zerolog.Logger {
	Configure(Config{})
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// L returns a copy of the process logger.
func L() *zerolog.Logger {
	l := current()
	return &l
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return current().With().Str(FieldComponent, component).Logger()
}

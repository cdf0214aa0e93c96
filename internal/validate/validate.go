// SPDX-License-Identifier: MIT

// Package validate accumulates configuration validation failures so a bad
// config file is reported in one pass.
package validate

import (
	"cmp"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Error is a single field failure.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError is what Validator.Err returns when any check failed.
type ValidationError struct {
	errors []Error
}

func (e ValidationError) Errors() []Error { return e.errors }

func (e ValidationError) Error() string {
	var b strings.Builder
	for i, fe := range e.errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(fe.Error())
	}
	return b.String()
}

type Validator struct {
	failed []Error
}

func New() *Validator { return &Validator{} }

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.failed = append(v.failed, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) check(ok bool, field string, value any, format string, args ...any) {
	if !ok {
		v.AddError(field, fmt.Sprintf(format, args...), value)
	}
}

func (v *Validator) IsValid() bool { return len(v.failed) == 0 }

// Err returns nil when no check failed.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.failed)}
}

// ListenAddr accepts "host:port" or ":port" with a numeric port. Port 0 is
// allowed for ephemeral listeners.
func (v *Validator) ListenAddr(field, addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid listen address: %v", err), addr)
		return
	}
	n, err := strconv.Atoi(port)
	v.check(err == nil && n >= 0 && n <= 65535, field, addr, "invalid port %q", port)
}

func (v *Validator) NotEmpty(field, value string) {
	v.check(strings.TrimSpace(value) != "", field, value, "value cannot be empty")
}

func (v *Validator) OneOf(field, value string, allowed []string) {
	v.check(slices.Contains(allowed, value), field, value, "value must be one of %v, got %q", allowed, value)
}

func (v *Validator) Positive(field string, value int) {
	v.check(value > 0, field, value, "value must be positive, got %d", value)
}

func (v *Validator) NonNegative(field string, value int) {
	v.check(value >= 0, field, value, "value cannot be negative, got %d", value)
}

func (v *Validator) PositiveDuration(field string, d time.Duration) {
	v.check(d > 0, field, d, "duration must be positive, got %s", d)
}

// InRange checks lo <= value <= hi.
func InRange[T cmp.Ordered](v *Validator, field string, value, lo, hi T) {
	v.check(value >= lo && value <= hi, field, value, "value must be between %v and %v, got %v", lo, hi, value)
}

// ErrInvalidLogLevel is returned by ParseLogLevel.
var ErrInvalidLogLevel = errors.New("invalid log level (must be: trace, debug, info, warn, error)")

// LogLevel is a level name accepted in config files.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevels = []LogLevel{LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

// ParseLogLevel is case-insensitive.
func ParseLogLevel(s string) (LogLevel, error) {
	lvl := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(logLevels, lvl) {
		return "", ErrInvalidLogLevel
	}
	return lvl, nil
}

// LogLevel records a failure unless s parses.
func (v *Validator) LogLevel(field, s string) {
	if _, err := ParseLogLevel(s); err != nil {
		v.AddError(field, err.Error(), s)
	}
}

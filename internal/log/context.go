// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sessionIDKey
)

// correlation lists the context values copied onto request-scoped loggers.
var correlation = []struct {
	key   ctxKey
	field string
}{
	{requestIDKey, FieldRequestID},
	{sessionIDKey, FieldSessionID},
}

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func value(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithSessionID tags ctx with the game session being operated on.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return withValue(ctx, sessionIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string { return value(ctx, requestIDKey) }

func SessionIDFromContext(ctx context.Context) string { return value(ctx, sessionIDKey) }

// WithContext copies the request and session ids in ctx onto logger.
// The logger is returned unchanged when ctx carries neither.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	var fields map[string]any
	for _, c := range correlation {
		if v := value(ctx, c.key); v != "" {
			if fields == nil {
				fields = make(map[string]any, len(correlation))
			}
			fields[c.field] = v
		}
	}
	if fields == nil {
		return logger
	}
	return logger.With().Fields(fields).Logger()
}

// WithComponentFromContext is WithComponent plus the correlation ids of ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}

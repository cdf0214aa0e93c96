// SPDX-License-Identifier: MIT

// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"net/http"

	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/go-chi/chi/v5"
)

// StackConfig selects the optional layers of the ingress stack.
type StackConfig struct {
	EnableMetrics  bool
	EnableLogging  bool
	TracingService string // empty disables tracing
	RateLimitRPM   int    // per client IP; 0 disables
}

// Layers returns the middleware chain, outermost first. Recovery and request
// ids are unconditional; logging sits inside tracing so the logged latency
// covers the handler only.
func (c StackConfig) Layers() []func(http.Handler) http.Handler {
	layers := []func(http.Handler) http.Handler{Recoverer, RequestID}
	if c.EnableMetrics {
		layers = append(layers, Metrics())
	}
	if c.TracingService != "" {
		layers = append(layers, Tracing(c.TracingService))
	}
	if c.EnableLogging {
		layers = append(layers, xglog.Middleware())
	}
	if c.RateLimitRPM > 0 {
		layers = append(layers, RateLimit(c.RateLimitRPM))
	}
	return layers
}

// NewRouter returns a chi router with cfg's layers installed.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cfg.Layers()...)
	return r
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the session HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ManuGH/orkestra/internal/api/middleware"
	"github.com/ManuGH/orkestra/internal/audit"
	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	"github.com/go-chi/chi/v5"
)

var ErrMissingSessions = errors.New("api: session service is required")

// HistoryReader returns recent audit entries, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]audit.Entry, error)
}

// Prober serves liveness and readiness.
type Prober interface {
	ServeHealth(w http.ResponseWriter, r *http.Request)
	ServeReady(w http.ResponseWriter, r *http.Request)
}

// Deps wires the router. Only Sessions is required.
type Deps struct {
	Sessions ports.SessionService
	History  HistoryReader
	Events   http.Handler
	MCP      http.Handler
	Health   Prober
	Stack    middleware.StackConfig
}

type Server struct {
	sessions ports.SessionService
	history  HistoryReader
	router   chi.Router
}

func New(deps Deps) (*Server, error) {
	if deps.Sessions == nil {
		return nil, ErrMissingSessions
	}
	s := &Server{sessions: deps.Sessions, history: deps.History}
	s.router = s.routes(deps)
	return s, nil
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes(deps Deps) chi.Router {
	r := middleware.NewRouter(deps.Stack)

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.ServeHealth)
		r.Get("/readyz", deps.Health.ServeReady)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/create_session", s.handleCreateSession)
		r.Post("/join_session", s.handleJoinSession)
		r.Post("/remove_player_from_session", s.handleRemovePlayer)
		r.Get("/filter_sessions", s.handleFilterSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/history", s.handleHistory)
		if deps.Events != nil {
			r.Handle("/events", deps.Events)
		}
	})

	if deps.MCP != nil {
		r.Handle("/mcp", deps.MCP)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

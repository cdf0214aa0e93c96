// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ports

import (
	"context"
	"time"
)

// EventType names a session lifecycle event.
type EventType string

const (
	EventSessionCreated    EventType = "session.created"
	EventSessionUpdated    EventType = "session.updated"
	EventSessionTerminated EventType = "session.terminated"
)

// Event is a transport-neutral description of a session change.
type Event struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"session_id"`
	Title      string    `json:"title,omitempty"`
	Code       string    `json:"code,omitempty"`
	Endpoint   string    `json:"endpoint,omitempty"`
	Players    []string  `json:"players,omitempty"`
	MaxPlayers int       `json:"max_players,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	Stderr     []string  `json:"stderr_tail,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher delivers session events. Implementations must not block the
// caller for longer than ctx allows.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

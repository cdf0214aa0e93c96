// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
	ErrSpawnFailed     = errors.New("start server error")
	ErrInvalidConfig   = errors.New("invalid session config")
	ErrSessionExists   = errors.New("session already exists")
)

// NotFoundError carries the id of the missing session.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrSessionNotFound }

// NotFound is a convenience constructor.
func NotFound(id string) error { return &NotFoundError{ID: id} }

// SpawnError reports that no worker could be started for a session.
// It matches ErrSpawnFailed as well as the underlying cause.
type SpawnError struct {
	SessionID string
	Err       error
}

func (e *SpawnError) Error() string { return e.Err.Error() }

func (e *SpawnError) Unwrap() []error { return []error{ErrSpawnFailed, e.Err} }

// ClientMessage renders a domain error the way clients see it. ok is false
// for errors that are not part of the session contract.
func ClientMessage(err error) (msg string, ok bool) {
	var (
		nf *NotFoundError
		se *SpawnError
	)
	switch {
	case errors.As(err, &nf):
		return "Session not found: " + nf.ID, true
	case errors.Is(err, ErrSessionFull):
		return "Session is full", true
	case errors.As(err, &se):
		return "Start server error: " + se.Err.Error(), true
	case errors.Is(err, ErrSpawnFailed):
		return "Start server error: " + err.Error(), true
	case errors.Is(err, ErrInvalidConfig):
		return err.Error(), true
	}
	return "", false
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model holds the game session value types shared by the store,
// the service and the transports.
package model

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"time"
)

// Config is the client-supplied part of a create request.
type Config struct {
	Title      string
	GameMap    string
	MaxPlayers int
}

// Validate rejects configurations no worker could honour.
func (c Config) Validate() error {
	if c.MaxPlayers <= 0 {
		return fmt.Errorf("%w: max_players must be positive, got %d", ErrInvalidConfig, c.MaxPlayers)
	}
	return nil
}

// Session is an active game session. Values are immutable: WithPlayer and
// WithoutPlayer return modified copies and never touch the receiver.
type Session struct {
	ID         string
	Host       string
	Port       uint16
	Title      string
	GameMap    string
	Code       string
	MaxPlayers int
	CreatedAt  time.Time

	players map[string]struct{}
}

// New builds a session whose player set holds only the creator.
func New(id, host string, port uint16, code, creatorID string, cfg Config, now time.Time) Session {
	return Session{
		ID:         id,
		Host:       host,
		Port:       port,
		Title:      cfg.Title,
		GameMap:    cfg.GameMap,
		Code:       code,
		MaxPlayers: cfg.MaxPlayers,
		CreatedAt:  now,
		players:    map[string]struct{}{creatorID: {}},
	}
}

// Endpoint returns the host:port clients connect to.
func (s Session) Endpoint() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// Players returns the player IDs in sorted order.
func (s Session) Players() []string {
	out := make([]string, 0, len(s.players))
	for id := range s.players {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (s Session) PlayerCount() int { return len(s.players) }

func (s Session) HasPlayer(id string) bool {
	_, ok := s.players[id]
	return ok
}

// Full reports whether no further player can be admitted.
func (s Session) Full() bool { return len(s.players) >= s.MaxPlayers }

// WithPlayer returns a copy with id added. Adding a present id is a no-op.
func (s Session) WithPlayer(id string) Session {
	if s.HasPlayer(id) {
		return s
	}
	next := s
	next.players = make(map[string]struct{}, len(s.players)+1)
	for p := range s.players {
		next.players[p] = struct{}{}
	}
	next.players[id] = struct{}{}
	return next
}

// WithoutPlayer returns a copy with id removed. Removing an absent id is a no-op.
func (s Session) WithoutPlayer(id string) Session {
	if !s.HasPlayer(id) {
		return s
	}
	next := s
	next.players = make(map[string]struct{}, len(s.players))
	for p := range s.players {
		if p != id {
			next.players[p] = struct{}{}
		}
	}
	return next
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ports defines the contracts between the session service and
// its collaborators. Transports depend on SessionService only.
package ports

import (
	"context"

	"github.com/ManuGH/orkestra/internal/domain/session/model"
)

// SessionService is the operation surface exposed to transports.
type SessionService interface {
	CreateSession(ctx context.Context, creatorID string, cfg model.Config) (model.Session, error)
	GetByID(ctx context.Context, id string) (model.Session, error)
	ListAll(ctx context.Context) []model.Session
	FilterByCode(ctx context.Context, code string) []model.Session
	AddPlayer(ctx context.Context, sessionID, playerID string) (model.Session, error)
	RemovePlayer(ctx context.Context, sessionID, playerID string) (model.Session, error)
}

// SessionStore holds active sessions keyed by id.
// Update runs fn atomically with respect to other operations on the same id.
type SessionStore interface {
	Insert(s model.Session) error
	Get(id string) (model.Session, bool)
	Delete(id string) (model.Session, bool)
	List() []model.Session
	FindByCode(code string) []model.Session
	Update(id string, fn func(model.Session) (model.Session, error)) (model.Session, error)
	Len() int
}

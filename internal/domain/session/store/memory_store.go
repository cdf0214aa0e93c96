// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store keeps active game sessions in memory.
package store

import (
	"slices"
	"strings"

	"github.com/ManuGH/orkestra/internal/domain/session/model"
	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	"github.com/puzpuzpuz/xsync/v3"
)

var _ ports.SessionStore = (*MemoryStore)(nil)

// MemoryStore is a striped concurrent map of sessions. Operations on
// different ids never contend on a shared lock.
type MemoryStore struct {
	sessions *xsync.MapOf[string, model.Session]
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: xsync.NewMapOf[string, model.Session]()}
}

// Insert adds s. An existing record with the same id is left untouched.
func (m *MemoryStore) Insert(s model.Session) error {
	if _, loaded := m.sessions.LoadOrStore(s.ID, s); loaded {
		return model.ErrSessionExists
	}
	return nil
}

func (m *MemoryStore) Get(id string) (model.Session, bool) {
	return m.sessions.Load(id)
}

// Delete removes id and returns the removed record. Only one concurrent
// caller observes true for a given record.
func (m *MemoryStore) Delete(id string) (model.Session, bool) {
	return m.sessions.LoadAndDelete(id)
}

// List returns a snapshot ordered by creation time, then id.
func (m *MemoryStore) List() []model.Session {
	out := make([]model.Session, 0, m.sessions.Size())
	m.sessions.Range(func(_ string, s model.Session) bool {
		out = append(out, s)
		return true
	})
	sortSessions(out)
	return out
}

// FindByCode returns every session carrying code.
func (m *MemoryStore) FindByCode(code string) []model.Session {
	var out []model.Session
	m.sessions.Range(func(_ string, s model.Session) bool {
		if s.Code == code {
			out = append(out, s)
		}
		return true
	})
	sortSessions(out)
	return out
}

// Update replaces the record for id with fn's result. fn runs under the
// bucket lock for id and must not call back into the store. When fn
// returns an error the record is left unchanged and the error is returned.
func (m *MemoryStore) Update(id string, fn func(model.Session) (model.Session, error)) (model.Session, error) {
	var fnErr error
	found := true
	next, _ := m.sessions.Compute(id, func(old model.Session, loaded bool) (model.Session, bool) {
		if !loaded {
			found = false
			return old, true
		}
		updated, err := fn(old)
		if err != nil {
			fnErr = err
			return old, false
		}
		return updated, false
	})
	if !found {
		return model.Session{}, model.NotFound(id)
	}
	if fnErr != nil {
		return next, fnErr
	}
	return next, nil
}

func (m *MemoryStore) Len() int { return m.sessions.Size() }

func sortSessions(s []model.Session) {
	slices.SortFunc(s, func(a, b model.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

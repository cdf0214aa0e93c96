// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/orkestra/internal/domain/session/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func session(id, code string, max int, created time.Time) model.Session {
	return model.New(id, "127.0.0.1", 40000, code, "creator-"+id, model.Config{Title: "title-" + id, MaxPlayers: max}, created)
}

func TestMemoryStore_InsertGetDelete(t *testing.T) {
	s := NewMemoryStore()
	base := time.Unix(100, 0)

	require.NoError(t, s.Insert(session("a", "000000", 2, base)))
	assert.ErrorIs(t, s.Insert(session("a", "000009", 2, base)), model.ErrSessionExists)

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "000000", got.Code, "duplicate insert must not overwrite")
	assert.Equal(t, 1, s.Len())

	removed, ok := s.Delete("a")
	require.True(t, ok)
	assert.Equal(t, "a", removed.ID)

	_, ok = s.Delete("a")
	assert.False(t, ok, "second delete is a no-op")
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_ListOrdered(t *testing.T) {
	s := NewMemoryStore()
	base := time.Unix(100, 0)
	require.NoError(t, s.Insert(session("c", "000002", 2, base.Add(2*time.Second))))
	require.NoError(t, s.Insert(session("a", "000000", 2, base)))
	require.NoError(t, s.Insert(session("b", "000001", 2, base.Add(time.Second))))

	var ids []string
	for _, sess := range s.List() {
		ids = append(ids, sess.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestMemoryStore_FindByCode(t *testing.T) {
	s := NewMemoryStore()
	base := time.Unix(100, 0)
	require.NoError(t, s.Insert(session("a", "000000", 2, base)))
	require.NoError(t, s.Insert(session("b", "000001", 2, base)))

	found := s.FindByCode("000001")
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].ID)

	assert.Empty(t, s.FindByCode("123456"))
}

func TestMemoryStore_Update(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Insert(session("a", "000000", 2, time.Unix(0, 0))))

	next, err := s.Update("a", func(cur model.Session) (model.Session, error) {
		return cur.WithPlayer("p1"), nil
	})
	require.NoError(t, err)
	assert.True(t, next.HasPlayer("p1"))

	stored, _ := s.Get("a")
	assert.True(t, stored.HasPlayer("p1"))

	boom := errors.New("boom")
	_, err = s.Update("a", func(cur model.Session) (model.Session, error) {
		return cur.WithPlayer("p2"), boom
	})
	assert.ErrorIs(t, err, boom)
	stored, _ = s.Get("a")
	assert.False(t, stored.HasPlayer("p2"), "failed update leaves record unchanged")

	_, err = s.Update("missing", func(cur model.Session) (model.Session, error) { return cur, nil })
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	_, ok := s.Get("missing")
	assert.False(t, ok, "update of missing id must not create it")
}

func TestMemoryStore_UpdateIsAtomicPerKey(t *testing.T) {
	s := NewMemoryStore()
	const maxPlayers = 5
	require.NoError(t, s.Insert(session("a", "000000", maxPlayers, time.Unix(0, 0))))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Update("a", func(cur model.Session) (model.Session, error) {
				if cur.Full() {
					return cur, model.ErrSessionFull
				}
				return cur.WithPlayer(fmt.Sprintf("p%d", i)), nil
			})
		}(i)
	}
	wg.Wait()

	stored, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, maxPlayers, stored.PlayerCount())
}

func TestMemoryStore_ConcurrentDeleteSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Insert(session("a", "000000", 2, time.Unix(0, 0))))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Delete("a"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

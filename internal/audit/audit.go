// SPDX-License-Identifier: MIT

// Package audit records the session lifecycle history: one structured
// audit log line per event and, when a database path is configured, a
// queryable SQLite trail.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	"github.com/ManuGH/orkestra/internal/events"
	"github.com/ManuGH/orkestra/internal/log"
	"github.com/ManuGH/orkestra/internal/persistence/sqlite"
	"github.com/rs/zerolog"
)

const schemaVersion = 1

// Entry is a persisted event.
type Entry struct {
	Seq   int64       `json:"seq"`
	Event ports.Event `json:"event"`
}

// Store persists session events.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens or creates the audit database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(ctx, path, sqlite.Options{})
	if err != nil {
		return nil, err
	}
	s := &Store{
		db: db,
		logger: log.WithComponent("audit").With().
			Str("log_type", "audit").
			Logger(),
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit store: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS session_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		session_id TEXT NOT NULL,
		at_ms INTEGER NOT NULL,
		payload_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Record appends ev to the trail and writes the audit log line.
func (s *Store) Record(ctx context.Context, ev ports.Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO session_events (type, session_id, at_ms, payload_json) VALUES (?, ?, ?, ?)",
		string(ev.Type), ev.SessionID, ev.At.UnixMilli(), string(payload))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	s.logger.Info().
		Time("timestamp", ev.At).
		Str("event_type", string(ev.Type)).
		Str(log.FieldSessionID, ev.SessionID).
		Msg("session event")
	return nil
}

// Recent returns up to limit entries, newest first. A sessionID filters
// the trail to one session.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT seq, payload_json FROM session_events ORDER BY seq DESC LIMIT ?"
	args := []any{limit}
	if sessionID != "" {
		query = "SELECT seq, payload_json FROM session_events WHERE session_id = ? ORDER BY seq DESC LIMIT ?"
		args = []any{sessionID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e   Entry
			raw string
		)
		if err := rows.Scan(&e.Seq, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &e.Event); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", e.Seq, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Run records events from sub until ctx is done or sub is closed.
func (s *Store) Run(ctx context.Context, sub *events.Subscription) error {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := s.Record(context.WithoutCancel(ctx), ev); err != nil {
				s.logger.Warn().Err(err).
					Str(log.FieldEvent, "audit.record_failed").
					Str(log.FieldSessionID, ev.SessionID).
					Msg("failed to record session event")
			}
		}
	}
}

// Name identifies the store in health output.
func (s *Store) Name() string { return "audit" }

// Verify runs a quick integrity check.
func (s *Store) Verify(ctx context.Context) error {
	return sqlite.Verify(ctx, s.db, false)
}

func (s *Store) Close() error {
	return s.db.Close()
}

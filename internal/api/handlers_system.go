// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"

	"github.com/ManuGH/orkestra/internal/audit"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type historyResponse struct {
	Entries []audit.Entry `json:"entries"`
}

// handleHistory serves the audit trail, optionally for one session.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeMessage(w, http.StatusServiceUnavailable, "audit log disabled")
		return
	}
	q := r.URL.Query()
	limit := defaultHistoryLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.Recent(r.Context(), q.Get("session"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Entries: entries})
}

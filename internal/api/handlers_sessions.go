// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/orkestra/internal/domain/session/model"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/go-chi/chi/v5"
)

type createSessionRequest struct {
	CreatorID string `json:"creator_id"`
	Config    struct {
		MaxPlayers int    `json:"max_players"`
		GameMap    string `json:"game_map"`
		Title      string `json:"title"`
	} `json:"config"`
}

type playerRequest struct {
	ServerID string `json:"server_id"`
	PlayerID string `json:"player_id"`
}

type connectionResponse struct {
	Connection string `json:"connection"`
}

type serverSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type filterResponse struct {
	Servers []serverSummary `json:"servers"`
}

type sessionDetail struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	GameMap    string    `json:"game_map"`
	Code       string    `json:"code"`
	Connection string    `json:"connection"`
	MaxPlayers int       `json:"max_players"`
	Players    []string  `json:"players"`
	CreatedAt  time.Time `json:"created_at"`
}

func detailOf(s model.Session) sessionDetail {
	return sessionDetail{
		ID:         s.ID,
		Title:      s.Title,
		GameMap:    s.GameMap,
		Code:       s.Code,
		Connection: s.Endpoint(),
		MaxPlayers: s.MaxPlayers,
		Players:    s.Players(),
		CreatedAt:  s.CreatedAt,
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.sessions.CreateSession(r.Context(), req.CreatorID, model.Config{
		Title:      req.Config.Title,
		GameMap:    req.Config.GameMap,
		MaxPlayers: req.Config.MaxPlayers,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, connectionResponse{Connection: sess.Endpoint()})
}

func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := xglog.ContextWithSessionID(r.Context(), req.ServerID)
	sess, err := s.sessions.AddPlayer(ctx, req.ServerID, req.PlayerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, connectionResponse{Connection: sess.Endpoint()})
}

func (s *Server) handleRemovePlayer(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := xglog.ContextWithSessionID(r.Context(), req.ServerID)
	if _, err := s.sessions.RemovePlayer(ctx, req.ServerID, req.PlayerID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// handleFilterSessions lists everything without a code parameter. An empty
// code matches nothing.
func (s *Server) handleFilterSessions(w http.ResponseWriter, r *http.Request) {
	var found []model.Session
	if q := r.URL.Query(); q.Has("code") {
		found = s.sessions.FilterByCode(r.Context(), q.Get("code"))
	} else {
		found = s.sessions.ListAll(r.Context())
	}
	resp := filterResponse{Servers: make([]serverSummary, 0, len(found))}
	for _, sess := range found {
		resp.Servers = append(resp.Servers, serverSummary{ID: sess.ID, Title: sess.Title})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.GetByID(r.Context(), id)
	if errors.Is(err, model.ErrSessionNotFound) {
		writeMessage(w, http.StatusNotFound, "Session not found: "+id)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailOf(sess))
}

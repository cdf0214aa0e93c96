// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ManuGH/orkestra/internal/domain/session/model"
	xglog "github.com/ManuGH/orkestra/internal/log"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeError maps session service errors to the client contract. Every
// domain failure is a 400 with a fixed message; anything else is a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if msg, ok := model.ClientMessage(err); ok {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Error().Err(err).Str(xglog.FieldEvent, "api.internal_error").Str(xglog.FieldPath, r.URL.Path).Msg("unhandled error")
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

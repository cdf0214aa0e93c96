// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"
)

// probePaths are never limited; orchestrators poll them on a fixed cadence.
var probePaths = []string{"/healthz", "/readyz"}

// RateLimit allows rpm requests per client IP within a sliding minute.
// Rejected requests get a JSON 429 and a Retry-After of the window.
func RateLimit(rpm int) func(http.Handler) http.Handler {
	const window = time.Minute
	limit := httprate.Limit(rpm, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			h := w.Header()
			h.Set("Content-Type", "application/json")
			h.Set("Retry-After", strconv.Itoa(int(window/time.Second)))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
		}),
	)

	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbe(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

func isProbe(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, p := range probePaths {
		if path == p {
			return true
		}
	}
	return false
}

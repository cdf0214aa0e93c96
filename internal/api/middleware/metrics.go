// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strconv"
	"time"

	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orkestra",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving API requests.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "route", "status"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "orkestra",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "API requests currently being served.",
	})
)

// routeLabel is the matched chi pattern, so session ids do not mint series.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Metrics observes latency per method, route and status.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inFlight.Inc()
			began := time.Now()
			sw := &xglog.StatusWriter{ResponseWriter: w}
			defer func() {
				inFlight.Dec()
				status := sw.Status()
				if status == 0 {
					status = http.StatusOK
				}
				requestSeconds.
					WithLabelValues(r.Method, routeLabel(r), strconv.Itoa(status)).
					Observe(time.Since(began).Seconds())
			}()
			next.ServeHTTP(sw, r)
		})
	}
}

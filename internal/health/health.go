// SPDX-License-Identifier: MIT

// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/orkestra/internal/log"
)

const checkTimeout = 2 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// worse orders statuses by severity.
func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report is the body of both probes. Ready is only set on /readyz.
type Report struct {
	Status    Status                 `json:"status"`
	Ready     *bool                  `json:"ready,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs registered checkers. Register before serving.
type Manager struct {
	version  string
	checkers []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version}
}

func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// evaluate runs every checker concurrently, each under its own timeout.
func (m *Manager) evaluate(ctx context.Context) (map[string]CheckResult, Status) {
	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(m.checkers))
		overall = StatusHealthy
		g       errgroup.Group
	)
	for _, c := range m.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			res := c.Check(cctx)

			mu.Lock()
			defer mu.Unlock()
			results[c.Name()] = res
			overall = worse(overall, res.Status)
			return nil
		})
	}
	_ = g.Wait()
	return results, overall
}

// Health is the liveness view. Checks only run when verbose.
func (m *Manager) Health(ctx context.Context, verbose bool) Report {
	r := Report{Status: StatusHealthy, Version: m.version, Timestamp: time.Now()}
	if verbose && len(m.checkers) > 0 {
		r.Checks, r.Status = m.evaluate(ctx)
	}
	return r
}

// Ready is false only when some checker is unhealthy; degraded still serves.
func (m *Manager) Ready(ctx context.Context) Report {
	r := Report{Status: StatusHealthy, Timestamp: time.Now()}
	if len(m.checkers) > 0 {
		r.Checks, r.Status = m.evaluate(ctx)
	}
	ready := r.Status != StatusUnhealthy
	r.Ready = &ready
	return r
}

func writeReport(w http.ResponseWriter, r *http.Request, code int, rep Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "health")
		logger.Error().Err(err).
			Str(log.FieldEvent, "health.encode_error").
			Msg("failed to encode probe response")
	}
}

// ServeHealth always answers 200 while the process is up.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	writeReport(w, r, http.StatusOK, m.Health(r.Context(), r.URL.Query().Get("verbose") == "true"))
}

// ServeReady answers 503 when not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	rep := m.Ready(r.Context())
	code := http.StatusOK
	if !*rep.Ready {
		code = http.StatusServiceUnavailable
	}
	writeReport(w, r, code, rep)
	logger := log.WithComponentFromContext(r.Context(), "health")
	logger.Debug().
		Str(log.FieldEvent, "readiness.checked").
		Str("status", string(rep.Status)).
		Bool("ready", *rep.Ready).
		Msg("readiness probed")
}

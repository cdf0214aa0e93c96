// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for the orkestra session orchestrator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No session_id, player_id or port in labels.

var (
	// Sessions

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orkestra_sessions_active",
		Help: "Number of game sessions currently registered.",
	})

	sessionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orkestra_sessions_created_total",
		Help: "Total number of session create attempts, by result.",
	}, []string{"result"})

	sessionPlayersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orkestra_session_players_total",
		Help: "Total number of player membership operations, by operation and result.",
	}, []string{"op", "result"})

	// Ports

	portReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orkestra_port_reservations_total",
		Help: "Total number of port reservations, by result.",
	}, []string{"result"})

	portCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orkestra_port_collisions_total",
		Help: "Total number of kernel-assigned ports discarded because they were already pending.",
	})

	portsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orkestra_ports_pending",
		Help: "Number of ports reserved but not yet handed to a worker.",
	})

	// Workers

	workerStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orkestra_worker_starts_total",
		Help: "Total number of worker process spawn attempts, by result.",
	}, []string{"result"})

	workerExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orkestra_worker_exits_total",
		Help: "Total number of worker process exits, by reason (clean, failed, signaled).",
	}, []string{"reason"})

	workerLifetime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orkestra_worker_lifetime_seconds",
		Help:    "Lifetime of worker processes from spawn to exit.",
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
	})

	workersRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orkestra_workers_running",
		Help: "Number of worker processes currently supervised.",
	})

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orkestra_proc_terminate_total",
		Help: "Signals sent to worker process groups during shutdown, by signal and result.",
	}, []string{"signal", "result"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orkestra_proc_wait_total",
		Help: "Outcome of waiting on terminated worker process groups.",
	}, []string{"outcome"})

	// Events

	eventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orkestra_events_dropped_total",
		Help: "Session events dropped by a sink, by sink and reason.",
	}, []string{"sink", "reason"})
)

// SetActiveSessions sets the active session gauge.
func SetActiveSessions(n int) { sessionsActive.Set(float64(n)) }

// IncSessionCreate records a create attempt; result is "ok", "spawn_failed", "invalid" or "port_exhausted".
func IncSessionCreate(result string) { sessionsCreatedTotal.WithLabelValues(result).Inc() }

// IncPlayerOp records a join or leave.
func IncPlayerOp(op, result string) { sessionPlayersTotal.WithLabelValues(op, result).Inc() }

func IncPortReservation(result string) { portReservationsTotal.WithLabelValues(result).Inc() }
func IncPortCollision()                { portCollisionsTotal.Inc() }
func SetPortsPending(n int)            { portsPending.Set(float64(n)) }

// IncWorkerStart records a spawn attempt.
func IncWorkerStart(result string) { workerStartsTotal.WithLabelValues(result).Inc() }

// ObserveWorkerExit records the exit reason and lifetime of a worker.
func ObserveWorkerExit(reason string, lifetime time.Duration) {
	workerExitsTotal.WithLabelValues(reason).Inc()
	workerLifetime.Observe(lifetime.Seconds())
}

func SetWorkersRunning(n int) { workersRunning.Set(float64(n)) }

func IncProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}

func IncProcWait(outcome string) { procWaitTotal.WithLabelValues(outcome).Inc() }

// IncEventDrop records an event a sink could not deliver.
func IncEventDrop(sink, reason string) { eventsDroppedTotal.WithLabelValues(sink, reason).Inc() }

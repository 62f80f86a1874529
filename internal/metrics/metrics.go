// Package metrics exposes Prometheus instruments for sweeps and risk scoring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sweeps counts completed sweep runs by result (ok|fetch_error|unauthorized).
	Sweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "immowaechter_sweeps_total",
			Help: "Total number of reminder sweeps",
		},
		[]string{"result"},
	)

	// Notifications counts per-record outcomes (sent|failed|skipped|dry_run).
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "immowaechter_notifications_total",
			Help: "Reminder records by outcome",
		},
		[]string{"result"},
	)

	// SweepDuration measures a full sweep.
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "immowaechter_sweep_duration_seconds",
			Help:    "Reminder sweep duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RiskAssessments counts risk score computations by level.
	RiskAssessments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "immowaechter_risk_assessments_total",
			Help: "Risk score computations by level",
		},
		[]string{"level"},
	)
)

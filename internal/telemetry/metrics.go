// -------------------------------------------------------------------------------
// Metrics - Prometheus Instrumentation
//
// Author: Alex Freidah
//
// Prometheus metric definitions for the records service. Tracks HTTP traffic,
// secondary store availability, health probes, mirrored writes and sync runs.
// All metrics are prefixed with 'records_' for easy identification in
// dashboards and alerting rules.
// -------------------------------------------------------------------------------

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// -------------------------------------------------------------------------
// METRIC DEFINITIONS
// -------------------------------------------------------------------------

var (
	// --- Request metrics ---

	// RequestsTotal counts all HTTP requests by method, route and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status_code"},
	)

	// RequestDuration tracks request latency distribution by method and route.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "records_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// InflightRequests tracks currently processing requests.
	InflightRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "records_inflight_requests",
			Help: "Number of requests currently being processed",
		},
		[]string{"method"},
	)

	// SlowRequestsTotal counts requests that exceeded the slow request threshold.
	SlowRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_slow_requests_total",
			Help: "Total number of requests slower than the configured threshold",
		},
		[]string{"method", "route"},
	)

	// --- Secondary availability metrics ---

	// SecondaryAvailable is 1 when the secondary store is considered usable.
	SecondaryAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "records_secondary_available",
			Help: "Whether the secondary store is reachable (1) or not (0)",
		},
	)

	// AvailabilityTransitionsTotal counts state changes of the health prober.
	AvailabilityTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_secondary_transitions_total",
			Help: "Total number of secondary availability state transitions",
		},
		[]string{"from", "to"},
	)

	// ProbesTotal counts liveness probes against an existing secondary handle.
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_secondary_probes_total",
			Help: "Total number of secondary liveness probes by result",
		},
		[]string{"result"},
	)

	// ProbeDuration tracks the round-trip time of liveness probes.
	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "records_secondary_probe_duration_seconds",
			Help:    "Secondary liveness probe latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// ReconnectAttemptsTotal counts attempts to establish a missing secondary.
	ReconnectAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_secondary_reconnect_attempts_total",
			Help: "Total number of secondary reconnect attempts by result",
		},
		[]string{"result"},
	)

	// --- Mirror metrics ---

	// MirrorsTotal counts best-effort mirrored writes by operation and result.
	MirrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_mirror_writes_total",
			Help: "Total number of mirrored writes to the secondary store",
		},
		[]string{"operation", "result"},
	)

	// MirrorsInflight tracks mirrored writes that have not completed.
	MirrorsInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "records_mirror_writes_inflight",
			Help: "Number of mirrored writes currently running",
		},
	)

	// --- Sync metrics ---

	// SyncRunsTotal counts reconciliation runs by outcome.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_sync_runs_total",
			Help: "Total number of sync runs by result",
		},
		[]string{"result"},
	)

	// SyncRecordsTotal counts records copied to the secondary by sync runs.
	SyncRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "records_sync_records_total",
			Help: "Total number of records copied to the secondary by sync runs",
		},
	)

	// SyncErrorsTotal counts per-record sync failures.
	SyncErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "records_sync_errors_total",
			Help: "Total number of per-record sync failures",
		},
	)

	// SyncDuration tracks how long each sync run takes.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "records_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300},
		},
	)

	// SyncArchiveTotal counts sync report uploads by result.
	SyncArchiveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_sync_archive_total",
			Help: "Total number of sync report archive uploads by result",
		},
		[]string{"result"},
	)

	// --- Build info ---

	// BuildInfo exposes build metadata as labels.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "records_build_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)

// -------------------------------------------------------------------------------
// Reconciler - On-Demand Secondary Backfill
//
// Author: Alex Freidah
//
// Replays every primary record as a fresh insert against the secondary store.
// Inserts are plain creates: no upsert and no existence check. A record the
// secondary rejects, such as a duplicate csd_id_or_pwd_id, becomes one entry
// in the report and the run moves on.
// The run only fails as a whole when the secondary is flagged unavailable or
// the primary bulk read fails.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Alaric-Jeff/Records-Information/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
)

// -------------------------------------------------------------------------
// REPORT
// -------------------------------------------------------------------------

// SyncFailure describes one record the secondary rejected.
type SyncFailure struct {
	RecordID int64  `json:"record_id"`
	Reason   string `json:"reason"`
}

// String renders the failure as "record <id>: <reason>".
func (f SyncFailure) String() string {
	return fmt.Sprintf("record %d: %s", f.RecordID, f.Reason)
}

// SyncReport is the outcome of one reconciliation run.
// Succeeded + len(Failures) == Total.
type SyncReport struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failures  []SyncFailure `json:"failures"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Errors returns the failures rendered as strings, never nil.
func (r *SyncReport) Errors() []string {
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.String())
	}
	return out
}

// ReportSink receives completed reports, e.g. for archival.
type ReportSink interface {
	StoreReport(ctx context.Context, report *SyncReport) error
}

// -------------------------------------------------------------------------
// RECONCILER
// -------------------------------------------------------------------------

const defaultArchiveTimeout = 10 * time.Second

// Reconciler copies primary records to the secondary on demand.
type Reconciler struct {
	state          *AvailabilityState
	repo           PatientRepository
	sink           ReportSink
	archiveTimeout time.Duration
}

// NewReconciler builds a reconciler. sink may be nil.
func NewReconciler(state *AvailabilityState, repo PatientRepository, sink ReportSink) *Reconciler {
	return &Reconciler{state: state, repo: repo, sink: sink, archiveTimeout: defaultArchiveTimeout}
}

// WithArchiveTimeout bounds each report upload. Non-positive values keep the
// default.
func (r *Reconciler) WithArchiveTimeout(d time.Duration) *Reconciler {
	if d > 0 {
		r.archiveTimeout = d
	}
	return r
}

// ReconcileAll inserts every primary record into the secondary. It returns
// ErrSecondaryUnavailable without touching the primary when the flag is false.
// Once started, a run is not cancelled by ctx.
func (r *Reconciler) ReconcileAll(ctx context.Context) (*SyncReport, error) {
	secondary, ok := r.state.SecondaryIfAvailable()
	if !ok {
		telemetry.SyncRunsTotal.WithLabelValues("unavailable").Inc()
		return nil, ErrSecondaryUnavailable
	}

	ctx = context.WithoutCancel(ctx)
	ctx, span := telemetry.StartSpan(ctx, "Sync ReconcileAll",
		telemetry.StoreAttributes("reconcile", RoleSecondary)...,
	)
	defer span.End()

	start := time.Now()

	// --- Read every primary record ---
	patients, err := r.repo.ListPatients(ctx, r.state.Primary())
	if err != nil {
		telemetry.SyncRunsTotal.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read primary records: %w", err)
	}

	report := &SyncReport{
		Total:     len(patients),
		Failures:  []SyncFailure{},
		StartedAt: start,
	}

	// --- Insert each as a fresh record ---
	for _, p := range patients {
		if _, err := r.repo.CreatePatient(ctx, secondary, p.CreateRequest()); err != nil {
			slog.Warn("Sync: failed to copy record",
				"record_id", p.PatientID, "error", err)
			telemetry.SyncErrorsTotal.Inc()
			report.Failures = append(report.Failures, SyncFailure{RecordID: p.PatientID, Reason: err.Error()})
			continue
		}
		report.Succeeded++
	}

	report.Duration = time.Since(start)

	telemetry.SyncRecordsTotal.Add(float64(report.Succeeded))
	telemetry.SyncRunsTotal.WithLabelValues("success").Inc()
	telemetry.SyncDuration.Observe(report.Duration.Seconds())
	span.SetAttributes(
		telemetry.AttrSyncTotal.Int(report.Total),
		telemetry.AttrSyncFailed.Int(len(report.Failures)),
	)

	slog.Info("Sync completed",
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", len(report.Failures),
		"duration", report.Duration,
	)

	r.archive(ctx, report)
	return report, nil
}

// archive hands the report to the sink under the archive timeout. Sink
// failures never affect the run.
func (r *Reconciler) archive(ctx context.Context, report *SyncReport) {
	if r.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.archiveTimeout)
	defer cancel()

	if err := r.sink.StoreReport(ctx, report); err != nil {
		telemetry.SyncArchiveTotal.WithLabelValues("error").Inc()
		slog.Warn("Sync: failed to archive report", "error", err)
		return
	}
	telemetry.SyncArchiveTotal.WithLabelValues("success").Inc()
}

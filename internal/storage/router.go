// -------------------------------------------------------------------------------
// Router - Primary Writes With Best-Effort Secondary Mirror
//
// Author: Alex Freidah
//
// Routes patient operations for the HTTP layer. Every write runs against the
// primary and its result is returned as-is. When the secondary is flagged
// available at that moment, the same write is replayed against it in a
// background goroutine whose error is logged and dropped.
//
// The mirror is not a queue and never retries. Mirrors of the same record are
// not ordered against each other. A write made while the secondary is down is
// never replayed later; POST /patients/sync is the only catch-up path.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Alaric-Jeff/Records-Information/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
)

const defaultMirrorTimeout = 10 * time.Second

// Router sends reads to the primary and mirrors writes to the secondary.
type Router struct {
	state         *AvailabilityState
	repo          PatientRepository
	mirrorEnabled bool
	mirrorTimeout time.Duration
	wg            sync.WaitGroup
}

// NewRouter builds a router. With mirror false the secondary is never
// touched, which is how disabled sync is wired.
func NewRouter(state *AvailabilityState, repo PatientRepository, mirror bool, mirrorTimeout time.Duration) *Router {
	if mirrorTimeout <= 0 {
		mirrorTimeout = defaultMirrorTimeout
	}
	return &Router{
		state:         state,
		repo:          repo,
		mirrorEnabled: mirror,
		mirrorTimeout: mirrorTimeout,
	}
}

// -------------------------------------------------------------------------
// READS
// -------------------------------------------------------------------------

// ListPatients returns every patient from the primary.
func (r *Router) ListPatients(ctx context.Context) ([]Patient, error) {
	return r.repo.ListPatients(ctx, r.state.Primary())
}

// GetPatient returns one patient from the primary.
func (r *Router) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return r.repo.GetPatient(ctx, r.state.Primary(), id)
}

// -------------------------------------------------------------------------
// WRITES
// -------------------------------------------------------------------------

// CreatePatient inserts into the primary and mirrors the same request.
func (r *Router) CreatePatient(ctx context.Context, req CreatePatientRequest) (*Patient, error) {
	ctx, span := telemetry.StartSpan(ctx, "Store CreatePatient",
		telemetry.StoreAttributes("create", RolePrimary)...,
	)
	defer span.End()

	p, err := r.repo.CreatePatient(ctx, r.state.Primary(), req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(telemetry.AttrPatientID.Int64(p.PatientID))

	r.mirror(ctx, "create", func(ctx context.Context, h *Handle) error {
		_, err := r.repo.CreatePatient(ctx, h, req)
		return err
	})
	return p, nil
}

// UpdatePatient updates the primary and, when the row existed, mirrors the
// same partial update by id.
func (r *Router) UpdatePatient(ctx context.Context, id int64, req UpdatePatientRequest) (*Patient, error) {
	ctx, span := telemetry.StartSpan(ctx, "Store UpdatePatient",
		append(telemetry.StoreAttributes("update", RolePrimary), telemetry.AttrPatientID.Int64(id))...,
	)
	defer span.End()

	p, err := r.repo.UpdatePatient(ctx, r.state.Primary(), id, req)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	r.mirror(ctx, "update", func(ctx context.Context, h *Handle) error {
		_, err := r.repo.UpdatePatient(ctx, h, id, req)
		return err
	})
	return p, nil
}

// DeletePatient deletes from the primary and, when a row was removed,
// mirrors the delete by id.
func (r *Router) DeletePatient(ctx context.Context, id int64) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "Store DeletePatient",
		append(telemetry.StoreAttributes("delete", RolePrimary), telemetry.AttrPatientID.Int64(id))...,
	)
	defer span.End()

	deleted, err := r.repo.DeletePatient(ctx, r.state.Primary(), id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	if !deleted {
		return false, nil
	}

	r.mirror(ctx, "delete", func(ctx context.Context, h *Handle) error {
		found, err := r.repo.DeletePatient(ctx, h, id)
		if err == nil && !found {
			return ErrNotFound
		}
		return err
	})
	return true, nil
}

// Wait blocks until every in-flight mirror has finished.
func (r *Router) Wait() {
	r.wg.Wait()
}

// -------------------------------------------------------------------------
// MIRROR
// -------------------------------------------------------------------------

// mirror replays a write against the secondary if it is available right now.
// The replay is detached from the request's cancellation and bounded by the
// mirror timeout. Its error is logged and counted, never returned.
func (r *Router) mirror(ctx context.Context, op string, fn func(ctx context.Context, h *Handle) error) {
	if !r.mirrorEnabled {
		return
	}
	h, ok := r.state.SecondaryIfAvailable()
	if !ok {
		telemetry.MirrorsTotal.WithLabelValues(op, "skipped").Inc()
		return
	}

	r.wg.Add(1)
	telemetry.MirrorsInflight.Inc()
	go func() {
		defer r.wg.Done()
		defer telemetry.MirrorsInflight.Dec()

		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.mirrorTimeout)
		defer cancel()

		if err := fn(mctx, h); err != nil {
			telemetry.MirrorsTotal.WithLabelValues(op, "error").Inc()
			slog.Warn("Mirror: secondary write failed", "operation", op, "error", err)
			return
		}
		telemetry.MirrorsTotal.WithLabelValues(op, "success").Inc()
	}()
}

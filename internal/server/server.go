// -------------------------------------------------------------------------------
// HTTP Server - Patient API Routing
//
// Author: Alex Freidah
//
// HTTP server and request router for the patient records API. Reads are
// served from the primary store; writes go through the storage router, which
// mirrors them to the secondary when it is available. Client-visible status
// codes reflect only the primary outcome. The sync endpoint triggers an
// on-demand backfill of the secondary.
// -------------------------------------------------------------------------------

package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Alaric-Jeff/Records-Information/internal/config"
	"github.com/Alaric-Jeff/Records-Information/internal/storage"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -------------------------------------------------------------------------
// DEPENDENCIES
// -------------------------------------------------------------------------

// PatientService performs patient reads and writes for the API.
type PatientService interface {
	ListPatients(ctx context.Context) ([]storage.Patient, error)
	GetPatient(ctx context.Context, id int64) (*storage.Patient, error)
	CreatePatient(ctx context.Context, req storage.CreatePatientRequest) (*storage.Patient, error)
	UpdatePatient(ctx context.Context, id int64, req storage.UpdatePatientRequest) (*storage.Patient, error)
	DeletePatient(ctx context.Context, id int64) (bool, error)
}

// SyncRunner runs an on-demand secondary backfill.
type SyncRunner interface {
	ReconcileAll(ctx context.Context) (*storage.SyncReport, error)
}

// AvailabilityReporter reports whether the secondary store is usable.
type AvailabilityReporter interface {
	Available() bool
}

// Compile-time checks against the production implementations.
var (
	_ PatientService       = (*storage.Router)(nil)
	_ SyncRunner           = (*storage.Reconciler)(nil)
	_ AvailabilityReporter = (*storage.AvailabilityState)(nil)
)

// -------------------------------------------------------------------------
// SERVER
// -------------------------------------------------------------------------

// Server handles HTTP requests for the patient API.
type Server struct {
	Patients             PatientService
	Sync                 SyncRunner
	Availability         AvailabilityReporter
	AuthConfig           config.AuthConfig
	RateLimiter          *RateLimiter  // nil disables rate limiting
	MetricsPath          string        // empty disables the metrics endpoint
	SlowRequestThreshold time.Duration // zero disables slow request warnings

	once   sync.Once
	router *mux.Router
}

// ServeHTTP implements http.Handler. Routes are built on first use.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(s.buildRouter)
	s.router.ServeHTTP(w, r)
}

// buildRouter registers routes and the middleware chain.
func (s *Server) buildRouter() {
	r := mux.NewRouter()

	// --- Middleware: outermost first ---
	r.Use(requestIDMiddleware)
	r.Use(s.instrumentMiddleware)
	if s.RateLimiter != nil {
		r.Use(s.RateLimiter.Middleware)
	}
	r.Use(s.authMiddleware)
	r.Use(s.cloudGuardMiddleware)

	// --- Status ---
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/db-status", s.handleDBStatus).Methods(http.MethodGet)

	// --- Patients ---
	// /patients/sync is registered before /patients/{id} so it wins the match.
	r.HandleFunc("/patients/sync", s.handleSync).Methods(http.MethodPost)
	r.HandleFunc("/patients", s.handleListPatients).Methods(http.MethodGet)
	r.HandleFunc("/patients", s.handleCreatePatient).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}", s.handleGetPatient).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}", s.handleUpdatePatient).Methods(http.MethodPut)
	r.HandleFunc("/patients/{id}", s.handleDeletePatient).Methods(http.MethodDelete)

	// --- Metrics ---
	if s.MetricsPath != "" {
		r.Handle(s.MetricsPath, promhttp.Handler()).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.router = r
}

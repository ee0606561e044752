// -------------------------------------------------------------------------------
// Handlers - Patient CRUD, Status and Sync Endpoints
//
// Author: Alex Freidah
//
// One handler per route. Each decodes its input, calls the patient service or
// reconciler, and maps storage errors onto HTTP statuses: ErrNotFound to 404,
// ErrInvalidRequest to 400, ErrSecondaryUnavailable to 503, anything else
// from the primary to 500.
// -------------------------------------------------------------------------------

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Alaric-Jeff/Records-Information/internal/storage"
)

const (
	msgPatientNotFound  = "Patient not found"
	msgPatientDeleted   = "Patient deleted successfully"
	msgCloudUnavailable = "Cloud database is not available"
	msgSyncCompleted    = "Sync completed"
	msgInvalidID        = "Invalid patient ID"
)

// -------------------------------------------------------------------------
// STATUS
// -------------------------------------------------------------------------

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// storeStatus reports one store on /db-status.
type storeStatus struct {
	Available bool   `json:"available"`
	Status    string `json:"status"`
}

func newStoreStatus(available bool) storeStatus {
	if available {
		return storeStatus{Available: true, Status: "connected"}
	}
	return storeStatus{Available: false, Status: "disconnected"}
}

type dbStatusResponse struct {
	Local storeStatus `json:"local"`
	Cloud storeStatus `json:"cloud"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

// handleDBStatus reports the primary as always connected while the process
// runs, and the secondary by the availability flag.
func (s *Server) handleDBStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dbStatusResponse{
		Local: newStoreStatus(true),
		Cloud: newStoreStatus(s.Availability.Available()),
	})
}

// -------------------------------------------------------------------------
// PATIENTS
// -------------------------------------------------------------------------

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := s.Patients.ListPatients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get patients: %v", err))
		return
	}
	if patients == nil {
		patients = []storage.Patient{}
	}
	writeJSON(w, http.StatusOK, patients)
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	p, err := s.Patients.GetPatient(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, msgPatientNotFound)
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get patient: %v", err))
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req storage.CreatePatientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.Patients.CreatePatient(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create patient: %v", err))
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	var req storage.UpdatePatientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.Patients.UpdatePatient(r.Context(), id, req)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, msgPatientNotFound)
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to update patient: %v", err))
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	deleted, err := s.Patients.DeletePatient(r.Context(), id)
	switch {
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete patient: %v", err))
	case !deleted:
		writeError(w, http.StatusNotFound, msgPatientNotFound)
	default:
		writeJSON(w, http.StatusOK, messageResponse{Message: msgPatientDeleted})
	}
}

// -------------------------------------------------------------------------
// SYNC
// -------------------------------------------------------------------------

// syncResponse is returned for a completed run, including partial failures.
type syncResponse struct {
	Message      string   `json:"message"`
	SyncedCount  int      `json:"synced_count"`
	TotalRecords int      `json:"total_records"`
	Errors       []string `json:"errors"`
}

// handleSync runs a full backfill and waits for it to finish.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.Sync.ReconcileAll(r.Context())
	switch {
	case errors.Is(err, storage.ErrSecondaryUnavailable):
		writeError(w, http.StatusServiceUnavailable, msgCloudUnavailable)
		return
	case err != nil:
		slog.Error("Sync failed", "error", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get patients for sync: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Message:      msgSyncCompleted,
		SyncedCount:  report.Succeeded,
		TotalRecords: report.Total,
		Errors:       report.Errors(),
	})
}

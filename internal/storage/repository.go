// -------------------------------------------------------------------------------
// PatientRepository - CRUD Against Any One Store
//
// Author: Alex Freidah
//
// Defines the repository capability used by the router and the reconciler.
// Every method takes the Handle to operate on, so the same code serves the
// primary and the secondary store. GormPatientRepository is the production
// implementation; tests substitute a recording mock.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// -------------------------------------------------------------------------
// SENTINEL ERRORS
// -------------------------------------------------------------------------

var (
	// ErrNotFound is returned when a patient id does not exist in the store.
	ErrNotFound = errors.New("patient not found")

	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSecondaryUnavailable is returned by operations that need the
	// secondary store while it is flagged unavailable.
	ErrSecondaryUnavailable = errors.New("secondary store not available")

	// ErrSecondaryNotConfigured is returned by the connector when no
	// secondary url is set or sync is disabled.
	ErrSecondaryNotConfigured = errors.New("secondary store not configured")
)

// -------------------------------------------------------------------------
// INTERFACE
// -------------------------------------------------------------------------

// PatientRepository performs patient CRUD against a single store handle.
type PatientRepository interface {
	ListPatients(ctx context.Context, h *Handle) ([]Patient, error)
	GetPatient(ctx context.Context, h *Handle, id int64) (*Patient, error)
	CreatePatient(ctx context.Context, h *Handle, req CreatePatientRequest) (*Patient, error)
	UpdatePatient(ctx context.Context, h *Handle, id int64, req UpdatePatientRequest) (*Patient, error)
	DeletePatient(ctx context.Context, h *Handle, id int64) (bool, error)
}

// Compile-time check: *GormPatientRepository satisfies PatientRepository.
var _ PatientRepository = (*GormPatientRepository)(nil)

// -------------------------------------------------------------------------
// GORM IMPLEMENTATION
// -------------------------------------------------------------------------

// GormPatientRepository implements PatientRepository with GORM.
type GormPatientRepository struct{}

// NewPatientRepository returns the GORM-backed repository.
func NewPatientRepository() *GormPatientRepository {
	return &GormPatientRepository{}
}

// Migrate creates or extends the patient table on the given store.
func Migrate(ctx context.Context, h *Handle) error {
	if err := h.DB(ctx).AutoMigrate(&Patient{}); err != nil {
		return fmt.Errorf("failed to migrate %s schema: %w", h.Role(), err)
	}
	return nil
}

// ListPatients returns every patient ordered by id.
func (GormPatientRepository) ListPatients(ctx context.Context, h *Handle) ([]Patient, error) {
	var patients []Patient
	if err := h.DB(ctx).Order("patient_id ASC").Find(&patients).Error; err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

// GetPatient returns one patient or ErrNotFound.
func (GormPatientRepository) GetPatient(ctx context.Context, h *Handle, id int64) (*Patient, error) {
	var p Patient
	err := h.DB(ctx).First(&p, "patient_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient %d: %w", id, err)
	}
	return &p, nil
}

// CreatePatient inserts a new patient; the store assigns id and timestamps.
func (GormPatientRepository) CreatePatient(ctx context.Context, h *Handle, req CreatePatientRequest) (*Patient, error) {
	p := req.toModel()
	if err := h.DB(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return p, nil
}

// UpdatePatient applies the set fields of req and returns the updated row.
func (r GormPatientRepository) UpdatePatient(ctx context.Context, h *Handle, id int64, req UpdatePatientRequest) (*Patient, error) {
	changes := req.changes()
	if len(changes) == 0 {
		return r.GetPatient(ctx, h, id)
	}
	changes["updated_at"] = time.Now().UTC()

	res := h.DB(ctx).Model(&Patient{}).Where("patient_id = ?", id).Updates(changes)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update patient %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetPatient(ctx, h, id)
}

// DeletePatient removes a patient and reports whether a row existed.
func (GormPatientRepository) DeletePatient(ctx context.Context, h *Handle, id int64) (bool, error) {
	res := h.DB(ctx).Delete(&Patient{}, "patient_id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete patient %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

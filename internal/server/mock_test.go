package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Alaric-Jeff/Records-Information/internal/storage"
)

// fixedTime stamps every fake record so response bodies are deterministic.
var fixedTime = time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)

// fakePatients is an in-memory PatientService with per-operation error
// injection and call tracking.
type fakePatients struct {
	mu      sync.Mutex
	rows    map[int64]storage.Patient
	nextID  int64
	err     error // returned by every operation when set
	creates []storage.CreatePatientRequest
}

var _ PatientService = (*fakePatients)(nil)

func newFakePatients() *fakePatients {
	return &fakePatients{rows: make(map[int64]storage.Patient)}
}

func (f *fakePatients) add(first string) storage.Patient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := storage.Patient{
		PatientID: f.nextID,
		FirstName: first,
		LastName:  "Dela Cruz",
		BirthDate: storage.NewDate(1990, time.May, 1),
		CreatedAt: fixedTime,
		UpdatedAt: fixedTime,
	}
	f.rows[p.PatientID] = p
	return p
}

func (f *fakePatients) ListPatients(context.Context) ([]storage.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []storage.Patient
	for id := int64(1); id <= f.nextID; id++ {
		if p, ok := f.rows[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePatients) GetPatient(_ context.Context, id int64) (*storage.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.rows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (f *fakePatients) CreatePatient(_ context.Context, req storage.CreatePatientRequest) (*storage.Patient, error) {
	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return nil, f.err
	}
	f.creates = append(f.creates, req)
	f.mu.Unlock()

	p := f.add(req.FirstName)
	return &p, nil
}

func (f *fakePatients) UpdatePatient(_ context.Context, id int64, req storage.UpdatePatientRequest) (*storage.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.rows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if req.FirstName != nil {
		p.FirstName = *req.FirstName
	}
	if req.IsArchived != nil {
		p.IsArchived = *req.IsArchived
	}
	f.rows[id] = p
	return &p, nil
}

func (f *fakePatients) DeletePatient(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.rows[id]; !ok {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

// fakeSync returns a canned report or error and counts calls.
type fakeSync struct {
	report *storage.SyncReport
	err    error
	calls  atomic.Int32
}

func (f *fakeSync) ReconcileAll(context.Context) (*storage.SyncReport, error) {
	f.calls.Add(1)
	return f.report, f.err
}

// fakeAvailability is a settable availability flag.
type fakeAvailability struct {
	up atomic.Bool
}

func (f *fakeAvailability) Available() bool { return f.up.Load() }

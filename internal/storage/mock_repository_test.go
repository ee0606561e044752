package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// errInjected is the default error returned by failing mock operations.
var errInjected = errors.New("injected failure")

// mockRepository is a configurable PatientRepository for unit testing the
// router and reconciler. Rows are kept per store role so tests can assert
// which store an operation reached. Failure hooks return an error for the
// matching call; call tracking fields allow assertions on traffic.
type mockRepository struct {
	mu sync.Mutex

	// --- Data per role ---
	rows   map[string][]Patient
	nextID map[string]int64

	// --- Configurable failures ---
	listErr   map[string]error
	failWrite map[string]bool                      // every write against the role fails
	failOn    func(req CreatePatientRequest) error // per-request create failure on the secondary
	writeGate chan struct{}                        // when set, secondary writes block until closed

	// --- Call tracking ---
	calls []mockCall
}

type mockCall struct {
	Op   string
	Role string
}

var _ PatientRepository = (*mockRepository)(nil)

func newMockRepository() *mockRepository {
	return &mockRepository{
		rows:      make(map[string][]Patient),
		nextID:    make(map[string]int64),
		listErr:   make(map[string]error),
		failWrite: make(map[string]bool),
	}
}

// mockHandle returns a Handle usable only as an identity for mock calls.
func mockHandle(role string) *Handle {
	return &Handle{role: role, driver: "mock"}
}

// seed inserts rows directly, bypassing call tracking.
func (m *mockRepository) seed(role string, reqs ...CreatePatientRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range reqs {
		m.insertLocked(role, req)
	}
}

func (m *mockRepository) insertLocked(role string, req CreatePatientRequest) *Patient {
	m.nextID[role]++
	p := req.toModel()
	p.PatientID = m.nextID[role]
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.rows[role] = append(m.rows[role], *p)
	return p
}

func (m *mockRepository) record(op, role string) {
	m.calls = append(m.calls, mockCall{Op: op, Role: role})
}

// count returns how many calls matched op and role.
func (m *mockRepository) count(op, role string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op && c.Role == role {
			n++
		}
	}
	return n
}

// rowsFor returns a copy of the rows stored for role.
func (m *mockRepository) rowsFor(role string) []Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Patient(nil), m.rows[role]...)
}

func (m *mockRepository) waitGate(role string) {
	if role != RoleSecondary || m.writeGate == nil {
		return
	}
	<-m.writeGate
}

func (m *mockRepository) ListPatients(_ context.Context, h *Handle) ([]Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("list", h.Role())
	if err := m.listErr[h.Role()]; err != nil {
		return nil, err
	}
	return append([]Patient(nil), m.rows[h.Role()]...), nil
}

func (m *mockRepository) GetPatient(_ context.Context, h *Handle, id int64) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("get", h.Role())
	for _, p := range m.rows[h.Role()] {
		if p.PatientID == id {
			p := p
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepository) CreatePatient(_ context.Context, h *Handle, req CreatePatientRequest) (*Patient, error) {
	m.waitGate(h.Role())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create", h.Role())
	if m.failWrite[h.Role()] {
		return nil, errInjected
	}
	if h.Role() == RoleSecondary && m.failOn != nil {
		if err := m.failOn(req); err != nil {
			return nil, err
		}
	}
	return m.insertLocked(h.Role(), req), nil
}

func (m *mockRepository) UpdatePatient(_ context.Context, h *Handle, id int64, req UpdatePatientRequest) (*Patient, error) {
	m.waitGate(h.Role())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("update", h.Role())
	if m.failWrite[h.Role()] {
		return nil, errInjected
	}
	rows := m.rows[h.Role()]
	for i := range rows {
		if rows[i].PatientID != id {
			continue
		}
		if req.FirstName != nil {
			rows[i].FirstName = *req.FirstName
		}
		if req.LastName != nil {
			rows[i].LastName = *req.LastName
		}
		rows[i].UpdatedAt = time.Now()
		p := rows[i]
		return &p, nil
	}
	return nil, ErrNotFound
}

func (m *mockRepository) DeletePatient(_ context.Context, h *Handle, id int64) (bool, error) {
	m.waitGate(h.Role())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete", h.Role())
	if m.failWrite[h.Role()] {
		return false, errInjected
	}
	rows := m.rows[h.Role()]
	for i := range rows {
		if rows[i].PatientID == id {
			m.rows[h.Role()] = append(rows[:i], rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// patientRequest builds a valid create request with a distinguishing name.
func patientRequest(first string) CreatePatientRequest {
	return CreatePatientRequest{
		FirstName: first,
		LastName:  "Dela Cruz",
		BirthDate: NewDate(1990, time.May, 1),
	}
}

// patientRequestWithID adds a CSD/PWD identifier to the request.
func patientRequestWithID(first, csd string) CreatePatientRequest {
	req := patientRequest(first)
	req.CsdIDOrPwdID = &csd
	return req
}

// duplicateKeyError mimics a unique-constraint rejection.
func duplicateKeyError(csd string) error {
	return fmt.Errorf("duplicate key value violates unique constraint: csd_id_or_pwd_id=%s", csd)
}

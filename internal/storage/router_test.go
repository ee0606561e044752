package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestRouter(state *AvailabilityState, repo PatientRepository) *Router {
	return NewRouter(state, repo, true, time.Second)
}

func TestRouter_CreateMirrorsWhenAvailable(t *testing.T) {
	state, _, _ := newMockStates()
	repo := newMockRepository()
	r := newTestRouter(state, repo)

	p, err := r.CreatePatient(context.Background(), patientRequest("Ana"))
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	r.Wait()

	if p.PatientID != 1 {
		t.Errorf("PatientID = %d, want 1", p.PatientID)
	}
	if n := len(repo.rowsFor(RoleSecondary)); n != 1 {
		t.Errorf("secondary rows = %d, want 1", n)
	}
}

func TestRouter_CreateReturnsBeforeMirrorCompletes(t *testing.T) {
	state, _, _ := newMockStates()
	repo := newMockRepository()
	repo.writeGate = make(chan struct{})
	r := newTestRouter(state, repo)

	done := make(chan struct{})
	go func() {
		if _, err := r.CreatePatient(context.Background(), patientRequest("Ana")); err != nil {
			t.Errorf("CreatePatient: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("create blocked on the secondary write")
	}

	close(repo.writeGate)
	r.Wait()
	if n := len(repo.rowsFor(RoleSecondary)); n != 1 {
		t.Errorf("secondary rows = %d, want 1", n)
	}
}

func TestRouter_MirrorFailureNotSurfaced(t *testing.T) {
	state, _, _ := newMockStates()
	repo := newMockRepository()
	repo.failWrite[RoleSecondary] = true
	r := newTestRouter(state, repo)

	p, err := r.CreatePatient(context.Background(), patientRequest("Ana"))
	r.Wait()

	if err != nil {
		t.Fatalf("mirror failure leaked to caller: %v", err)
	}
	if p == nil || p.FirstName != "Ana" {
		t.Errorf("unexpected patient: %+v", p)
	}
	if repo.count("create", RoleSecondary) != 1 {
		t.Error("expected one secondary attempt")
	}
	if len(repo.rowsFor(RolePrimary)) != 1 {
		t.Error("primary write should stand")
	}
}

func TestRouter_NoMirrorWhenUnavailable(t *testing.T) {
	state, _, _ := newMockStates()
	state.SetAvailability(false)
	repo := newMockRepository()
	r := newTestRouter(state, repo)

	if _, err := r.CreatePatient(context.Background(), patientRequest("Ana")); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	r.Wait()

	if n := repo.count("create", RoleSecondary); n != 0 {
		t.Errorf("secondary creates = %d, want 0", n)
	}
}

func TestRouter_NoMirrorWhenDisabled(t *testing.T) {
	state, _, _ := newMockStates()
	repo := newMockRepository()
	r := NewRouter(state, repo, false, 0)

	if _, err := r.CreatePatient(context.Background(), patientRequest("Ana")); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	r.Wait()

	if n := repo.count("create", RoleSecondary); n != 0 {
		t.Errorf("secondary creates = %d, want 0", n)
	}
	if r.mirrorTimeout != defaultMirrorTimeout {
		t.Errorf("mirrorTimeout = %v, want default %v", r.mirrorTimeout, defaultMirrorTimeout)
	}
}

func TestRouter_PrimaryFailureSkipsMirror(t *testing.T) {
	state, _, _ := newMockStates()
	repo := newMockRepository()
	repo.failWrite[RolePrimary] = true
	r := newTestRouter(state, repo)

	_, err := r.CreatePatient(context.Background(), patientRequest("Ana"))
	r.Wait()

	if !errors.Is(err, errInjected) {
		t.Fatalf("err = %v, want errInjected", err)
	}
	if n := repo.count("create", RoleSecondary); n != 0 {
		t.Errorf("secondary creates = %d, want 0", n)
	}
}

func TestRouter_ReadsHitPrimaryOnly(t *testing.T) {
	state, _, _ := newMockStates()
	repo := newMockRepository()
	repo.seed(RolePrimary, patientRequest("Ana"))
	repo.seed(RoleSecondary, patientRequest("Ben"), patientRequest("Cara"))
	r := newTestRouter(state, repo)

	list, err := r.ListPatients(context.Background())
	if err != nil {
		t.Fatalf("ListPatients: %v", err)
	}
	if len(list) != 1 || list[0].FirstName != "Ana" {
		t.Errorf("ListPatients = %+v, want only the primary row", list)
	}

	if _, err := r.GetPatient(context.Background(), 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPatient(2) err = %v, want ErrNotFound", err)
	}
	if repo.count("list", RoleSecondary)+repo.count("get", RoleSecondary) != 0 {
		t.Error("reads reached the secondary")
	}
}

func TestRouter_UpdateMirrorsOnlyOnSuccess(t *testing.T) {
	state, _, _ := newMockStates()
	repo := newMockRepository()
	repo.seed(RolePrimary, patientRequest("Ana"))
	repo.seed(RoleSecondary, patientRequest("Ana"))
	r := newTestRouter(state, repo)

	name := "Anna"
	p, err := r.UpdatePatient(context.Background(), 1, UpdatePatientRequest{FirstName: &name})
	if err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	if p.FirstName != "Anna" {
		t.Errorf("FirstName = %q, want Anna", p.FirstName)
	}

	if _, err := r.UpdatePatient(context.Background(), 99, UpdatePatientRequest{FirstName: &name}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatePatient(99) err = %v, want ErrNotFound", err)
	}
	r.Wait()

	if n := repo.count("update", RoleSecondary); n != 1 {
		t.Errorf("secondary updates = %d, want 1", n)
	}
	if got := repo.rowsFor(RoleSecondary)[0].FirstName; got != "Anna" {
		t.Errorf("secondary FirstName = %q, want Anna", got)
	}
}

func TestRouter_DeleteMirrorsOnlyWhenDeleted(t *testing.T) {
	state, _, _ := newMockStates()
	repo := newMockRepository()
	repo.seed(RolePrimary, patientRequest("Ana"))
	r := newTestRouter(state, repo)

	deleted, err := r.DeletePatient(context.Background(), 1)
	if err != nil || !deleted {
		t.Fatalf("DeletePatient(1) = %v, %v, want true, nil", deleted, err)
	}

	deleted, err = r.DeletePatient(context.Background(), 1)
	if err != nil || deleted {
		t.Fatalf("second DeletePatient(1) = %v, %v, want false, nil", deleted, err)
	}
	r.Wait()

	// The secondary never had the row; the mirror counts it as missing and
	// nothing is surfaced.
	if n := repo.count("delete", RoleSecondary); n != 1 {
		t.Errorf("secondary deletes = %d, want 1", n)
	}
}

func TestRouter_SQLiteMirror(t *testing.T) {
	ctx := context.Background()
	primary := newSQLiteHandle(t, RolePrimary)
	secondary := newSQLiteHandle(t, RoleSecondary)
	repo := NewPatientRepository()
	r := newTestRouter(NewAvailabilityState(primary, Some(secondary)), repo)

	if _, err := r.CreatePatient(ctx, patientRequestWithID("Ana", "PWD-7")); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	r.Wait()

	got, err := repo.GetPatient(ctx, secondary, 1)
	if err != nil {
		t.Fatalf("secondary GetPatient: %v", err)
	}
	if got.CsdIDOrPwdID == nil || *got.CsdIDOrPwdID != "PWD-7" {
		t.Errorf("secondary CsdIDOrPwdID = %v, want PWD-7", got.CsdIDOrPwdID)
	}
	if got.BirthDate.String() != "1990-05-01" {
		t.Errorf("secondary BirthDate = %s, want 1990-05-01", got.BirthDate)
	}
}

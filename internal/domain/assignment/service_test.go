package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/platform/authz"
)

type mockRepo struct {
	hospitals   map[uuid.UUID]*DoctorHospital
	departments map[uuid.UUID]*DoctorDepartment
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		hospitals:   make(map[uuid.UUID]*DoctorHospital),
		departments: make(map[uuid.UUID]*DoctorDepartment),
	}
}

// ownRow mirrors the junction visibility predicate: admins see everything,
// everyone else sees rows keyed by their own profile id.
func ownRow(a *authz.Actor, doctorID uuid.UUID) bool {
	if a == nil {
		return false
	}
	return a.Role == authz.RoleAdmin || a.ProfileID == doctorID
}

func (m *mockRepo) CreateHospitalAssignment(ctx context.Context, dh *DoctorHospital) error {
	if dh.ID == uuid.Nil {
		dh.ID = uuid.New()
	}
	dh.CreatedAt = time.Now()
	cp := *dh
	m.hospitals[dh.ID] = &cp
	return nil
}

func (m *mockRepo) ListHospitalAssignments(ctx context.Context, a *authz.Actor, doctorID uuid.UUID, limit, offset int) ([]*DoctorHospital, int, error) {
	var out []*DoctorHospital
	for _, dh := range m.hospitals {
		if !ownRow(a, dh.DoctorID) {
			continue
		}
		if doctorID != uuid.Nil && dh.DoctorID != doctorID {
			continue
		}
		cp := *dh
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) DeleteHospitalAssignment(ctx context.Context, id uuid.UUID) error {
	delete(m.hospitals, id)
	return nil
}

func (m *mockRepo) CreateDepartmentAssignment(ctx context.Context, dd *DoctorDepartment) error {
	if dd.ID == uuid.Nil {
		dd.ID = uuid.New()
	}
	dd.CreatedAt = time.Now()
	cp := *dd
	m.departments[dd.ID] = &cp
	return nil
}

func (m *mockRepo) ListDepartmentAssignments(ctx context.Context, a *authz.Actor, doctorID uuid.UUID, limit, offset int) ([]*DoctorDepartment, int, error) {
	var out []*DoctorDepartment
	for _, dd := range m.departments {
		if !ownRow(a, dd.DoctorID) {
			continue
		}
		if doctorID != uuid.Nil && dd.DoctorID != doctorID {
			continue
		}
		cp := *dd
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) DeleteDepartmentAssignment(ctx context.Context, id uuid.UUID) error {
	delete(m.departments, id)
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, authz.NewEngine())
}

func ctxFor(a *authz.Actor) context.Context {
	return authz.WithActor(context.Background(), a)
}

func adminActor() *authz.Actor {
	return &authz.Actor{ProfileID: uuid.New(), Role: authz.RoleAdmin}
}

func TestAssignHospital(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	dh := &DoctorHospital{DoctorID: uuid.New(), HospitalID: uuid.New()}
	if err := svc.AssignHospital(ctxFor(adminActor()), dh); err != nil {
		t.Fatalf("AssignHospital: %v", err)
	}
	if len(repo.hospitals) != 1 {
		t.Fatalf("stored %d rows, want 1", len(repo.hospitals))
	}
}

func TestAssignHospital_DoctorDenied(t *testing.T) {
	svc := newTestService(newMockRepo())
	doc := &authz.Actor{ProfileID: uuid.New(), Role: authz.RoleDoctor}

	err := svc.AssignHospital(ctxFor(doc), &DoctorHospital{DoctorID: doc.ProfileID, HospitalID: uuid.New()})
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("doctor self-assign: err = %v, want ErrDenied", err)
	}
}

func TestAssignHospital_DoctorRequired(t *testing.T) {
	svc := newTestService(newMockRepo())
	if err := svc.AssignHospital(ctxFor(adminActor()), &DoctorHospital{HospitalID: uuid.New()}); err == nil {
		t.Fatal("expected error for missing doctor_id")
	}
}

func TestAssignDepartment(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	dd := &DoctorDepartment{DoctorID: uuid.New(), DepartmentID: uuid.New(), HospitalID: uuid.New()}
	if err := svc.AssignDepartment(ctxFor(adminActor()), dd); err != nil {
		t.Fatalf("AssignDepartment: %v", err)
	}

	if err := svc.AssignDepartment(ctxFor(adminActor()), &DoctorDepartment{DoctorID: uuid.New()}); err == nil {
		t.Fatal("expected error for missing department_id")
	}
}

func TestAssignDepartment_SpecialistDenied(t *testing.T) {
	svc := newTestService(newMockRepo())
	spec := &authz.Actor{ProfileID: uuid.New(), Role: authz.RoleSpecialist}

	err := svc.AssignDepartment(ctxFor(spec), &DoctorDepartment{
		DoctorID: uuid.New(), DepartmentID: uuid.New(), HospitalID: uuid.New(),
	})
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("specialist assign: err = %v, want ErrDenied", err)
	}
}

func TestListHospitalAssignments_DoctorSeesOwnOnly(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	admin := adminActor()

	docA := &authz.Actor{ProfileID: uuid.New(), Role: authz.RoleDoctor}
	docB := uuid.New()
	for _, dh := range []*DoctorHospital{
		{DoctorID: docA.ProfileID, HospitalID: uuid.New()},
		{DoctorID: docA.ProfileID, HospitalID: uuid.New()},
		{DoctorID: docB, HospitalID: uuid.New()},
	} {
		if err := svc.AssignHospital(ctxFor(admin), dh); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rows, total, err := svc.ListHospitalAssignments(ctxFor(docA), uuid.Nil, 50, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 || total != 2 {
		t.Errorf("doctor sees %d rows (total %d), want 2", len(rows), total)
	}
	for _, dh := range rows {
		if dh.DoctorID != docA.ProfileID {
			t.Errorf("leaked another doctor's assignment: %s", dh.DoctorID)
		}
	}

	rows, _, err = svc.ListHospitalAssignments(ctxFor(admin), uuid.Nil, 50, 0)
	if err != nil {
		t.Fatalf("admin List: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("admin sees %d rows, want 3", len(rows))
	}
}

func TestListHospitalAssignments_FilterByDoctor(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	admin := adminActor()

	target := uuid.New()
	for _, dh := range []*DoctorHospital{
		{DoctorID: target, HospitalID: uuid.New()},
		{DoctorID: uuid.New(), HospitalID: uuid.New()},
	} {
		if err := svc.AssignHospital(ctxFor(admin), dh); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rows, total, err := svc.ListHospitalAssignments(ctxFor(admin), target, 50, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || total != 1 {
		t.Errorf("filtered list: %d rows (total %d), want 1", len(rows), total)
	}
}

func TestListDepartmentAssignments_PatientSeesNothing(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	admin := adminActor()

	if err := svc.AssignDepartment(ctxFor(admin), &DoctorDepartment{
		DoctorID: uuid.New(), DepartmentID: uuid.New(), HospitalID: uuid.New(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pat := &authz.Actor{ProfileID: uuid.New(), Role: authz.RolePatient}
	rows, total, err := svc.ListDepartmentAssignments(ctxFor(pat), uuid.Nil, 50, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 0 || total != 0 {
		t.Errorf("patient sees %d rows, want 0", len(rows))
	}
}

func TestUnassignHospital_AdminOnly(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	admin := adminActor()

	dh := &DoctorHospital{DoctorID: uuid.New(), HospitalID: uuid.New()}
	if err := svc.AssignHospital(ctxFor(admin), dh); err != nil {
		t.Fatalf("seed: %v", err)
	}

	doc := &authz.Actor{ProfileID: dh.DoctorID, Role: authz.RoleDoctor}
	if err := svc.UnassignHospital(ctxFor(doc), dh.ID); !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("doctor unassign: err = %v, want ErrDenied", err)
	}
	if err := svc.UnassignHospital(ctxFor(admin), dh.ID); err != nil {
		t.Fatalf("admin unassign: %v", err)
	}
	if len(repo.hospitals) != 0 {
		t.Error("row not deleted")
	}
}

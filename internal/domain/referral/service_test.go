package referral

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carebridge/carebridge/internal/platform/authz"
	"github.com/carebridge/carebridge/pkg/identifier"
)

type mockRepo struct {
	referrals   map[uuid.UUID]*Referral
	histories   map[uuid.UUID][]*StatusHistory
	failCreates int
	attempts    int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		referrals: make(map[uuid.UUID]*Referral),
		histories: make(map[uuid.UUID][]*StatusHistory),
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// visible mirrors the SQL predicate the policy engine renders for the
// referrals table.
func visible(a *authz.Actor, ref *Referral) bool {
	if a == nil {
		return false
	}
	if a.Role == authz.RoleAdmin {
		return true
	}
	if ref.ReferringDoctorID == a.ProfileID {
		return true
	}
	if ref.TargetSpecialistID != nil && *ref.TargetSpecialistID == a.ProfileID {
		return true
	}
	if a.Role == authz.RoleSpecialist && a.HospitalID != nil && *a.HospitalID == ref.TargetHospitalID {
		return true
	}
	return false
}

func (m *mockRepo) Create(ctx context.Context, ref *Referral) error {
	m.attempts++
	if m.failCreates > 0 {
		m.failCreates--
		return uniqueViolation("referrals_referral_id_key")
	}
	for _, existing := range m.referrals {
		if existing.ReferralID == ref.ReferralID {
			return uniqueViolation("referrals_referral_id_key")
		}
	}
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	stored := *ref
	m.referrals[ref.ID] = &stored
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, a *authz.Actor, id uuid.UUID) (*Referral, error) {
	ref, ok := m.referrals[id]
	if !ok || !visible(a, ref) {
		return nil, pgx.ErrNoRows
	}
	cp := *ref
	return &cp, nil
}

func (m *mockRepo) List(ctx context.Context, a *authz.Actor, f ListFilter, limit, offset int) ([]*Referral, int, error) {
	var out []*Referral
	for _, ref := range m.referrals {
		if !visible(a, ref) {
			continue
		}
		if f.Status != "" && ref.Status != f.Status {
			continue
		}
		if f.Urgency != "" && ref.Urgency != f.Urgency {
			continue
		}
		if f.PatientID != uuid.Nil && ref.PatientID != f.PatientID {
			continue
		}
		cp := *ref
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) Update(ctx context.Context, ref *Referral) error {
	if _, ok := m.referrals[ref.ID]; !ok {
		return pgx.ErrNoRows
	}
	stored := *ref
	m.referrals[ref.ID] = &stored
	return nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, appointment *time.Time) error {
	ref, ok := m.referrals[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ref.Status = status
	if appointment != nil {
		ref.AppointmentDate = appointment
	}
	return nil
}

func (m *mockRepo) AddStatusHistory(ctx context.Context, sh *StatusHistory) error {
	if sh.ID == uuid.Nil {
		sh.ID = uuid.New()
	}
	sh.ChangedAt = time.Now()
	cp := *sh
	m.histories[sh.ReferralID] = append(m.histories[sh.ReferralID], &cp)
	return nil
}

func (m *mockRepo) GetStatusHistory(ctx context.Context, referralID uuid.UUID) ([]*StatusHistory, error) {
	return m.histories[referralID], nil
}

type captureSink struct {
	created []string
	changed []string
}

func (s *captureSink) ReferralCreated(ref *Referral) {
	s.created = append(s.created, ref.ReferralID)
}

func (s *captureSink) ReferralStatusChanged(ref *Referral, fromStatus string) {
	s.changed = append(s.changed, fromStatus+">"+ref.Status)
}

func newTestService(repo Repository) *Service {
	return NewService(repo, authz.NewEngine(), nil)
}

func ctxFor(a *authz.Actor) context.Context {
	return authz.WithActor(context.Background(), a)
}

func doctorAt(hospitalID uuid.UUID) *authz.Actor {
	return &authz.Actor{ProfileID: uuid.New(), Role: authz.RoleDoctor, HospitalID: &hospitalID}
}

func specialistAt(hospitalID uuid.UUID) *authz.Actor {
	return &authz.Actor{ProfileID: uuid.New(), Role: authz.RoleSpecialist, HospitalID: &hospitalID}
}

func draft(doctorID, originHospital, targetHospital uuid.UUID) *Referral {
	return &Referral{
		PatientID:          uuid.New(),
		ReferringDoctorID:  doctorID,
		OriginHospitalID:   originHospital,
		TargetHospitalID:   targetHospital,
		TargetDepartmentID: uuid.New(),
		Urgency:            UrgencyHigh,
		Reason:             "cardiology consult",
	}
}

func TestCreateReferral(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA, hospitalB := uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !identifier.IsReferral(ref.ReferralID) {
		t.Errorf("generated referral_id %q does not match the expected format", ref.ReferralID)
	}
	if ref.Status != StatusPending {
		t.Errorf("status = %s, want %s", ref.Status, StatusPending)
	}
	if len(repo.referrals) != 1 {
		t.Fatalf("stored %d referrals, want 1", len(repo.referrals))
	}
}

func TestCreateReferral_DefaultsReferrerToCaller(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA := uuid.New()
	doc := doctorAt(hospitalA)

	ref := draft(uuid.Nil, uuid.Nil, uuid.New())
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ref.ReferringDoctorID != doc.ProfileID {
		t.Errorf("referring_doctor_id = %s, want caller %s", ref.ReferringDoctorID, doc.ProfileID)
	}
	if ref.OriginHospitalID != hospitalA {
		t.Errorf("origin_hospital_id = %s, want caller's hospital %s", ref.OriginHospitalID, hospitalA)
	}
}

func TestCreateReferral_RejectsOtherReferrer(t *testing.T) {
	svc := newTestService(newMockRepo())
	doc := doctorAt(uuid.New())

	ref := draft(uuid.New(), *doc.HospitalID, uuid.New())
	err := svc.Create(ctxFor(doc), ref)
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("filing on behalf of another doctor: err = %v, want ErrDenied", err)
	}
}

func TestCreateReferral_PatientRoleDenied(t *testing.T) {
	svc := newTestService(newMockRepo())
	pat := &authz.Actor{ProfileID: uuid.New(), Role: authz.RolePatient}

	err := svc.Create(ctxFor(pat), draft(pat.ProfileID, uuid.New(), uuid.New()))
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("patient-role create: err = %v, want ErrDenied", err)
	}
}

func TestCreateReferral_UnauthenticatedDenied(t *testing.T) {
	svc := newTestService(newMockRepo())
	err := svc.Create(context.Background(), draft(uuid.New(), uuid.New(), uuid.New()))
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("unauthenticated create: err = %v, want ErrDenied", err)
	}
}

func TestCreateReferral_StatusForcedToPending(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	doc := doctorAt(uuid.New())

	ref := draft(doc.ProfileID, *doc.HospitalID, uuid.New())
	ref.Status = StatusCompleted
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, stored := range repo.referrals {
		if stored.Status != StatusPending {
			t.Errorf("stored status = %s, want %s", stored.Status, StatusPending)
		}
	}
}

func TestCreateReferral_DefaultUrgency(t *testing.T) {
	svc := newTestService(newMockRepo())
	doc := doctorAt(uuid.New())

	ref := draft(doc.ProfileID, *doc.HospitalID, uuid.New())
	ref.Urgency = ""
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ref.Urgency != UrgencyMedium {
		t.Errorf("urgency = %s, want default %s", ref.Urgency, UrgencyMedium)
	}
}

func TestCreateReferral_InvalidUrgency(t *testing.T) {
	svc := newTestService(newMockRepo())
	doc := doctorAt(uuid.New())

	ref := draft(doc.ProfileID, *doc.HospitalID, uuid.New())
	ref.Urgency = "immediately"
	err := svc.Create(ctxFor(doc), ref)
	if err == nil || !strings.Contains(err.Error(), "invalid urgency") {
		t.Fatalf("err = %v, want invalid urgency", err)
	}
}

func TestCreateReferral_MissingReason(t *testing.T) {
	svc := newTestService(newMockRepo())
	doc := doctorAt(uuid.New())

	ref := draft(doc.ProfileID, *doc.HospitalID, uuid.New())
	ref.Reason = ""
	if err := svc.Create(ctxFor(doc), ref); err == nil {
		t.Fatal("expected error for missing reason")
	}
}

func TestCreateReferral_RetriesOnCollision(t *testing.T) {
	repo := newMockRepo()
	repo.failCreates = 2
	svc := newTestService(repo)
	doc := doctorAt(uuid.New())

	if err := svc.Create(ctxFor(doc), draft(doc.ProfileID, *doc.HospitalID, uuid.New())); err != nil {
		t.Fatalf("Create after collisions: %v", err)
	}
	if repo.attempts != 3 {
		t.Errorf("attempts = %d, want 3", repo.attempts)
	}
}

func TestCreateReferral_SuppliedIdentifierNormalized(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	doc := doctorAt(uuid.New())

	ref := draft(doc.ProfileID, *doc.HospitalID, uuid.New())
	ref.ReferralID = "ref-2025-000777"
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ref.ReferralID != "REF-2025-000777" {
		t.Errorf("referral_id = %q, want normalized REF-2025-000777", ref.ReferralID)
	}
}

func TestCreateReferral_SuppliedIdentifierConflict(t *testing.T) {
	repo := newMockRepo()
	existing := uuid.New()
	repo.referrals[existing] = &Referral{ID: existing, ReferralID: "REF-2025-000777"}
	svc := newTestService(repo)
	doc := doctorAt(uuid.New())

	ref := draft(doc.ProfileID, *doc.HospitalID, uuid.New())
	ref.ReferralID = "REF-2025-000777"
	err := svc.Create(ctxFor(doc), ref)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("err = %v, want already-exists error", err)
	}
	// A caller-supplied identifier is never silently regenerated.
	if repo.attempts != 1 {
		t.Errorf("attempts = %d, want 1", repo.attempts)
	}
}

func TestCreateReferral_EventSinkNotified(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	sink := &captureSink{}
	svc.SetEventSink(sink)
	doc := doctorAt(uuid.New())

	ref := draft(doc.ProfileID, *doc.HospitalID, uuid.New())
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(sink.created) != 1 || sink.created[0] != ref.ReferralID {
		t.Errorf("sink.created = %v, want [%s]", sink.created, ref.ReferralID)
	}
}

func TestUpdateReferral_AssignedSpecialist(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA, hospitalB := uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)
	spec := specialistAt(hospitalB)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}

	notes := "reviewed, booking next week"
	upd := &Referral{
		ID:                 ref.ID,
		TargetSpecialistID: &spec.ProfileID,
		Urgency:            UrgencyCritical,
		SpecialistNotes:    &notes,
	}
	if err := svc.Update(ctxFor(spec), upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.ReferralID != ref.ReferralID {
		t.Errorf("referral_id changed on update: %q -> %q", ref.ReferralID, upd.ReferralID)
	}
	if upd.Status != StatusPending {
		t.Errorf("status changed on update: %s", upd.Status)
	}
	if upd.ReferringDoctorID != doc.ProfileID || upd.PatientID != ref.PatientID {
		t.Error("identity columns must survive update")
	}
	if upd.Urgency != UrgencyCritical {
		t.Errorf("urgency = %s, want %s", upd.Urgency, UrgencyCritical)
	}
}

func TestUpdateReferral_TargetHospitalSpecialist(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA, hospitalB := uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Unassigned specialist at the target hospital may triage the referral.
	spec := specialistAt(hospitalB)
	upd := &Referral{ID: ref.ID, TargetSpecialistID: &spec.ProfileID}
	if err := svc.Update(ctxFor(spec), upd); err != nil {
		t.Fatalf("target-hospital specialist update: %v", err)
	}
}

func TestUpdateReferral_ReferringDoctorDenied(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA, hospitalB := uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The referring doctor can read the row but holds no update grant.
	err := svc.Update(ctxFor(doc), &Referral{ID: ref.ID, Urgency: UrgencyLow})
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("referring doctor update: err = %v, want ErrDenied", err)
	}
}

func TestUpdateReferral_UnrelatedSpecialistHidden(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA, hospitalB, hospitalC := uuid.New(), uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A specialist at an unrelated hospital cannot even see the row, so the
	// failure reads as not-found rather than forbidden.
	other := specialistAt(hospitalC)
	err := svc.Update(ctxFor(other), &Referral{ID: ref.ID, Urgency: UrgencyLow})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, authz.ErrDenied) {
		t.Fatalf("hidden rows must look absent, not forbidden: %v", err)
	}
}

func TestUpdateStatus_Workflow(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA, hospitalB := uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)
	spec := specialistAt(hospitalB)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}

	appt := time.Now().Add(72 * time.Hour).UTC()
	if err := svc.UpdateStatus(ctxFor(spec), ref.ID, StatusInProgress, &appt); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	stored := repo.referrals[ref.ID]
	if stored.Status != StatusInProgress {
		t.Errorf("status = %s, want %s", stored.Status, StatusInProgress)
	}
	if stored.AppointmentDate == nil || !stored.AppointmentDate.Equal(appt) {
		t.Errorf("appointment_date = %v, want %v", stored.AppointmentDate, appt)
	}

	history := repo.histories[ref.ID]
	if len(history) != 1 {
		t.Fatalf("history rows = %d, want 1", len(history))
	}
	h := history[0]
	if h.FromStatus != StatusPending || h.ToStatus != StatusInProgress {
		t.Errorf("history transition %s->%s, want %s->%s", h.FromStatus, h.ToStatus, StatusPending, StatusInProgress)
	}
	if h.ChangedBy == nil || *h.ChangedBy != spec.ProfileID {
		t.Errorf("changed_by = %v, want %s", h.ChangedBy, spec.ProfileID)
	}
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA, hospitalB := uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)
	spec := specialistAt(hospitalB)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := svc.UpdateStatus(ctxFor(spec), ref.ID, StatusCompleted, nil)
	if err == nil || !strings.Contains(err.Error(), "cannot transition") {
		t.Fatalf("pending->completed: err = %v, want transition error", err)
	}
	if len(repo.histories[ref.ID]) != 0 {
		t.Error("rejected transition must not record history")
	}
}

func TestUpdateStatus_TerminalStateImmutable(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA, hospitalB := uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)
	spec := specialistAt(hospitalB)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, next := range []string{StatusInProgress, StatusCompleted} {
		if err := svc.UpdateStatus(ctxFor(spec), ref.ID, next, nil); err != nil {
			t.Fatalf("UpdateStatus(%s): %v", next, err)
		}
	}

	for _, next := range []string{StatusPending, StatusInProgress, StatusCancelled} {
		if err := svc.UpdateStatus(ctxFor(spec), ref.ID, next, nil); err == nil {
			t.Errorf("completed->%s succeeded, want error", next)
		}
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	svc := newTestService(newMockRepo())
	spec := specialistAt(uuid.New())

	err := svc.UpdateStatus(ctxFor(spec), uuid.New(), "archived", nil)
	if err == nil || !strings.Contains(err.Error(), "invalid status") {
		t.Fatalf("err = %v, want invalid status", err)
	}
}

func TestUpdateStatus_EventSinkNotified(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	sink := &captureSink{}
	svc.SetEventSink(sink)
	hospitalA, hospitalB := uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)
	spec := specialistAt(hospitalB)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.UpdateStatus(ctxFor(spec), ref.ID, StatusInProgress, nil); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	want := StatusPending + ">" + StatusInProgress
	if len(sink.changed) != 1 || sink.changed[0] != want {
		t.Errorf("sink.changed = %v, want [%s]", sink.changed, want)
	}
}

func TestGetStatusHistory_InheritsVisibility(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA, hospitalB := uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)
	spec := specialistAt(hospitalB)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.UpdateStatus(ctxFor(spec), ref.ID, StatusInProgress, nil); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	history, err := svc.GetStatusHistory(ctxFor(doc), ref.ID)
	if err != nil {
		t.Fatalf("referring doctor history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history rows = %d, want 1", len(history))
	}

	outsider := doctorAt(uuid.New())
	if _, err := svc.GetStatusHistory(ctxFor(outsider), ref.ID); err == nil {
		t.Error("outsider must not read history of an invisible referral")
	}
}

func TestReferralVisibility(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA, hospitalB, hospitalC := uuid.New(), uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)
	assigned := specialistAt(hospitalB)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Update(ctxFor(assigned), &Referral{
		ID:                 ref.ID,
		TargetSpecialistID: &assigned.ProfileID,
	}); err != nil {
		t.Fatalf("assign specialist: %v", err)
	}

	callers := []struct {
		name  string
		actor *authz.Actor
		want  int
	}{
		{"admin", &authz.Actor{ProfileID: uuid.New(), Role: authz.RoleAdmin}, 1},
		{"referring doctor", doc, 1},
		{"assigned specialist", assigned, 1},
		{"other specialist at target hospital", specialistAt(hospitalB), 1},
		{"specialist elsewhere", specialistAt(hospitalC), 0},
		{"other doctor", doctorAt(hospitalA), 0},
		{"patient role", &authz.Actor{ProfileID: uuid.New(), Role: authz.RolePatient}, 0},
		{"unauthenticated", nil, 0},
	}
	for _, tc := range callers {
		refs, total, err := svc.List(ctxFor(tc.actor), ListFilter{}, 50, 0)
		if err != nil {
			t.Fatalf("%s: List: %v", tc.name, err)
		}
		if len(refs) != tc.want || total != tc.want {
			t.Errorf("%s sees %d referrals (total %d), want %d", tc.name, len(refs), total, tc.want)
		}
	}
}

func TestReferralLifecycle(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	hospitalA, hospitalB := uuid.New(), uuid.New()
	doc := doctorAt(hospitalA)
	spec := specialistAt(hospitalB)

	ref := draft(doc.ProfileID, hospitalA, hospitalB)
	if err := svc.Create(ctxFor(doc), ref); err != nil {
		t.Fatalf("file referral: %v", err)
	}

	// Specialist triages: takes the case and books an appointment.
	if err := svc.Update(ctxFor(spec), &Referral{
		ID:                 ref.ID,
		TargetSpecialistID: &spec.ProfileID,
	}); err != nil {
		t.Fatalf("triage: %v", err)
	}
	appt := time.Now().Add(48 * time.Hour).UTC()
	if err := svc.UpdateStatus(ctxFor(spec), ref.ID, StatusInProgress, &appt); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := svc.UpdateStatus(ctxFor(spec), ref.ID, StatusCompleted, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	history, err := svc.GetStatusHistory(ctxFor(doc), ref.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history rows = %d, want 2", len(history))
	}
	if history[0].ToStatus != StatusInProgress || history[1].ToStatus != StatusCompleted {
		t.Errorf("history order wrong: %s then %s", history[0].ToStatus, history[1].ToStatus)
	}

	final, err := svc.Get(ctxFor(doc), ref.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Status != StatusCompleted {
		t.Errorf("final status = %s, want %s", final.Status, StatusCompleted)
	}
	if final.AppointmentDate == nil {
		t.Error("appointment date lost during lifecycle")
	}
}

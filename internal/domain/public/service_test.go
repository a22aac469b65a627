package public

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type mockRepo struct {
	views   map[string]*ReferralView
	queries int
}

func newMockRepo() *mockRepo {
	return &mockRepo{views: make(map[string]*ReferralView)}
}

func (m *mockRepo) GetByReferralID(ctx context.Context, referralID string) (*ReferralView, error) {
	m.queries++
	v, ok := m.views[referralID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *v
	return &cp, nil
}

func sampleView() *ReferralView {
	notes := "bring prior imaging"
	specialist := "Dr. Asha Rao"
	desc := "interventional cardiology"
	appt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return &ReferralView{
		ReferralID:       "REF-2025-000123",
		Status:           "pending",
		Urgency:          "high",
		Reason:           "suspected arrhythmia",
		Notes:            &notes,
		AppointmentDate:  &appt,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
		PatientName:      "Rohan Mehta",
		PatientID:        "PAT-2025-000042",
		ReferringDoctor:  "Dr. Kavya Iyer",
		TargetSpecialist: &specialist,
		OriginHospital:   HospitalView{Name: "City General", City: "Pune", State: "MH"},
		TargetHospital:   HospitalView{Name: "Heart Institute", City: "Mumbai", State: "MH"},
		TargetDepartment: DepartmentView{Name: "Cardiology", Description: &desc},
	}
}

func TestTrack(t *testing.T) {
	repo := newMockRepo()
	repo.views["REF-2025-000123"] = sampleView()
	svc := NewService(repo)

	view, err := svc.Track(context.Background(), "REF-2025-000123")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if view == nil {
		t.Fatal("view is nil for a known identifier")
	}
	if view.PatientID != "PAT-2025-000042" || view.TargetHospital.Name != "Heart Institute" {
		t.Errorf("projection incomplete: %+v", view)
	}
}

func TestTrack_CaseInsensitive(t *testing.T) {
	repo := newMockRepo()
	repo.views["REF-2025-000123"] = sampleView()
	svc := NewService(repo)

	for _, raw := range []string{"ref-2025-000123", "Ref-2025-000123", "  REF-2025-000123  "} {
		view, err := svc.Track(context.Background(), raw)
		if err != nil {
			t.Fatalf("Track(%q): %v", raw, err)
		}
		if view == nil {
			t.Errorf("Track(%q) missed; lookups must be case-insensitive", raw)
		}
	}
}

func TestTrack_UnknownID(t *testing.T) {
	svc := NewService(newMockRepo())

	view, err := svc.Track(context.Background(), "REF-2025-999999")
	if err != nil {
		t.Fatalf("a well-formed unmatched id must not error: %v", err)
	}
	if view != nil {
		t.Fatal("view for unknown identifier")
	}
}

func TestTrack_MalformedID(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	for _, raw := range []string{"", "REF-25-1", "PAT-2025-000042", "'; DROP TABLE referrals"} {
		view, err := svc.Track(context.Background(), raw)
		if err != nil {
			t.Fatalf("Track(%q): %v", raw, err)
		}
		if view != nil {
			t.Errorf("Track(%q) returned a view", raw)
		}
	}
	if repo.queries != 0 {
		t.Errorf("malformed identifiers reached the database %d times", repo.queries)
	}
}

func TestReferralView_ExcludesSpecialistNotes(t *testing.T) {
	raw, err := json.Marshal(sampleView())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	if strings.Contains(body, "specialist_notes") {
		t.Fatal("public projection leaked specialist_notes")
	}
	for _, key := range []string{
		"referral_id", "status", "urgency", "patient_name", "patient_id",
		"referring_doctor", "target_specialist", "origin_hospital",
		"target_hospital", "target_department",
	} {
		if !strings.Contains(body, `"`+key+`"`) {
			t.Errorf("projection missing %s", key)
		}
	}
}

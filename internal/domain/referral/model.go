package referral

import (
	"time"

	"github.com/google/uuid"
)

// Referral statuses. A referral starts pending and moves forward through
// the transition table below; completed and cancelled are terminal.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Urgency levels.
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

var validStatuses = map[string]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

var validUrgencies = map[string]bool{
	UrgencyLow:      true,
	UrgencyMedium:   true,
	UrgencyHigh:     true,
	UrgencyCritical: true,
}

var transitions = map[string][]string{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a referral in status from may move to.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Referral maps to the referrals table. ReferralID is the human-facing
// business identifier (REF-YYYY-NNNNNN), assigned once at creation. The
// referring doctor, patient, origin hospital and target links are fixed at
// creation; triage assigns the target specialist and advances the status.
type Referral struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ReferralID         string     `db:"referral_id" json:"referral_id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	ReferringDoctorID  uuid.UUID  `db:"referring_doctor_id" json:"referring_doctor_id"`
	TargetSpecialistID *uuid.UUID `db:"target_specialist_id" json:"target_specialist_id,omitempty"`
	OriginHospitalID   uuid.UUID  `db:"origin_hospital_id" json:"origin_hospital_id"`
	TargetHospitalID   uuid.UUID  `db:"target_hospital_id" json:"target_hospital_id"`
	TargetDepartmentID uuid.UUID  `db:"target_department_id" json:"target_department_id"`
	Status             string     `db:"status" json:"status"`
	Urgency            string     `db:"urgency" json:"urgency"`
	Reason             string     `db:"reason" json:"reason"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	SpecialistNotes    *string    `db:"specialist_notes" json:"specialist_notes,omitempty"`
	AppointmentDate    *time.Time `db:"appointment_date" json:"appointment_date,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusHistory records one status transition of a referral.
type StatusHistory struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ReferralID uuid.UUID  `db:"referral_id" json:"referral_id"`
	FromStatus string     `db:"from_status" json:"from_status"`
	ToStatus   string     `db:"to_status" json:"to_status"`
	ChangedBy  *uuid.UUID `db:"changed_by" json:"changed_by,omitempty"`
	ChangedAt  time.Time  `db:"changed_at" json:"changed_at"`
}

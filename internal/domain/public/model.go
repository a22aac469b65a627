// Package public serves the unauthenticated referral tracking lookup. It is
// the single sanctioned bypass of the visibility policy: lookups run with
// the service's own database rights and no actor, and safety rests entirely
// on the fixed projection below never growing a sensitive column.
package public

import "time"

// HospitalView is the public slice of a hospital row.
type HospitalView struct {
	Name  string `json:"name"`
	City  string `json:"city"`
	State string `json:"state"`
}

// DepartmentView is the public slice of a department row.
type DepartmentView struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// ReferralView is the fixed projection returned to anonymous callers. The
// field list is the entire public surface: specialist_notes, patient
// demographics beyond the display name, and every other clinical column
// stay out.
type ReferralView struct {
	ReferralID      string     `json:"referral_id"`
	Status          string     `json:"status"`
	Urgency         string     `json:"urgency"`
	Reason          string     `json:"reason"`
	Notes           *string    `json:"notes"`
	AppointmentDate *time.Time `json:"appointment_date"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	PatientName      string  `json:"patient_name"`
	PatientID        string  `json:"patient_id"`
	ReferringDoctor  string  `json:"referring_doctor"`
	TargetSpecialist *string `json:"target_specialist"`

	OriginHospital   HospitalView   `json:"origin_hospital"`
	TargetHospital   HospitalView   `json:"target_hospital"`
	TargetDepartment DepartmentView `json:"target_department"`
}

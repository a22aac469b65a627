// Package assignment manages the doctor-to-hospital and doctor-to-department
// junction rows. Assignments are administrative facts: only admins write
// them, and a doctor only ever reads their own rows.
package assignment

import (
	"time"

	"github.com/google/uuid"
)

// DoctorHospital links a doctor profile to a hospital. A given
// (doctor, hospital) pair appears at most once.
type DoctorHospital struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DoctorID   uuid.UUID `db:"doctor_id" json:"doctor_id"`
	HospitalID uuid.UUID `db:"hospital_id" json:"hospital_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DoctorDepartment links a doctor profile to a department within a hospital.
// The hospital column must match the department's own hospital; the composite
// foreign key on (department_id, hospital_id) enforces that at the storage
// layer, so an inconsistent pair never persists.
type DoctorDepartment struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DoctorID     uuid.UUID `db:"doctor_id" json:"doctor_id"`
	DepartmentID uuid.UUID `db:"department_id" json:"department_id"`
	HospitalID   uuid.UUID `db:"hospital_id" json:"hospital_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

package profile

import (
	"time"

	"github.com/google/uuid"
)

// Profile maps to the profiles table. The primary key equals the external
// identity provider's subject, one row per identity. Role is the single
// authority for what the caller may see and do; it is written only at
// provisioning time and through the admin role-change channel.
type Profile struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	FullName       string     `db:"full_name" json:"full_name"`
	Role           string     `db:"role" json:"role"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	HospitalID     *uuid.UUID `db:"hospital_id" json:"hospital_id,omitempty"`
	DepartmentID   *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	LicenseNumber  *string    `db:"license_number" json:"license_number,omitempty"`
	Specialization *string    `db:"specialization" json:"specialization,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

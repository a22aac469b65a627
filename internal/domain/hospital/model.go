package hospital

import (
	"time"

	"github.com/google/uuid"
)

// Hospital maps to the hospitals table.
type Hospital struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	City      string    `db:"city" json:"city"`
	State     string    `db:"state" json:"state"`
	Phone     string    `db:"phone" json:"phone"`
	Email     *string   `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Department maps to the departments table. Every department belongs to
// exactly one hospital; HeadDoctorID is a weak reference enforced only as
// a foreign key, not as a role check.
type Department struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	HospitalID   uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	Name         string     `db:"name" json:"name"`
	Description  *string    `db:"description" json:"description,omitempty"`
	HeadDoctorID *uuid.UUID `db:"head_doctor_id" json:"head_doctor_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

package assignment

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/platform/authz"
)

// Repository persists assignment rows. List reads carry the caller's
// visibility predicate: doctors resolve only their own rows, admins resolve
// everything. doctorID narrows a list further when non-nil-UUID.
type Repository interface {
	CreateHospitalAssignment(ctx context.Context, dh *DoctorHospital) error
	ListHospitalAssignments(ctx context.Context, a *authz.Actor, doctorID uuid.UUID, limit, offset int) ([]*DoctorHospital, int, error)
	DeleteHospitalAssignment(ctx context.Context, id uuid.UUID) error

	CreateDepartmentAssignment(ctx context.Context, dd *DoctorDepartment) error
	ListDepartmentAssignments(ctx context.Context, a *authz.Actor, doctorID uuid.UUID, limit, offset int) ([]*DoctorDepartment, int, error)
	DeleteDepartmentAssignment(ctx context.Context, id uuid.UUID) error
}

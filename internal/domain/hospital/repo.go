package hospital

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/platform/authz"
)

// Repository persists hospitals and departments. Read methods take the
// resolved actor and return only the rows the caller's visibility
// predicate admits; a hidden row is indistinguishable from an absent one.
type Repository interface {
	CreateHospital(ctx context.Context, h *Hospital) error
	GetHospital(ctx context.Context, a *authz.Actor, id uuid.UUID) (*Hospital, error)
	ListHospitals(ctx context.Context, a *authz.Actor, limit, offset int) ([]*Hospital, int, error)
	UpdateHospital(ctx context.Context, h *Hospital) error
	DeleteHospital(ctx context.Context, id uuid.UUID) error

	CreateDepartment(ctx context.Context, d *Department) error
	GetDepartment(ctx context.Context, a *authz.Actor, id uuid.UUID) (*Department, error)
	ListDepartments(ctx context.Context, a *authz.Actor, hospitalID uuid.UUID, limit, offset int) ([]*Department, int, error)
	UpdateDepartment(ctx context.Context, d *Department) error
	DeleteDepartment(ctx context.Context, id uuid.UUID) error
}

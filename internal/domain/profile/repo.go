package profile

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/platform/authz"
)

// Repository persists profiles. Reads are visibility-filtered: non-admin
// callers resolve only their own row. Update never writes the role column;
// UpdateRole is the single channel that does.
type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, a *authz.Actor, id uuid.UUID) (*Profile, error)
	List(ctx context.Context, a *authz.Actor, limit, offset int) ([]*Profile, int, error)
	Update(ctx context.Context, p *Profile) error
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

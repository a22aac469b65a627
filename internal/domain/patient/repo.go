package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/platform/authz"
)

// Repository persists patients. Read methods apply the caller's visibility
// predicate: clinical staff resolve only patients of their own hospital,
// admins resolve all. Create surfaces the unique violation on patient_id
// unchanged so the service can regenerate and retry.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, a *authz.Actor, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, a *authz.Actor, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, a *authz.Actor, query string, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
}

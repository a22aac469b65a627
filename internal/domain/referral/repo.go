package referral

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/platform/authz"
)

// ListFilter narrows a referral listing. Zero values mean no filter; the
// caller's visibility predicate always applies on top.
type ListFilter struct {
	Status    string
	Urgency   string
	PatientID uuid.UUID
}

// Repository persists referrals and their status history. Reads resolve
// only rows the caller's visibility predicate admits. Create surfaces the
// unique violation on referral_id unchanged so the service can regenerate
// and retry.
type Repository interface {
	Create(ctx context.Context, ref *Referral) error
	GetByID(ctx context.Context, a *authz.Actor, id uuid.UUID) (*Referral, error)
	List(ctx context.Context, a *authz.Actor, f ListFilter, limit, offset int) ([]*Referral, int, error)
	Update(ctx context.Context, ref *Referral) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, appointment *time.Time) error

	AddStatusHistory(ctx context.Context, sh *StatusHistory) error
	GetStatusHistory(ctx context.Context, referralID uuid.UUID) ([]*StatusHistory, error)
}

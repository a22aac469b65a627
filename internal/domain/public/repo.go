package public

import "context"

// Repository resolves a referral identifier to its public projection.
// Implementations take no actor and apply no visibility filter.
type Repository interface {
	GetByReferralID(ctx context.Context, referralID string) (*ReferralView, error)
}

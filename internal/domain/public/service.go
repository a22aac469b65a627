package public

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/carebridge/carebridge/internal/platform/metrics"
	"github.com/carebridge/carebridge/pkg/identifier"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Track resolves a referral identifier to its public projection. Lookups
// are case-insensitive. An unknown or malformed identifier yields a nil
// view with no error, so a caller probing identifiers cannot tell a wrong
// ID from a hidden one.
func (s *Service) Track(ctx context.Context, referralID string) (*ReferralView, error) {
	id := identifier.Normalize(referralID)
	if !identifier.IsReferral(id) {
		metrics.RecordPublicLookup(false)
		return nil, nil
	}

	view, err := s.repo.GetByReferralID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.RecordPublicLookup(false)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordPublicLookup(true)
	return view, nil
}

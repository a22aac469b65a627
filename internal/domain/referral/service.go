package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/carebridge/internal/platform/authz"
	"github.com/carebridge/carebridge/internal/platform/db"
	"github.com/carebridge/carebridge/internal/platform/metrics"
	"github.com/carebridge/carebridge/pkg/identifier"
)

// EventSink receives referral lifecycle events after the transaction that
// produced them has committed.
type EventSink interface {
	ReferralCreated(ref *Referral)
	ReferralStatusChanged(ref *Referral, fromStatus string)
}

type Service struct {
	repo   Repository
	policy *authz.Engine
	pool   *pgxpool.Pool
	ids    *identifier.Generator
	events EventSink
}

func NewService(repo Repository, policy *authz.Engine, pool *pgxpool.Pool) *Service {
	return &Service{repo: repo, policy: policy, pool: pool, ids: identifier.NewGenerator()}
}

// SetEventSink attaches an optional sink for lifecycle events.
func (s *Service) SetEventSink(sink EventSink) {
	s.events = sink
}

func (s *Service) inTx(ctx context.Context, fn func(context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.InTx(ctx, s.pool, fn)
}

// Create files a referral. The referring doctor is always the caller:
// leaving referring_doctor_id empty binds it to the caller's profile, and
// naming anyone else is rejected. Status always starts pending.
func (s *Service) Create(ctx context.Context, ref *Referral) error {
	actor := authz.ActorFromContext(ctx)
	if ref.ReferringDoctorID == uuid.Nil && actor != nil {
		ref.ReferringDoctorID = actor.ProfileID
	}
	if err := s.policy.CanInsertReferral(actor, ref.ReferringDoctorID); err != nil {
		return err
	}
	if ref.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if ref.TargetHospitalID == uuid.Nil {
		return fmt.Errorf("target_hospital_id is required")
	}
	if ref.TargetDepartmentID == uuid.Nil {
		return fmt.Errorf("target_department_id is required")
	}
	if ref.Reason == "" {
		return fmt.Errorf("reason is required")
	}
	if ref.OriginHospitalID == uuid.Nil && actor.HospitalID != nil {
		ref.OriginHospitalID = *actor.HospitalID
	}
	if ref.OriginHospitalID == uuid.Nil {
		return fmt.Errorf("origin_hospital_id is required")
	}
	if ref.Urgency == "" {
		ref.Urgency = UrgencyMedium
	}
	if !validUrgencies[ref.Urgency] {
		return fmt.Errorf("invalid urgency: %s", ref.Urgency)
	}
	ref.Status = StatusPending

	supplied := ref.ReferralID != ""
	if supplied {
		ref.ReferralID = identifier.Normalize(ref.ReferralID)
		if !identifier.IsReferral(ref.ReferralID) {
			return fmt.Errorf("invalid referral_id format: %s", ref.ReferralID)
		}
	}

	for {
		if !supplied {
			ref.ReferralID = s.ids.Next(identifier.ReferralPrefix)
		}
		err := s.inTx(ctx, func(ctx context.Context) error {
			return s.repo.Create(ctx, ref)
		})
		if err == nil {
			break
		}
		if db.IsUniqueViolation(err) && db.ConstraintName(err) == "referrals_referral_id_key" {
			if supplied {
				return fmt.Errorf("referral_id %s already exists", ref.ReferralID)
			}
			metrics.RecordIdentifierCollision(identifier.ReferralPrefix)
			continue
		}
		return err
	}

	metrics.RecordReferralCreated(ref.Urgency)
	if s.events != nil {
		s.events.ReferralCreated(ref)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return s.repo.GetByID(ctx, authz.ActorFromContext(ctx), id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Referral, int, error) {
	return s.repo.List(ctx, authz.ActorFromContext(ctx), f, limit, offset)
}

// Update writes the triage-mutable fields: target specialist, urgency,
// reason, notes, specialist notes and appointment. Update rights belong to
// the assigned target specialist, any specialist at the target hospital,
// and admins; the referring doctor's part ends at creation.
func (s *Service) Update(ctx context.Context, ref *Referral) error {
	actor := authz.ActorFromContext(ctx)
	existing, err := s.repo.GetByID(ctx, actor, ref.ID)
	if err != nil {
		return fmt.Errorf("referral not found: %w", err)
	}
	if err := s.policy.CanUpdateReferral(actor, authz.ReferralFacts{
		TargetSpecialistID: existing.TargetSpecialistID,
		TargetHospitalID:   existing.TargetHospitalID,
	}); err != nil {
		return err
	}
	if ref.Urgency == "" {
		ref.Urgency = existing.Urgency
	}
	if !validUrgencies[ref.Urgency] {
		return fmt.Errorf("invalid urgency: %s", ref.Urgency)
	}
	if ref.Reason == "" {
		ref.Reason = existing.Reason
	}
	ref.ReferralID = existing.ReferralID
	ref.PatientID = existing.PatientID
	ref.ReferringDoctorID = existing.ReferringDoctorID
	ref.OriginHospitalID = existing.OriginHospitalID
	ref.TargetHospitalID = existing.TargetHospitalID
	ref.TargetDepartmentID = existing.TargetDepartmentID
	ref.Status = existing.Status
	ref.CreatedAt = existing.CreatedAt
	return s.repo.Update(ctx, ref)
}

// UpdateStatus advances the referral workflow. The transition table is
// strict: pending moves to in_progress or cancelled, in_progress moves to
// completed or cancelled, and terminal states never move again. The status
// write, the appointment timestamp and the history row commit atomically.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus string, appointment *time.Time) error {
	actor := authz.ActorFromContext(ctx)
	if !validStatuses[newStatus] {
		return fmt.Errorf("invalid status: %s", newStatus)
	}

	ref, err := s.repo.GetByID(ctx, actor, id)
	if err != nil {
		return fmt.Errorf("referral not found: %w", err)
	}
	if err := s.policy.CanUpdateReferral(actor, authz.ReferralFacts{
		TargetSpecialistID: ref.TargetSpecialistID,
		TargetHospitalID:   ref.TargetHospitalID,
	}); err != nil {
		return err
	}
	if !CanTransition(ref.Status, newStatus) {
		return fmt.Errorf("cannot transition from %s to %s", ref.Status, newStatus)
	}

	fromStatus := ref.Status
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, id, newStatus, appointment); err != nil {
			return err
		}
		return s.repo.AddStatusHistory(ctx, &StatusHistory{
			ReferralID: id,
			FromStatus: fromStatus,
			ToStatus:   newStatus,
			ChangedBy:  &actor.ProfileID,
		})
	})
	if err != nil {
		return err
	}

	metrics.RecordReferralStatusChange(fromStatus, newStatus)
	ref.Status = newStatus
	if appointment != nil {
		ref.AppointmentDate = appointment
	}
	if s.events != nil {
		s.events.ReferralStatusChanged(ref, fromStatus)
	}
	return nil
}

// GetStatusHistory returns the transition log of a referral the caller can
// see. History rows inherit the parent referral's visibility.
func (s *Service) GetStatusHistory(ctx context.Context, id uuid.UUID) ([]*StatusHistory, error) {
	if _, err := s.repo.GetByID(ctx, authz.ActorFromContext(ctx), id); err != nil {
		return nil, fmt.Errorf("referral not found: %w", err)
	}
	return s.repo.GetStatusHistory(ctx, id)
}

package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/carebridge/internal/platform/authz"
	"github.com/carebridge/carebridge/internal/platform/db"
	"github.com/carebridge/carebridge/internal/platform/metrics"
	"github.com/carebridge/carebridge/pkg/identifier"
)

type Service struct {
	repo   Repository
	policy *authz.Engine
	pool   *pgxpool.Pool
	ids    *identifier.Generator
}

func NewService(repo Repository, policy *authz.Engine, pool *pgxpool.Pool) *Service {
	return &Service{repo: repo, policy: policy, pool: pool, ids: identifier.NewGenerator()}
}

var validGenders = map[string]bool{
	"male":   true,
	"female": true,
	"other":  true,
}

func (s *Service) inTx(ctx context.Context, fn func(context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.InTx(ctx, s.pool, fn)
}

// Create registers a patient. When the caller did not supply a business
// identifier one is generated; the unique constraint on patient_id is the
// authoritative guard and generation retries until an insert lands.
func (s *Service) Create(ctx context.Context, p *Patient) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourcePatients, authz.OpInsert); err != nil {
		return err
	}
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	if p.HospitalID == nil && actor.HospitalID != nil {
		p.HospitalID = actor.HospitalID
	}

	supplied := p.PatientID != ""
	if supplied {
		p.PatientID = identifier.Normalize(p.PatientID)
		if !identifier.IsPatient(p.PatientID) {
			return fmt.Errorf("invalid patient_id format: %s", p.PatientID)
		}
	}

	for {
		if !supplied {
			p.PatientID = s.ids.Next(identifier.PatientPrefix)
		}
		err := s.inTx(ctx, func(ctx context.Context) error {
			return s.repo.Create(ctx, p)
		})
		if err == nil {
			metrics.RecordPatientRegistered()
			return nil
		}
		if db.IsUniqueViolation(err) && db.ConstraintName(err) == "patients_patient_id_key" {
			if supplied {
				return fmt.Errorf("patient_id %s already exists", p.PatientID)
			}
			metrics.RecordIdentifierCollision(identifier.PatientPrefix)
			continue
		}
		return err
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, authz.ActorFromContext(ctx), id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, authz.ActorFromContext(ctx), limit, offset)
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, authz.ActorFromContext(ctx), query, limit, offset)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourcePatients, authz.OpUpdate); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, actor, p.ID)
	if err != nil {
		return fmt.Errorf("patient not found: %w", err)
	}
	if p.FirstName == "" {
		p.FirstName = existing.FirstName
	}
	if p.LastName == "" {
		p.LastName = existing.LastName
	}
	if p.Gender == "" {
		p.Gender = existing.Gender
	}
	if !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	p.PatientID = existing.PatientID
	p.CreatedAt = existing.CreatedAt
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourcePatients, authz.OpDelete); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, actor, id); err != nil {
		return fmt.Errorf("patient not found: %w", err)
	}
	return s.repo.Delete(ctx, id)
}

package hospital

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/platform/authz"
)

type Service struct {
	repo   Repository
	policy *authz.Engine
}

func NewService(repo Repository, policy *authz.Engine) *Service {
	return &Service{repo: repo, policy: policy}
}

func (s *Service) CreateHospital(ctx context.Context, h *Hospital) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourceHospitals, authz.OpInsert); err != nil {
		return err
	}
	if h.Name == "" {
		return fmt.Errorf("name is required")
	}
	if h.City == "" || h.State == "" {
		return fmt.Errorf("city and state are required")
	}
	return s.repo.CreateHospital(ctx, h)
}

func (s *Service) GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.repo.GetHospital(ctx, authz.ActorFromContext(ctx), id)
}

func (s *Service) ListHospitals(ctx context.Context, limit, offset int) ([]*Hospital, int, error) {
	return s.repo.ListHospitals(ctx, authz.ActorFromContext(ctx), limit, offset)
}

func (s *Service) UpdateHospital(ctx context.Context, h *Hospital) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourceHospitals, authz.OpUpdate); err != nil {
		return err
	}
	if h.Name == "" {
		return fmt.Errorf("name is required")
	}
	existing, err := s.repo.GetHospital(ctx, actor, h.ID)
	if err != nil {
		return fmt.Errorf("hospital not found: %w", err)
	}
	h.CreatedAt = existing.CreatedAt
	return s.repo.UpdateHospital(ctx, h)
}

func (s *Service) DeleteHospital(ctx context.Context, id uuid.UUID) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourceHospitals, authz.OpDelete); err != nil {
		return err
	}
	return s.repo.DeleteHospital(ctx, id)
}

func (s *Service) CreateDepartment(ctx context.Context, d *Department) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourceDepartments, authz.OpInsert); err != nil {
		return err
	}
	if d.HospitalID == uuid.Nil {
		return fmt.Errorf("hospital_id is required")
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.CreateDepartment(ctx, d)
}

func (s *Service) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	return s.repo.GetDepartment(ctx, authz.ActorFromContext(ctx), id)
}

func (s *Service) ListDepartments(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Department, int, error) {
	return s.repo.ListDepartments(ctx, authz.ActorFromContext(ctx), hospitalID, limit, offset)
}

func (s *Service) UpdateDepartment(ctx context.Context, d *Department) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourceDepartments, authz.OpUpdate); err != nil {
		return err
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	existing, err := s.repo.GetDepartment(ctx, actor, d.ID)
	if err != nil {
		return fmt.Errorf("department not found: %w", err)
	}
	// The owning hospital never changes after creation.
	d.HospitalID = existing.HospitalID
	d.CreatedAt = existing.CreatedAt
	return s.repo.UpdateDepartment(ctx, d)
}

func (s *Service) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourceDepartments, authz.OpDelete); err != nil {
		return err
	}
	return s.repo.DeleteDepartment(ctx, id)
}

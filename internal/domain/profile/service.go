package profile

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

// Provision creates a profile row. Admins may provision any identity with
// any role; every other caller provisions exactly their own row, and the
// role always starts as patient. Role upgrades go through ChangeRole.
func (s *Service) Provision(ctx context.Context, callerID uuid.UUID, p *Profile) error {
	actor := authz.ActorFromContext(ctx)
	if actor.IsAdmin() {
		if p.ID == uuid.Nil {
			return fmt.Errorf("id is required")
		}
		if p.Role == "" {
			p.Role = authz.RolePatient
		}
		if !authz.ValidRole(p.Role) {
			return fmt.Errorf("invalid role: %s", p.Role)
		}
	} else {
		p.ID = callerID
		p.Role = authz.RolePatient
	}
	if err := s.policy.CanInsertProfile(actor, callerID, p.ID); err != nil {
		return err
	}
	if p.Email == "" {
		return fmt.Errorf("email is required")
	}
	if p.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.repo.GetByID(ctx, authz.ActorFromContext(ctx), id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Profile, int, error) {
	return s.repo.List(ctx, authz.ActorFromContext(ctx), limit, offset)
}

// Update writes the non-privileged profile fields. The role column is not
// reachable through this path: whatever the request body carried, the
// stored role survives and is echoed back.
func (s *Service) Update(ctx context.Context, p *Profile) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanUpdateProfile(actor, p.ID, false); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, actor, p.ID)
	if err != nil {
		return fmt.Errorf("profile not found: %w", err)
	}
	if p.Email == "" {
		p.Email = existing.Email
	}
	if p.FullName == "" {
		p.FullName = existing.FullName
	}
	p.Role = existing.Role
	p.CreatedAt = existing.CreatedAt
	return s.repo.Update(ctx, p)
}

// ChangeRole is the admin-only channel that writes the role column.
func (s *Service) ChangeRole(ctx context.Context, id uuid.UUID, role string) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanUpdateProfile(actor, id, true); err != nil {
		return err
	}
	if !authz.ValidRole(role) {
		return fmt.Errorf("invalid role: %s", role)
	}
	if _, err := s.repo.GetByID(ctx, actor, id); err != nil {
		return fmt.Errorf("profile not found: %w", err)
	}
	return s.repo.UpdateRole(ctx, id, role)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourceProfiles, authz.OpDelete); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

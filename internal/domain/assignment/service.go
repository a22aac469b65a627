package assignment

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

func (s *Service) AssignHospital(ctx context.Context, dh *DoctorHospital) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourceDoctorHospitals, authz.OpInsert); err != nil {
		return err
	}
	if dh.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if dh.HospitalID == uuid.Nil {
		return fmt.Errorf("hospital_id is required")
	}
	return s.repo.CreateHospitalAssignment(ctx, dh)
}

func (s *Service) ListHospitalAssignments(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*DoctorHospital, int, error) {
	return s.repo.ListHospitalAssignments(ctx, authz.ActorFromContext(ctx), doctorID, limit, offset)
}

func (s *Service) UnassignHospital(ctx context.Context, id uuid.UUID) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourceDoctorHospitals, authz.OpDelete); err != nil {
		return err
	}
	return s.repo.DeleteHospitalAssignment(ctx, id)
}

// AssignDepartment records a doctor's membership in a department. The
// hospital must be the department's own hospital; the composite foreign key
// rejects any other pairing, which surfaces here as a referential error.
func (s *Service) AssignDepartment(ctx context.Context, dd *DoctorDepartment) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourceDoctorDepartments, authz.OpInsert); err != nil {
		return err
	}
	if dd.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if dd.DepartmentID == uuid.Nil {
		return fmt.Errorf("department_id is required")
	}
	if dd.HospitalID == uuid.Nil {
		return fmt.Errorf("hospital_id is required")
	}
	return s.repo.CreateDepartmentAssignment(ctx, dd)
}

func (s *Service) ListDepartmentAssignments(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*DoctorDepartment, int, error) {
	return s.repo.ListDepartmentAssignments(ctx, authz.ActorFromContext(ctx), doctorID, limit, offset)
}

func (s *Service) UnassignDepartment(ctx context.Context, id uuid.UUID) error {
	actor := authz.ActorFromContext(ctx)
	if err := s.policy.CanMutate(actor, authz.ResourceDoctorDepartments, authz.OpDelete); err != nil {
		return err
	}
	return s.repo.DeleteDepartmentAssignment(ctx, id)
}

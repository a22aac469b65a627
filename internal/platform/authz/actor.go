// Package authz resolves the caller's profile into an Actor and evaluates
// every row-visibility and mutation rule against it. Repositories render
// read visibility through Engine.ReadFilter; services gate writes through
// the Engine's Can* methods. Nothing else in the codebase makes access
// decisions.
package authz

import (
	"context"

	"github.com/google/uuid"
)

// Role values stored on profiles.role.
const (
	RoleAdmin      = "admin"
	RoleDoctor     = "doctor"
	RoleSpecialist = "specialist"
	RolePatient    = "patient"
)

// Resource names the policy engine evaluates. They match table names.
const (
	ResourceHospitals         = "hospitals"
	ResourceDepartments       = "departments"
	ResourceProfiles          = "profiles"
	ResourcePatients          = "patients"
	ResourceReferrals         = "referrals"
	ResourceDoctorHospitals   = "doctor_hospitals"
	ResourceDoctorDepartments = "doctor_departments"
)

var validRoles = map[string]bool{
	RoleAdmin:      true,
	RoleDoctor:     true,
	RoleSpecialist: true,
	RolePatient:    true,
}

// ValidRole reports whether r is one of the four recognized role values.
func ValidRole(r string) bool {
	return validRoles[r]
}

// Actor is the resolved caller identity the policy engine evaluates.
// Role comes from the caller's profile row, never from token claims.
type Actor struct {
	ProfileID    uuid.UUID
	Role         string
	HospitalID   *uuid.UUID
	DepartmentID *uuid.UUID
}

// IsAdmin reports whether the actor carries the admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// AffiliatedWith reports whether the actor's home hospital is hospitalID.
func (a *Actor) AffiliatedWith(hospitalID uuid.UUID) bool {
	return a != nil && a.HospitalID != nil && *a.HospitalID == hospitalID
}

type contextKey string

const actorKey contextKey = "authz_actor"

// WithActor returns a context carrying the resolved actor.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext returns the resolved actor, or nil when the caller is
// unauthenticated or has no profile row yet.
func ActorFromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorKey).(*Actor)
	return a
}

package authz

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDenied is returned for writes the policy matrix does not grant.
// The transport layer maps it to HTTP 403.
var ErrDenied = errors.New("operation not permitted")

// Operation classifies a policy check.
type Operation string

const (
	OpRead   Operation = "read"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Rule describes one grant in the policy matrix. Roles is the role gate;
// Condition documents any row-level restriction the Engine applies on top.
type Rule struct {
	Resource  string    `json:"resource"`
	Operation Operation `json:"operation"`
	Roles     []string  `json:"roles"`
	Condition string    `json:"condition,omitempty"`
}

// Engine evaluates the access matrix. Reads render as SQL predicates so a
// caller without a grant sees an empty result set instead of an error;
// denied writes return ErrDenied.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the default rule set.
func NewEngine() *Engine {
	return &Engine{rules: defaultRules()}
}

// defaultRules is the mutation side of the access matrix. Read visibility
// is not listed here; it renders through ReadFilter instead.
func defaultRules() []Rule {
	admin := []string{RoleAdmin}
	adminDoctor := []string{RoleAdmin, RoleDoctor}
	referrers := []string{RoleAdmin, RoleDoctor, RoleSpecialist}
	return []Rule{
		{Resource: ResourceHospitals, Operation: OpInsert, Roles: admin},
		{Resource: ResourceHospitals, Operation: OpUpdate, Roles: admin},
		{Resource: ResourceHospitals, Operation: OpDelete, Roles: admin},

		{Resource: ResourceDepartments, Operation: OpInsert, Roles: adminDoctor},
		{Resource: ResourceDepartments, Operation: OpUpdate, Roles: adminDoctor},
		{Resource: ResourceDepartments, Operation: OpDelete, Roles: adminDoctor},

		{Resource: ResourceProfiles, Operation: OpInsert, Roles: admin,
			Condition: "a caller without a profile may provision their own row; role defaults to patient"},
		{Resource: ResourceProfiles, Operation: OpUpdate, Roles: admin,
			Condition: "callers may update their own row; role never changes on self-update"},
		{Resource: ResourceProfiles, Operation: OpDelete, Roles: admin},

		{Resource: ResourcePatients, Operation: OpInsert, Roles: adminDoctor},
		{Resource: ResourcePatients, Operation: OpUpdate, Roles: adminDoctor},
		{Resource: ResourcePatients, Operation: OpDelete, Roles: adminDoctor},

		{Resource: ResourceReferrals, Operation: OpInsert, Roles: referrers,
			Condition: "referring_doctor_id must equal the caller's profile id"},
		{Resource: ResourceReferrals, Operation: OpUpdate, Roles: []string{RoleAdmin, RoleSpecialist},
			Condition: "assigned target specialist, or any specialist at the target hospital"},

		{Resource: ResourceDoctorHospitals, Operation: OpInsert, Roles: admin},
		{Resource: ResourceDoctorHospitals, Operation: OpDelete, Roles: admin},
		{Resource: ResourceDoctorDepartments, Operation: OpInsert, Roles: admin},
		{Resource: ResourceDoctorDepartments, Operation: OpDelete, Roles: admin},
	}
}

// Rules returns the mutation matrix for audit endpoints and tests.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// ReadFilter renders the caller's row-visibility predicate for resource as
// a SQL fragment. Positional placeholders are numbered from argIdx so
// repositories can append the fragment to a WHERE clause that already binds
// arguments. A caller with no read grant gets the FALSE predicate.
func (e *Engine) ReadFilter(a *Actor, resource string, argIdx int) (string, []any) {
	if a == nil {
		return "FALSE", nil
	}
	if a.Role == RoleAdmin {
		return "TRUE", nil
	}

	switch resource {
	case ResourceHospitals, ResourceDepartments:
		// Directory data, readable by any authenticated caller.
		return "TRUE", nil

	case ResourceProfiles:
		return fmt.Sprintf("id = $%d", argIdx), []any{a.ProfileID}

	case ResourcePatients:
		// Clinical staff see the patients of their own hospital only.
		if (a.Role == RoleDoctor || a.Role == RoleSpecialist) && a.HospitalID != nil {
			return fmt.Sprintf("hospital_id = $%d", argIdx), []any{*a.HospitalID}
		}
		return "FALSE", nil

	case ResourceReferrals:
		// Identity grants hold for every role; specialists additionally see
		// all referrals directed at their home hospital.
		if a.Role == RoleSpecialist && a.HospitalID != nil {
			return fmt.Sprintf("(referring_doctor_id = $%d OR target_specialist_id = $%d OR target_hospital_id = $%d)",
					argIdx, argIdx+1, argIdx+2),
				[]any{a.ProfileID, a.ProfileID, *a.HospitalID}
		}
		return fmt.Sprintf("(referring_doctor_id = $%d OR target_specialist_id = $%d)", argIdx, argIdx+1),
			[]any{a.ProfileID, a.ProfileID}

	case ResourceDoctorHospitals, ResourceDoctorDepartments:
		return fmt.Sprintf("doctor_id = $%d", argIdx), []any{a.ProfileID}
	}

	return "FALSE", nil
}

// CanMutate applies the role gate for resources whose mutation rules carry
// no row-level condition: hospitals, departments, patients and the doctor
// assignment tables.
func (e *Engine) CanMutate(a *Actor, resource string, op Operation) error {
	if a == nil {
		return ErrDenied
	}
	if a.Role == RoleAdmin {
		return nil
	}
	for _, r := range e.rules {
		if r.Resource != resource || r.Operation != op {
			continue
		}
		for _, role := range r.Roles {
			if role == a.Role {
				return nil
			}
		}
		return ErrDenied
	}
	return ErrDenied
}

// CanInsertProfile allows admins to provision any profile, and a caller
// with no profile yet to provision exactly their own row.
func (e *Engine) CanInsertProfile(a *Actor, callerID, newProfileID uuid.UUID) error {
	if a.IsAdmin() {
		return nil
	}
	if a == nil && callerID != uuid.Nil && callerID == newProfileID {
		return nil
	}
	return ErrDenied
}

// CanUpdateProfile allows admins to update any profile and callers to
// update their own, except that only admins may change the role field.
func (e *Engine) CanUpdateProfile(a *Actor, profileID uuid.UUID, changesRole bool) error {
	if a.IsAdmin() {
		return nil
	}
	if a != nil && a.ProfileID == profileID && !changesRole {
		return nil
	}
	return ErrDenied
}

// CanInsertReferral enforces the referring-doctor binding: callers file
// referrals only on their own behalf, whatever their role.
func (e *Engine) CanInsertReferral(a *Actor, referringDoctorID uuid.UUID) error {
	if a == nil {
		return ErrDenied
	}
	switch a.Role {
	case RoleAdmin, RoleDoctor, RoleSpecialist:
	default:
		return ErrDenied
	}
	if a.ProfileID != referringDoctorID {
		return ErrDenied
	}
	return nil
}

// ReferralFacts carries the row attributes referral update rules evaluate.
type ReferralFacts struct {
	TargetSpecialistID *uuid.UUID
	TargetHospitalID   uuid.UUID
}

// CanUpdateReferral grants the assigned target specialist, any specialist
// affiliated with the target hospital, and admins. The referring doctor
// holds no update grant once the referral is filed.
func (e *Engine) CanUpdateReferral(a *Actor, f ReferralFacts) error {
	if a == nil {
		return ErrDenied
	}
	if a.Role == RoleAdmin {
		return nil
	}
	if f.TargetSpecialistID != nil && *f.TargetSpecialistID == a.ProfileID {
		return nil
	}
	if a.Role == RoleSpecialist && a.AffiliatedWith(f.TargetHospitalID) {
		return nil
	}
	return ErrDenied
}

package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUnauthenticated means no caller identity reached the resolver.
	ErrUnauthenticated = errors.New("no authenticated caller")
	// ErrNoProfile means the caller is authenticated but has no profile row.
	ErrNoProfile = errors.New("no profile for caller")
)

// ActorSource resolves a caller id into an Actor.
type ActorSource interface {
	Resolve(ctx context.Context, id uuid.UUID) (*Actor, error)
}

// Resolver loads the caller's profile row for policy evaluation. It reads
// through its own SQL path rather than the policy-filtered repositories, so
// resolving an actor can never recurse into a policy check. Resolution is
// side-effect free.
type Resolver struct {
	pool *pgxpool.Pool
}

// NewResolver creates a resolver backed by the given pool.
func NewResolver(pool *pgxpool.Pool) *Resolver {
	return &Resolver{pool: pool}
}

// Resolve returns the actor for the given profile id.
func (r *Resolver) Resolve(ctx context.Context, id uuid.UUID) (*Actor, error) {
	if id == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	const q = `SELECT id, role, hospital_id, department_id FROM profiles WHERE id = $1`
	var a Actor
	err := r.pool.QueryRow(ctx, q, id).Scan(&a.ProfileID, &a.Role, &a.HospitalID, &a.DepartmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoProfile
	}
	if err != nil {
		return nil, fmt.Errorf("resolve actor %s: %w", id, err)
	}
	return &a, nil
}

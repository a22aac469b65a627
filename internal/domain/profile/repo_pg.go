package profile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/carebridge/internal/platform/authz"
	"github.com/carebridge/carebridge/internal/platform/db"
)

type repoPG struct {
	pool   *pgxpool.Pool
	policy *authz.Engine
}

func NewRepo(pool *pgxpool.Pool, policy *authz.Engine) Repository {
	return &repoPG{pool: pool, policy: policy}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const profileCols = `id, email, full_name, role, phone, hospital_id, department_id,
	license_number, specialization, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO profiles (id, email, full_name, role, phone, hospital_id, department_id, license_number, specialization)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.Email, p.FullName, p.Role, p.Phone, p.HospitalID, p.DepartmentID, p.LicenseNumber, p.Specialization,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, a *authz.Actor, id uuid.UUID) (*Profile, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourceProfiles, 2)
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE id = $1 AND `+filter,
		append([]any{id}, args...)...)
	return scanProfile(row)
}

func (r *repoPG) List(ctx context.Context, a *authz.Actor, limit, offset int) ([]*Profile, int, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourceProfiles, 1)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM profiles WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`SELECT `+profileCols+` FROM profiles WHERE `+filter+` ORDER BY full_name LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectProfiles(rows, total)
}

// Update writes every mutable column except role. The role column is only
// reachable through UpdateRole.
func (r *repoPG) Update(ctx context.Context, p *Profile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE profiles SET
			email=$2, full_name=$3, phone=$4, hospital_id=$5, department_id=$6,
			license_number=$7, specialization=$8, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Email, p.FullName, p.Phone, p.HospitalID, p.DepartmentID, p.LicenseNumber, p.Specialization,
	)
	return err
}

func (r *repoPG) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE profiles SET role=$2, updated_at=NOW() WHERE id = $1`, id, role)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	return err
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.Phone, &p.HospitalID, &p.DepartmentID,
		&p.LicenseNumber, &p.Specialization, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProfiles(rows pgx.Rows, total int) ([]*Profile, int, error) {
	var ps []*Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.Phone, &p.HospitalID, &p.DepartmentID,
			&p.LicenseNumber, &p.Specialization, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		ps = append(ps, &p)
	}
	return ps, total, nil
}

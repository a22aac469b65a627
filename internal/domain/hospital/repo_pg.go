package hospital

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

const hospitalCols = `id, name, address, city, state, phone, email, created_at, updated_at`

const departmentCols = `id, hospital_id, name, description, head_doctor_id, created_at, updated_at`

func (r *repoPG) CreateHospital(ctx context.Context, h *Hospital) error {
	h.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO hospitals (id, name, address, city, state, phone, email)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		h.ID, h.Name, h.Address, h.City, h.State, h.Phone, h.Email,
	)
	return err
}

func (r *repoPG) GetHospital(ctx context.Context, a *authz.Actor, id uuid.UUID) (*Hospital, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourceHospitals, 2)
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+hospitalCols+` FROM hospitals WHERE id = $1 AND `+filter,
		append([]any{id}, args...)...)
	return scanHospital(row)
}

func (r *repoPG) ListHospitals(ctx context.Context, a *authz.Actor, limit, offset int) ([]*Hospital, int, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourceHospitals, 1)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM hospitals WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`SELECT `+hospitalCols+` FROM hospitals WHERE `+filter+` ORDER BY name LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectHospitals(rows, total)
}

func (r *repoPG) UpdateHospital(ctx context.Context, h *Hospital) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE hospitals SET
			name=$2, address=$3, city=$4, state=$5, phone=$6, email=$7, updated_at=NOW()
		WHERE id = $1`,
		h.ID, h.Name, h.Address, h.City, h.State, h.Phone, h.Email,
	)
	return err
}

func (r *repoPG) DeleteHospital(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM hospitals WHERE id = $1`, id)
	return err
}

func (r *repoPG) CreateDepartment(ctx context.Context, d *Department) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO departments (id, hospital_id, name, description, head_doctor_id)
		VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.HospitalID, d.Name, d.Description, d.HeadDoctorID,
	)
	return err
}

func (r *repoPG) GetDepartment(ctx context.Context, a *authz.Actor, id uuid.UUID) (*Department, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourceDepartments, 2)
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+departmentCols+` FROM departments WHERE id = $1 AND `+filter,
		append([]any{id}, args...)...)
	return scanDepartment(row)
}

func (r *repoPG) ListDepartments(ctx context.Context, a *authz.Actor, hospitalID uuid.UUID, limit, offset int) ([]*Department, int, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourceDepartments, 1)
	if hospitalID != uuid.Nil {
		args = append(args, hospitalID)
		filter += fmt.Sprintf(" AND hospital_id = $%d", len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM departments WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`SELECT `+departmentCols+` FROM departments WHERE `+filter+` ORDER BY name LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectDepartments(rows, total)
}

func (r *repoPG) UpdateDepartment(ctx context.Context, d *Department) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE departments SET
			name=$2, description=$3, head_doctor_id=$4, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Description, d.HeadDoctorID,
	)
	return err
}

func (r *repoPG) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	return err
}

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(&h.ID, &h.Name, &h.Address, &h.City, &h.State, &h.Phone, &h.Email, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func collectHospitals(rows pgx.Rows, total int) ([]*Hospital, int, error) {
	var hs []*Hospital
	for rows.Next() {
		var h Hospital
		if err := rows.Scan(&h.ID, &h.Name, &h.Address, &h.City, &h.State, &h.Phone, &h.Email, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, 0, err
		}
		hs = append(hs, &h)
	}
	return hs, total, nil
}

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.HospitalID, &d.Name, &d.Description, &d.HeadDoctorID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDepartments(rows pgx.Rows, total int) ([]*Department, int, error) {
	var ds []*Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.HospitalID, &d.Name, &d.Description, &d.HeadDoctorID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		ds = append(ds, &d)
	}
	return ds, total, nil
}

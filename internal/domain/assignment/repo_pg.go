package assignment

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

const doctorHospitalCols = `id, doctor_id, hospital_id, created_at`

const doctorDepartmentCols = `id, doctor_id, department_id, hospital_id, created_at`

func (r *repoPG) CreateHospitalAssignment(ctx context.Context, dh *DoctorHospital) error {
	dh.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_hospitals (id, doctor_id, hospital_id)
		VALUES ($1,$2,$3)`,
		dh.ID, dh.DoctorID, dh.HospitalID,
	)
	return err
}

func (r *repoPG) ListHospitalAssignments(ctx context.Context, a *authz.Actor, doctorID uuid.UUID, limit, offset int) ([]*DoctorHospital, int, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourceDoctorHospitals, 1)
	if doctorID != uuid.Nil {
		args = append(args, doctorID)
		filter += fmt.Sprintf(" AND doctor_id = $%d", len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor_hospitals WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`SELECT `+doctorHospitalCols+` FROM doctor_hospitals WHERE `+filter+` ORDER BY created_at LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*DoctorHospital
	for rows.Next() {
		var dh DoctorHospital
		if err := rows.Scan(&dh.ID, &dh.DoctorID, &dh.HospitalID, &dh.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &dh)
	}
	return out, total, nil
}

func (r *repoPG) DeleteHospitalAssignment(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_hospitals WHERE id = $1`, id)
	return err
}

func (r *repoPG) CreateDepartmentAssignment(ctx context.Context, dd *DoctorDepartment) error {
	dd.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_departments (id, doctor_id, department_id, hospital_id)
		VALUES ($1,$2,$3,$4)`,
		dd.ID, dd.DoctorID, dd.DepartmentID, dd.HospitalID,
	)
	return err
}

func (r *repoPG) ListDepartmentAssignments(ctx context.Context, a *authz.Actor, doctorID uuid.UUID, limit, offset int) ([]*DoctorDepartment, int, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourceDoctorDepartments, 1)
	if doctorID != uuid.Nil {
		args = append(args, doctorID)
		filter += fmt.Sprintf(" AND doctor_id = $%d", len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor_departments WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`SELECT `+doctorDepartmentCols+` FROM doctor_departments WHERE `+filter+` ORDER BY created_at LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*DoctorDepartment
	for rows.Next() {
		var dd DoctorDepartment
		if err := rows.Scan(&dd.ID, &dd.DoctorID, &dd.DepartmentID, &dd.HospitalID, &dd.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &dd)
	}
	return out, total, nil
}

func (r *repoPG) DeleteDepartmentAssignment(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_departments WHERE id = $1`, id)
	return err
}

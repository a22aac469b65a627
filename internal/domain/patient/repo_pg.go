package patient

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

const patientCols = `id, patient_id, first_name, last_name, date_of_birth, gender,
	phone, email, address, blood_group, medical_history, allergies, hospital_id,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (
			id, patient_id, first_name, last_name, date_of_birth, gender,
			phone, email, address, blood_group, medical_history, allergies, hospital_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.PatientID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Email, p.Address, p.BloodGroup, p.MedicalHistory, p.Allergies, p.HospitalID,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, a *authz.Actor, id uuid.UUID) (*Patient, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourcePatients, 2)
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1 AND `+filter,
		append([]any{id}, args...)...)
	return scanPatient(row)
}

func (r *repoPG) List(ctx context.Context, a *authz.Actor, limit, offset int) ([]*Patient, int, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourcePatients, 1)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`SELECT `+patientCols+` FROM patients WHERE `+filter+` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func (r *repoPG) Search(ctx context.Context, a *authz.Actor, query string, limit, offset int) ([]*Patient, int, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourcePatients, 1)
	args = append(args, "%"+query+"%")
	filter += fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d OR patient_id ILIKE $%d)",
		len(args), len(args), len(args))

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`SELECT `+patientCols+` FROM patients WHERE `+filter+` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

// Update never touches patient_id; the business identifier is immutable.
func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET
			first_name=$2, last_name=$3, date_of_birth=$4, gender=$5,
			phone=$6, email=$7, address=$8, blood_group=$9,
			medical_history=$10, allergies=$11, hospital_id=$12, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Email, p.Address, p.BloodGroup,
		p.MedicalHistory, p.Allergies, p.HospitalID,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PatientID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
		&p.Phone, &p.Email, &p.Address, &p.BloodGroup, &p.MedicalHistory, &p.Allergies, &p.HospitalID,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows, total int) ([]*Patient, int, error) {
	var ps []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.PatientID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
			&p.Phone, &p.Email, &p.Address, &p.BloodGroup, &p.MedicalHistory, &p.Allergies, &p.HospitalID,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		ps = append(ps, &p)
	}
	return ps, total, nil
}

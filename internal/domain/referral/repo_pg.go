package referral

import (
	"context"
	"fmt"
	"time"

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

const referralCols = `id, referral_id, patient_id, referring_doctor_id, target_specialist_id,
	origin_hospital_id, target_hospital_id, target_department_id,
	status, urgency, reason, notes, specialist_notes, appointment_date,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, ref *Referral) error {
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO referrals (
			id, referral_id, patient_id, referring_doctor_id, target_specialist_id,
			origin_hospital_id, target_hospital_id, target_department_id,
			status, urgency, reason, notes, specialist_notes, appointment_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		ref.ID, ref.ReferralID, ref.PatientID, ref.ReferringDoctorID, ref.TargetSpecialistID,
		ref.OriginHospitalID, ref.TargetHospitalID, ref.TargetDepartmentID,
		ref.Status, ref.Urgency, ref.Reason, ref.Notes, ref.SpecialistNotes, ref.AppointmentDate,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, a *authz.Actor, id uuid.UUID) (*Referral, error) {
	filter, args := r.policy.ReadFilter(a, authz.ResourceReferrals, 2)
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+referralCols+` FROM referrals WHERE id = $1 AND `+filter,
		append([]any{id}, args...)...)
	return scanReferral(row)
}

func (r *repoPG) List(ctx context.Context, a *authz.Actor, f ListFilter, limit, offset int) ([]*Referral, int, error) {
	where, args := r.policy.ReadFilter(a, authz.ResourceReferrals, 1)
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Urgency != "" {
		args = append(args, f.Urgency)
		where += fmt.Sprintf(" AND urgency = $%d", len(args))
	}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM referrals WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`SELECT `+referralCols+` FROM referrals WHERE `+where+` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectReferrals(rows, total)
}

// Update writes the triage-mutable columns. The identifier, patient,
// referring doctor, origin and target links, and status stay as created;
// status moves only through UpdateStatus.
func (r *repoPG) Update(ctx context.Context, ref *Referral) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE referrals SET
			target_specialist_id=$2, urgency=$3, reason=$4, notes=$5,
			specialist_notes=$6, appointment_date=$7, updated_at=NOW()
		WHERE id = $1`,
		ref.ID, ref.TargetSpecialistID, ref.Urgency, ref.Reason, ref.Notes,
		ref.SpecialistNotes, ref.AppointmentDate,
	)
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, appointment *time.Time) error {
	if appointment != nil {
		_, err := r.conn(ctx).Exec(ctx,
			`UPDATE referrals SET status=$2, appointment_date=$3, updated_at=NOW() WHERE id = $1`,
			id, status, appointment)
		return err
	}
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE referrals SET status=$2, updated_at=NOW() WHERE id = $1`,
		id, status)
	return err
}

func (r *repoPG) AddStatusHistory(ctx context.Context, sh *StatusHistory) error {
	sh.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO referral_status_history (id, referral_id, from_status, to_status, changed_by)
		VALUES ($1,$2,$3,$4,$5)`,
		sh.ID, sh.ReferralID, sh.FromStatus, sh.ToStatus, sh.ChangedBy,
	)
	return err
}

func (r *repoPG) GetStatusHistory(ctx context.Context, referralID uuid.UUID) ([]*StatusHistory, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, referral_id, from_status, to_status, changed_by, changed_at
		FROM referral_status_history WHERE referral_id = $1 ORDER BY changed_at`, referralID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*StatusHistory
	for rows.Next() {
		var sh StatusHistory
		if err := rows.Scan(&sh.ID, &sh.ReferralID, &sh.FromStatus, &sh.ToStatus, &sh.ChangedBy, &sh.ChangedAt); err != nil {
			return nil, err
		}
		history = append(history, &sh)
	}
	return history, nil
}

func scanReferral(row pgx.Row) (*Referral, error) {
	var ref Referral
	err := row.Scan(
		&ref.ID, &ref.ReferralID, &ref.PatientID, &ref.ReferringDoctorID, &ref.TargetSpecialistID,
		&ref.OriginHospitalID, &ref.TargetHospitalID, &ref.TargetDepartmentID,
		&ref.Status, &ref.Urgency, &ref.Reason, &ref.Notes, &ref.SpecialistNotes, &ref.AppointmentDate,
		&ref.CreatedAt, &ref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func collectReferrals(rows pgx.Rows, total int) ([]*Referral, int, error) {
	var refs []*Referral
	for rows.Next() {
		var ref Referral
		err := rows.Scan(
			&ref.ID, &ref.ReferralID, &ref.PatientID, &ref.ReferringDoctorID, &ref.TargetSpecialistID,
			&ref.OriginHospitalID, &ref.TargetHospitalID, &ref.TargetDepartmentID,
			&ref.Status, &ref.Urgency, &ref.Reason, &ref.Notes, &ref.SpecialistNotes, &ref.AppointmentDate,
			&ref.CreatedAt, &ref.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		refs = append(refs, &ref)
	}
	return refs, total, nil
}

package public

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

// publicReferralSQL is the one statement anonymous callers can reach. The
// select list below is the security boundary; adding a column here widens
// what the internet can read.
const publicReferralSQL = `
	SELECT
		r.referral_id, r.status, r.urgency, r.reason, r.notes,
		r.appointment_date, r.created_at, r.updated_at,
		p.first_name || ' ' || p.last_name,
		p.patient_id,
		rd.full_name,
		ts.full_name,
		oh.name, oh.city, oh.state,
		th.name, th.city, th.state,
		td.name, td.description
	FROM referrals r
	JOIN patients p ON p.id = r.patient_id
	JOIN profiles rd ON rd.id = r.referring_doctor_id
	LEFT JOIN profiles ts ON ts.id = r.target_specialist_id
	JOIN hospitals oh ON oh.id = r.origin_hospital_id
	JOIN hospitals th ON th.id = r.target_hospital_id
	JOIN departments td ON td.id = r.target_department_id
	WHERE r.referral_id = $1`

func (r *repoPG) GetByReferralID(ctx context.Context, referralID string) (*ReferralView, error) {
	var v ReferralView
	err := r.pool.QueryRow(ctx, publicReferralSQL, referralID).Scan(
		&v.ReferralID, &v.Status, &v.Urgency, &v.Reason, &v.Notes,
		&v.AppointmentDate, &v.CreatedAt, &v.UpdatedAt,
		&v.PatientName,
		&v.PatientID,
		&v.ReferringDoctor,
		&v.TargetSpecialist,
		&v.OriginHospital.Name, &v.OriginHospital.City, &v.OriginHospital.State,
		&v.TargetHospital.Name, &v.TargetHospital.City, &v.TargetHospital.State,
		&v.TargetDepartment.Name, &v.TargetDepartment.Description,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

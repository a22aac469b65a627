package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists endpoints and deliveries in Postgres so registrations
// and the delivery log survive restarts.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const endpointCols = `id, url, secret, events, status, created_at`

func (s *PGStore) CreateEndpoint(ctx context.Context, ep *Endpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_endpoints (id, url, secret, events, status)
		VALUES ($1,$2,$3,$4,$5)`,
		ep.ID, ep.URL, ep.Secret, ep.Events, ep.Status,
	)
	return err
}

func (s *PGStore) GetEndpoint(ctx context.Context, id uuid.UUID) (*Endpoint, error) {
	var ep Endpoint
	err := s.pool.QueryRow(ctx,
		`SELECT `+endpointCols+` FROM webhook_endpoints WHERE id = $1`, id).
		Scan(&ep.ID, &ep.URL, &ep.Secret, &ep.Events, &ep.Status, &ep.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

func (s *PGStore) ListEndpoints(ctx context.Context, limit, offset int) ([]*Endpoint, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM webhook_endpoints`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+endpointCols+` FROM webhook_endpoints ORDER BY created_at LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Endpoint
	for rows.Next() {
		var ep Endpoint
		if err := rows.Scan(&ep.ID, &ep.URL, &ep.Secret, &ep.Events, &ep.Status, &ep.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &ep)
	}
	return out, total, nil
}

func (s *PGStore) UpdateEndpoint(ctx context.Context, ep *Endpoint) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE webhook_endpoints SET url=$2, secret=$3, events=$4, status=$5
		WHERE id = $1`,
		ep.ID, ep.URL, ep.Secret, ep.Events, ep.Status,
	)
	return err
}

func (s *PGStore) DeleteEndpoint(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM webhook_endpoints WHERE id = $1`, id)
	return err
}

const deliveryCols = `id, endpoint_id, event_type, event_id, payload, signature,
	status_code, response_body, duration_ms, attempt, status, error, created_at`

func (s *PGStore) RecordDelivery(ctx context.Context, d *DeliveryAttempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_deliveries
			(id, endpoint_id, event_type, event_id, payload, signature,
			 status_code, response_body, duration_ms, attempt, status, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			status_code=$7, response_body=$8, duration_ms=$9, attempt=$10, status=$11, error=$12`,
		d.ID, d.EndpointID, d.EventType, d.EventID, d.Payload, d.Signature,
		d.StatusCode, d.ResponseBody, d.Duration.Milliseconds(), d.Attempt, d.Status, d.Error,
	)
	return err
}

func (s *PGStore) ListDeliveries(ctx context.Context, endpointID uuid.UUID, limit, offset int) ([]*DeliveryAttempt, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM webhook_deliveries WHERE endpoint_id = $1`, endpointID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+deliveryCols+` FROM webhook_deliveries
		 WHERE endpoint_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		endpointID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*DeliveryAttempt
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, nil
}

func (s *PGStore) GetDelivery(ctx context.Context, id uuid.UUID) (*DeliveryAttempt, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+deliveryCols+` FROM webhook_deliveries WHERE id = $1`, id)
	return scanDelivery(row)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDelivery(row scannable) (*DeliveryAttempt, error) {
	var d DeliveryAttempt
	var durationMS int64
	err := row.Scan(&d.ID, &d.EndpointID, &d.EventType, &d.EventID, &d.Payload, &d.Signature,
		&d.StatusCode, &d.ResponseBody, &durationMS, &d.Attempt, &d.Status, &d.Error, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Duration = time.Duration(durationMS) * time.Millisecond
	return &d, nil
}

package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marshymcfloat/service-flow/internal/events"
)

// Store defines the persistence operations required for webhook management.
type Store interface {
	CreateEndpoint(ctx context.Context, ep Endpoint) (Endpoint, error)
	GetEndpoint(ctx context.Context, id uuid.UUID) (Endpoint, error)
	ListEndpoints(ctx context.Context, businessID string) ([]Endpoint, error)
	DeleteEndpoint(ctx context.Context, id uuid.UUID) error

	ListActiveEndpointsForTopic(ctx context.Context, businessID, topic string) ([]Endpoint, error)
	EnqueueDelivery(ctx context.Context, endpointID, eventID uuid.UUID, maxAttempt int32) (Delivery, error)
	DequeueDueDeliveries(ctx context.Context, limit int32) ([]Delivery, error)
	MarkDelivering(ctx context.Context, id uuid.UUID) error
	MarkDelivered(ctx context.Context, id uuid.UUID, status int, responseBody string) error
	MarkFailedWithBackoff(ctx context.Context, id uuid.UUID, delaySec int32, lastError string) error
	MoveToDLQ(ctx context.Context, id uuid.UUID, reason string) error

	GetDomainEvent(ctx context.Context, id uuid.UUID) (events.DomainEvent, error)
}

// PGStore implements Store on top of Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const createEndpointSQL = `
INSERT INTO webhook_endpoints (id, business_id, url, secret, topics, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
RETURNING id, business_id, url, secret, topics, active, created_at`

// CreateEndpoint persists a new webhook endpoint.
func (s *PGStore) CreateEndpoint(ctx context.Context, ep Endpoint) (Endpoint, error) {
	if ep.ID == uuid.Nil {
		ep.ID = uuid.New()
	}
	row := s.Pool.QueryRow(ctx, createEndpointSQL, ep.ID, ep.BusinessID, ep.URL, ep.Secret, ep.Topics, ep.Active)
	return scanEndpoint(row)
}

const getEndpointSQL = `
SELECT id, business_id, url, secret, topics, active, created_at
FROM webhook_endpoints WHERE id = $1`

// GetEndpoint loads an endpoint by id.
func (s *PGStore) GetEndpoint(ctx context.Context, id uuid.UUID) (Endpoint, error) {
	return scanEndpoint(s.Pool.QueryRow(ctx, getEndpointSQL, id))
}

const listEndpointsSQL = `
SELECT id, business_id, url, secret, topics, active, created_at
FROM webhook_endpoints WHERE business_id = $1 ORDER BY created_at DESC`

// ListEndpoints returns all endpoints registered by a business.
func (s *PGStore) ListEndpoints(ctx context.Context, businessID string) ([]Endpoint, error) {
	rows, err := s.Pool.Query(ctx, listEndpointsSQL, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEndpoints(rows)
}

// DeleteEndpoint removes an endpoint.
func (s *PGStore) DeleteEndpoint(ctx context.Context, id uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM webhook_endpoints WHERE id = $1`, id)
	return err
}

const listActiveForTopicSQL = `
SELECT id, business_id, url, secret, topics, active, created_at
FROM webhook_endpoints
WHERE business_id = $1 AND active AND $2 = ANY(topics)`

// ListActiveEndpointsForTopic returns active endpoints subscribed to the topic.
func (s *PGStore) ListActiveEndpointsForTopic(ctx context.Context, businessID, topic string) ([]Endpoint, error) {
	rows, err := s.Pool.Query(ctx, listActiveForTopicSQL, businessID, topic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEndpoints(rows)
}

const enqueueDeliverySQL = `
INSERT INTO webhook_deliveries (id, endpoint_id, event_id, attempt, max_attempt, status, next_run_at)
VALUES ($1, $2, $3, 0, $4, 'pending', now())
RETURNING id, endpoint_id, event_id, attempt, max_attempt, status, COALESCE(last_error, ''), next_run_at`

// EnqueueDelivery creates a pending delivery. A unique (endpoint_id, event_id)
// index makes duplicate scheduling a no-op at the caller.
func (s *PGStore) EnqueueDelivery(ctx context.Context, endpointID, eventID uuid.UUID, maxAttempt int32) (Delivery, error) {
	row := s.Pool.QueryRow(ctx, enqueueDeliverySQL, uuid.New(), endpointID, eventID, maxAttempt)
	return scanDelivery(row)
}

const dequeueDueSQL = `
UPDATE webhook_deliveries SET status = 'claimed'
WHERE id IN (
  SELECT id FROM webhook_deliveries
  WHERE status IN ('pending', 'failed') AND next_run_at <= now()
  ORDER BY next_run_at
  LIMIT $1
  FOR UPDATE SKIP LOCKED
)
RETURNING id, endpoint_id, event_id, attempt, max_attempt, status, COALESCE(last_error, ''), next_run_at`

// DequeueDueDeliveries claims up to limit due deliveries.
func (s *PGStore) DequeueDueDeliveries(ctx context.Context, limit int32) ([]Delivery, error) {
	rows, err := s.Pool.Query(ctx, dequeueDueSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		del, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, del)
	}
	return out, rows.Err()
}

// MarkDelivering flags a delivery as in flight.
func (s *PGStore) MarkDelivering(ctx context.Context, id uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `UPDATE webhook_deliveries SET status = 'delivering', attempt = attempt + 1 WHERE id = $1`, id)
	return err
}

// MarkDelivered records a successful delivery.
func (s *PGStore) MarkDelivered(ctx context.Context, id uuid.UUID, status int, responseBody string) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE webhook_deliveries SET status = 'delivered', response_status = $2, response_body = $3, delivered_at = now() WHERE id = $1`,
		id, status, responseBody)
	return err
}

// MarkFailedWithBackoff schedules a retry after the provided delay.
func (s *PGStore) MarkFailedWithBackoff(ctx context.Context, id uuid.UUID, delaySec int32, lastError string) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE webhook_deliveries SET status = 'failed', last_error = $2, next_run_at = now() + make_interval(secs => $3) WHERE id = $1`,
		id, lastError, delaySec)
	return err
}

// MoveToDLQ parks a delivery that exhausted its attempts.
func (s *PGStore) MoveToDLQ(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE webhook_deliveries SET status = 'dlq', last_error = $2 WHERE id = $1`, id, reason)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO webhook_dlq (id, delivery_id, reason, created_at) VALUES ($1, $2, $3, now())`,
		uuid.New(), id, reason)
	return err
}

const getEventSQL = `
SELECT id, topic, business_id, aggregate_id, payload, occurred_at
FROM domain_events WHERE id = $1`

// GetDomainEvent loads the event backing a delivery.
func (s *PGStore) GetDomainEvent(ctx context.Context, id uuid.UUID) (events.DomainEvent, error) {
	var ev events.DomainEvent
	row := s.Pool.QueryRow(ctx, getEventSQL, id)
	if err := row.Scan(&ev.ID, &ev.Topic, &ev.BusinessID, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
		return events.DomainEvent{}, err
	}
	return ev, nil
}

func scanEndpoint(row pgx.Row) (Endpoint, error) {
	var ep Endpoint
	var created time.Time
	if err := row.Scan(&ep.ID, &ep.BusinessID, &ep.URL, &ep.Secret, &ep.Topics, &ep.Active, &created); err != nil {
		return Endpoint{}, err
	}
	ep.CreatedAt = created
	return ep, nil
}

func collectEndpoints(rows pgx.Rows) ([]Endpoint, error) {
	var out []Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func scanDelivery(row pgx.Row) (Delivery, error) {
	var del Delivery
	if err := row.Scan(&del.ID, &del.EndpointID, &del.EventID, &del.Attempt, &del.MaxAttempt, &del.Status, &del.LastError, &del.NextRunAt); err != nil {
		return Delivery{}, err
	}
	return del, nil
}

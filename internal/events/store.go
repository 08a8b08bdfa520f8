package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists domain events in Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const insertDomainEventSQL = `
INSERT INTO domain_events (id, topic, business_id, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5, now())
RETURNING id, topic, business_id, aggregate_id, payload, occurred_at`

// InsertDomainEvent writes the event row and returns the stored record.
func (s *PGStore) InsertDomainEvent(ctx context.Context, topic, businessID string, aggregateID uuid.UUID, payload []byte) (DomainEvent, error) {
	var ev DomainEvent
	row := s.Pool.QueryRow(ctx, insertDomainEventSQL, uuid.New(), topic, businessID, aggregateID, payload)
	if err := row.Scan(&ev.ID, &ev.Topic, &ev.BusinessID, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
		return DomainEvent{}, err
	}
	return ev, nil
}

const getDomainEventSQL = `
SELECT id, topic, business_id, aggregate_id, payload, occurred_at
FROM domain_events WHERE id = $1`

// GetDomainEvent loads a single event by id.
func (s *PGStore) GetDomainEvent(ctx context.Context, id uuid.UUID) (DomainEvent, error) {
	var ev DomainEvent
	row := s.Pool.QueryRow(ctx, getDomainEventSQL, id)
	if err := row.Scan(&ev.ID, &ev.Topic, &ev.BusinessID, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
		return DomainEvent{}, err
	}
	return ev, nil
}

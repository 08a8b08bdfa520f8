package sale

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScopeType marks which id list a stored event matches against.
type ScopeType string

const (
	// ScopeService events discount individually booked services.
	ScopeService ScopeType = "SERVICE"
	// ScopePackage events discount package bookings.
	ScopePackage ScopeType = "PACKAGE"
)

// StoredEvent is the persisted form of a sale event. Scope is flattened into a
// type tag plus one id list; Decode rebuilds the tagged union.
type StoredEvent struct {
	ID         uuid.UUID   `json:"id"`
	BusinessID string      `json:"businessId"`
	Title      string      `json:"title"`
	Kind       Kind        `json:"kind"`
	Value      float64     `json:"value"`
	ScopeType  ScopeType   `json:"scopeType"`
	TargetIDs  []uuid.UUID `json:"targetIds"`
	StartsAt   time.Time   `json:"startsAt"`
	EndsAt     time.Time   `json:"endsAt"`
}

// Decode converts the stored row into an engine event.
func (s StoredEvent) Decode() Event {
	ev := Event{ID: s.ID, Title: s.Title, Kind: s.Kind, Value: s.Value}
	switch s.ScopeType {
	case ScopePackage:
		ev.Scope = PackageScope{PackageIDs: s.TargetIDs}
	default:
		ev.Scope = ServiceScope{ServiceIDs: s.TargetIDs}
	}
	return ev
}

// PGRepo persists sale events in Postgres.
type PGRepo struct {
	Pool *pgxpool.Pool
}

const saleEventColumns = `id, business_id, title, kind, value, scope_type, target_ids, starts_at, ends_at`

const listActiveEventsSQL = `
SELECT ` + saleEventColumns + `
FROM sale_events
WHERE business_id = $1 AND starts_at <= $2 AND ends_at > $2
ORDER BY created_at`

// ListActiveEvents returns events whose window covers the given instant,
// ordered by creation so ties resolve to the oldest event.
func (r *PGRepo) ListActiveEvents(ctx context.Context, businessID string, at time.Time) ([]StoredEvent, error) {
	rows, err := r.Pool.Query(ctx, listActiveEventsSQL, businessID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStoredEvents(rows)
}

const listEventsSQL = `
SELECT ` + saleEventColumns + `
FROM sale_events
WHERE business_id = $1
ORDER BY starts_at DESC`

// ListEvents returns every event for the business, newest window first.
func (r *PGRepo) ListEvents(ctx context.Context, businessID string) ([]StoredEvent, error) {
	rows, err := r.Pool.Query(ctx, listEventsSQL, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStoredEvents(rows)
}

const createEventSQL = `
INSERT INTO sale_events (id, business_id, title, kind, value, scope_type, target_ids, starts_at, ends_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
RETURNING ` + saleEventColumns

// CreateEvent inserts a new sale event.
func (r *PGRepo) CreateEvent(ctx context.Context, ev StoredEvent) (StoredEvent, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	row := r.Pool.QueryRow(ctx, createEventSQL,
		ev.ID, ev.BusinessID, ev.Title, ev.Kind, ev.Value, ev.ScopeType, ev.TargetIDs, ev.StartsAt, ev.EndsAt)
	return scanStoredEvent(row)
}

const updateEventSQL = `
UPDATE sale_events
SET title = $3, kind = $4, value = $5, scope_type = $6, target_ids = $7, starts_at = $8, ends_at = $9
WHERE id = $1 AND business_id = $2
RETURNING ` + saleEventColumns

// UpdateEvent mutates an event owned by the business.
func (r *PGRepo) UpdateEvent(ctx context.Context, ev StoredEvent) (StoredEvent, error) {
	row := r.Pool.QueryRow(ctx, updateEventSQL,
		ev.ID, ev.BusinessID, ev.Title, ev.Kind, ev.Value, ev.ScopeType, ev.TargetIDs, ev.StartsAt, ev.EndsAt)
	return scanStoredEvent(row)
}

// DeleteEvent removes an event owned by the business.
func (r *PGRepo) DeleteEvent(ctx context.Context, businessID string, id uuid.UUID) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM sale_events WHERE id = $1 AND business_id = $2`, id, businessID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanStoredEvent(row pgx.Row) (StoredEvent, error) {
	var ev StoredEvent
	if err := row.Scan(&ev.ID, &ev.BusinessID, &ev.Title, &ev.Kind, &ev.Value, &ev.ScopeType, &ev.TargetIDs, &ev.StartsAt, &ev.EndsAt); err != nil {
		return StoredEvent{}, err
	}
	return ev, nil
}

func collectStoredEvents(rows pgx.Rows) ([]StoredEvent, error) {
	var out []StoredEvent
	for rows.Next() {
		ev, err := scanStoredEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

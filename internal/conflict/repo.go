package conflict

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marshymcfloat/service-flow/internal/schedule"
)

// PGRepo loads scan snapshots and persists conflict reports.
type PGRepo struct {
	Pool *pgxpool.Pool
}

const listBusinessIDsSQL = `
SELECT DISTINCT business_id FROM bookings WHERE ends_at > $1 AND status <> 'canceled'`

// ListBusinessIDs returns every business with at least one booking still in
// the future. Businesses with nothing to scan are skipped entirely.
func (r *PGRepo) ListBusinessIDs(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.Pool.Query(ctx, listBusinessIDsSQL, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const snapshotBookingsSQL = `
SELECT b.id, b.starts_at, b.ends_at, s.name
FROM bookings b
JOIN services s ON s.id = b.service_id
WHERE b.business_id = $1 AND b.starts_at > $2 AND b.status <> 'canceled'
ORDER BY b.starts_at`

const snapshotHoursSQL = `
SELECT weekday, open_min, close_min, closed
FROM business_hours
WHERE business_id = $1`

const snapshotStaffingSQL = `
SELECT weekday, employees
FROM staffing
WHERE business_id = $1`

// LoadSnapshot reads the future bookings, opening hours, and staffing roster
// for one business inside a single repeatable-read transaction so the scanner
// never sees hours and bookings from different instants.
func (r *PGRepo) LoadSnapshot(ctx context.Context, businessID string, now time.Time) (Snapshot, error) {
	snap := Snapshot{BusinessID: businessID, TakenAt: now}
	for i := range snap.Hours {
		snap.Hours[i].Closed = true
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return snap, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, snapshotBookingsSQL, businessID, now)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.Start, &b.End, &b.Service); err != nil {
			rows.Close()
			return snap, err
		}
		snap.Bookings = append(snap.Bookings, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = tx.Query(ctx, snapshotHoursSQL, businessID)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var weekday, openMin, closeMin int
		var closed bool
		if err := rows.Scan(&weekday, &openMin, &closeMin, &closed); err != nil {
			rows.Close()
			return snap, err
		}
		if weekday >= 0 && weekday <= 6 {
			snap.Hours[weekday] = schedule.DayHours{Open: schedule.Minutes(openMin), Close: schedule.Minutes(closeMin), Closed: closed}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = tx.Query(ctx, snapshotStaffingSQL, businessID)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var weekday, employees int
		if err := rows.Scan(&weekday, &employees); err != nil {
			rows.Close()
			return snap, err
		}
		if weekday >= 0 && weekday <= 6 {
			snap.Staffing[weekday] = employees
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	return snap, tx.Commit(ctx)
}

const insertReportSQL = `
INSERT INTO conflict_reports (business_id, booking_id, kind, detail, detected_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (business_id, booking_id, kind) DO UPDATE SET detail = $4, detected_at = $5`

// SaveReports upserts the detected conflicts. Re-detecting the same conflict
// refreshes its detail and timestamp instead of duplicating the row.
func (r *PGRepo) SaveReports(ctx context.Context, businessID string, detectedAt time.Time, conflicts []Conflict) error {
	for _, c := range conflicts {
		if _, err := r.Pool.Exec(ctx, insertReportSQL, businessID, c.BookingID, string(c.Kind), c.Detail, detectedAt); err != nil {
			return err
		}
	}
	return nil
}

const clearResolvedSQL = `
DELETE FROM conflict_reports WHERE business_id = $1 AND detected_at < $2`

// ClearResolved drops reports not refreshed by the latest sweep. A booking
// that stopped conflicting simply ages out of the table.
func (r *PGRepo) ClearResolved(ctx context.Context, businessID string, sweepAt time.Time) error {
	_, err := r.Pool.Exec(ctx, clearResolvedSQL, businessID, sweepAt)
	return err
}

const listReportsSQL = `
SELECT booking_id, kind, detail
FROM conflict_reports
WHERE business_id = $1
ORDER BY detected_at DESC`

// ListReports returns the currently open conflicts for a business.
func (r *PGRepo) ListReports(ctx context.Context, businessID string) ([]Conflict, error) {
	rows, err := r.Pool.Query(ctx, listReportsSQL, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Conflict
	for rows.Next() {
		var c Conflict
		if err := rows.Scan(&c.BookingID, &c.Kind, &c.Detail); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

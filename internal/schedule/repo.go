package schedule

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepo reads and writes business hours and staffing rosters.
type PGRepo struct {
	Pool *pgxpool.Pool
}

const loadWeekHoursSQL = `
SELECT weekday, open_min, close_min, closed
FROM business_hours
WHERE business_id = $1`

// LoadWeekHours returns the weekly opening hours. Weekdays without a row are
// treated as closed.
func (r *PGRepo) LoadWeekHours(ctx context.Context, businessID string) (WeekHours, error) {
	var week WeekHours
	for i := range week {
		week[i].Closed = true
	}
	rows, err := r.Pool.Query(ctx, loadWeekHoursSQL, businessID)
	if err != nil {
		return week, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			weekday          int
			openMin, closeMin int
			closed           bool
		)
		if err := rows.Scan(&weekday, &openMin, &closeMin, &closed); err != nil {
			return week, err
		}
		if weekday < 0 || weekday > 6 {
			continue
		}
		week[weekday] = DayHours{Open: Minutes(openMin), Close: Minutes(closeMin), Closed: closed}
	}
	return week, rows.Err()
}

const upsertDayHoursSQL = `
INSERT INTO business_hours (business_id, weekday, open_min, close_min, closed)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (business_id, weekday)
DO UPDATE SET open_min = $3, close_min = $4, closed = $5`

// UpsertDayHours stores the opening window for one weekday.
func (r *PGRepo) UpsertDayHours(ctx context.Context, businessID string, weekday int, hours DayHours) error {
	_, err := r.Pool.Exec(ctx, upsertDayHoursSQL, businessID, weekday, int(hours.Open), int(hours.Close), hours.Closed)
	return err
}

const loadStaffingSQL = `
SELECT weekday, employees
FROM staffing
WHERE business_id = $1`

// LoadStaffing returns the rostered employee count per weekday.
func (r *PGRepo) LoadStaffing(ctx context.Context, businessID string) ([7]int, error) {
	var roster [7]int
	rows, err := r.Pool.Query(ctx, loadStaffingSQL, businessID)
	if err != nil {
		return roster, err
	}
	defer rows.Close()
	for rows.Next() {
		var weekday, employees int
		if err := rows.Scan(&weekday, &employees); err != nil {
			return roster, err
		}
		if weekday < 0 || weekday > 6 {
			continue
		}
		roster[weekday] = employees
	}
	return roster, rows.Err()
}

const upsertStaffingSQL = `
INSERT INTO staffing (business_id, weekday, employees)
VALUES ($1, $2, $3)
ON CONFLICT (business_id, weekday)
DO UPDATE SET employees = $3`

// UpsertStaffing stores the rostered employee count for one weekday.
func (r *PGRepo) UpsertStaffing(ctx context.Context, businessID string, weekday, employees int) error {
	_, err := r.Pool.Exec(ctx, upsertStaffingSQL, businessID, weekday, employees)
	return err
}

const loadBookedSpansSQL = `
SELECT starts_at, ends_at
FROM bookings
WHERE business_id = $1 AND starts_at < $3 AND ends_at > $2 AND status <> 'canceled'`

// LoadBookedSpans returns the occupied spans overlapping [from, to).
func (r *PGRepo) LoadBookedSpans(ctx context.Context, businessID string, from, to time.Time) ([]Span, error) {
	rows, err := r.Pool.Query(ctx, loadBookedSpansSQL, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var spans []Span
	for rows.Next() {
		var s Span
		if err := rows.Scan(&s.Start, &s.End); err != nil {
			return nil, err
		}
		spans = append(spans, s)
	}
	return spans, rows.Err()
}

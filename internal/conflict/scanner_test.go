package conflict

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/marshymcfloat/service-flow/internal/schedule"
)

func manila(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, schedule.Location())
}

func openWeek(open, close schedule.Minutes, staff int) (schedule.WeekHours, [7]int) {
	var hours schedule.WeekHours
	var staffing [7]int
	for i := range hours {
		hours[i] = schedule.DayHours{Open: open, Close: close}
		staffing[i] = staff
	}
	return hours, staffing
}

func TestScanSkipsPastBookings(t *testing.T) {
	hours, staffing := openWeek(9*60, 18*60, 2)
	snap := Snapshot{
		TakenAt: manila(2026, time.September, 7, 12, 0),
		Bookings: []Booking{
			{ID: uuid.New(), Start: manila(2026, time.September, 7, 6, 0), End: manila(2026, time.September, 7, 7, 0)},
		},
		Hours:    hours,
		Staffing: staffing,
	}
	if got := Scan(snap); len(got) != 0 {
		t.Fatalf("past bookings must not be re-validated, got %v", got)
	}
}

func TestScanClosedDay(t *testing.T) {
	hours, staffing := openWeek(9*60, 18*60, 2)
	hours[time.Monday] = schedule.DayHours{Closed: true}
	id := uuid.New()
	snap := Snapshot{
		TakenAt: manila(2026, time.September, 6, 8, 0),
		Bookings: []Booking{
			{ID: id, Start: manila(2026, time.September, 7, 10, 0), End: manila(2026, time.September, 7, 11, 0)},
		},
		Hours:    hours,
		Staffing: staffing,
	}
	got := Scan(snap)
	if len(got) != 1 || got[0].Kind != KindClosedDay || got[0].BookingID != id {
		t.Fatalf("expected a closed_day conflict, got %v", got)
	}
}

func TestScanOutsideHours(t *testing.T) {
	hours, staffing := openWeek(10*60, 17*60, 2)
	id := uuid.New()
	snap := Snapshot{
		TakenAt: manila(2026, time.September, 6, 8, 0),
		Bookings: []Booking{
			// Starts before the new opening time.
			{ID: id, Start: manila(2026, time.September, 7, 9, 0), End: manila(2026, time.September, 7, 10, 0)},
			// Runs past the new closing time.
			{ID: uuid.New(), Start: manila(2026, time.September, 7, 16, 30), End: manila(2026, time.September, 7, 17, 30)},
			// Still valid.
			{ID: uuid.New(), Start: manila(2026, time.September, 7, 11, 0), End: manila(2026, time.September, 7, 12, 0)},
		},
		Hours:    hours,
		Staffing: staffing,
	}
	got := Scan(snap)
	if len(got) != 2 {
		t.Fatalf("expected 2 outside_hours conflicts, got %v", got)
	}
	for _, c := range got {
		if c.Kind != KindOutsideHours {
			t.Fatalf("expected outside_hours, got %v", c)
		}
	}
}

func TestScanInsufficientStaff(t *testing.T) {
	hours, staffing := openWeek(9*60, 18*60, 1)
	snap := Snapshot{
		TakenAt: manila(2026, time.September, 6, 8, 0),
		Bookings: []Booking{
			{ID: uuid.New(), Start: manila(2026, time.September, 7, 10, 0), End: manila(2026, time.September, 7, 11, 0)},
			{ID: uuid.New(), Start: manila(2026, time.September, 7, 10, 30), End: manila(2026, time.September, 7, 11, 30)},
		},
		Hours:    hours,
		Staffing: staffing,
	}
	got := Scan(snap)
	if len(got) != 2 {
		t.Fatalf("both overlapping bookings exceed a single-employee roster, got %v", got)
	}
	for _, c := range got {
		if c.Kind != KindInsufficientStaff {
			t.Fatalf("expected insufficient_staff, got %v", c)
		}
	}
}

func TestScanNoStaffRostered(t *testing.T) {
	hours, staffing := openWeek(9*60, 18*60, 1)
	staffing[time.Monday] = 0
	id := uuid.New()
	snap := Snapshot{
		TakenAt: manila(2026, time.September, 6, 8, 0),
		Bookings: []Booking{
			{ID: id, Start: manila(2026, time.September, 7, 10, 0), End: manila(2026, time.September, 7, 11, 0)},
		},
		Hours:    hours,
		Staffing: staffing,
	}
	got := Scan(snap)
	if len(got) != 1 || got[0].Kind != KindInsufficientStaff {
		t.Fatalf("expected insufficient_staff for empty roster, got %v", got)
	}
}

func TestScanCleanSnapshot(t *testing.T) {
	hours, staffing := openWeek(9*60, 18*60, 2)
	snap := Snapshot{
		TakenAt: manila(2026, time.September, 6, 8, 0),
		Bookings: []Booking{
			{ID: uuid.New(), Start: manila(2026, time.September, 7, 10, 0), End: manila(2026, time.September, 7, 11, 0)},
			{ID: uuid.New(), Start: manila(2026, time.September, 7, 10, 30), End: manila(2026, time.September, 7, 11, 30)},
		},
		Hours:    hours,
		Staffing: staffing,
	}
	if got := Scan(snap); len(got) != 0 {
		t.Fatalf("expected no conflicts, got %v", got)
	}
}

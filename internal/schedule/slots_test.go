package schedule

import (
	"testing"
	"time"
)

func manila(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, Location())
}

func TestAvailableSlotsRespectsOpeningWindow(t *testing.T) {
	date := manila(2026, time.September, 7, 0, 0) // a Monday
	hours := DayHours{Open: 9 * 60, Close: 12 * 60}
	slots := AvailableSlots(date, hours, time.Hour, 30*time.Minute, 1, nil)
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots, got %d: %v", len(slots), slots)
	}
	if !slots[0].Equal(manila(2026, time.September, 7, 9, 0)) {
		t.Fatalf("first slot should open at 09:00, got %v", slots[0])
	}
	last := slots[len(slots)-1]
	if !last.Equal(manila(2026, time.September, 7, 11, 0)) {
		t.Fatalf("last slot must still finish by close, got %v", last)
	}
}

func TestAvailableSlotsClosedDay(t *testing.T) {
	date := manila(2026, time.September, 6, 0, 0)
	if slots := AvailableSlots(date, DayHours{Closed: true}, time.Hour, 30*time.Minute, 2, nil); slots != nil {
		t.Fatalf("expected no slots on a closed day, got %v", slots)
	}
}

func TestAvailableSlotsRespectsCapacity(t *testing.T) {
	date := manila(2026, time.September, 7, 0, 0)
	hours := DayHours{Open: 9 * 60, Close: 11 * 60}
	booked := []Span{
		{Start: manila(2026, time.September, 7, 9, 0), End: manila(2026, time.September, 7, 10, 0)},
		{Start: manila(2026, time.September, 7, 9, 30), End: manila(2026, time.September, 7, 10, 30)},
	}
	slots := AvailableSlots(date, hours, time.Hour, 30*time.Minute, 2, booked)
	// 09:00 and 09:30 both hit two concurrent bookings; 10:00 only one.
	for _, s := range slots {
		if s.Hour() == 9 {
			t.Fatalf("slot %v should be saturated", s)
		}
	}
	if len(slots) != 1 || slots[0].Hour() != 10 {
		t.Fatalf("expected the 10:00 slot only, got %v", slots)
	}
}

func TestSpanOverlaps(t *testing.T) {
	a := Span{Start: manila(2026, time.September, 7, 9, 0), End: manila(2026, time.September, 7, 10, 0)}
	b := Span{Start: manila(2026, time.September, 7, 10, 0), End: manila(2026, time.September, 7, 11, 0)}
	if a.Overlaps(b) {
		t.Fatal("touching spans must not overlap")
	}
	c := Span{Start: manila(2026, time.September, 7, 9, 59), End: manila(2026, time.September, 7, 10, 30)}
	if !a.Overlaps(c) {
		t.Fatal("expected overlap")
	}
}

func TestHorizon(t *testing.T) {
	now := manila(2026, time.September, 7, 15, 42)
	from, to := Horizon(now, 30)
	if !from.Equal(manila(2026, time.September, 7, 0, 0)) {
		t.Fatalf("horizon must start at local midnight, got %v", from)
	}
	if !to.Equal(manila(2026, time.October, 7, 0, 0)) {
		t.Fatalf("expected 30 day horizon, got %v", to)
	}
}

func TestDayHoursContains(t *testing.T) {
	d := DayHours{Open: 9 * 60, Close: 18 * 60}
	if !d.Contains(9*60, 10*60) {
		t.Fatal("window inside opening hours must be contained")
	}
	if d.Contains(8*60, 10*60) || d.Contains(17*60+30, 18*60+30) {
		t.Fatal("window outside opening hours must not be contained")
	}
	if (DayHours{Closed: true}).Contains(10*60, 11*60) {
		t.Fatal("closed day contains nothing")
	}
}

func TestMinutesString(t *testing.T) {
	if got := Minutes(9*60 + 5).String(); got != "09:05" {
		t.Fatalf("expected 09:05, got %s", got)
	}
}

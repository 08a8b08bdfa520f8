package conflict

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marshymcfloat/service-flow/internal/schedule"
)

// Kind classifies a detected conflict.
type Kind string

const (
	// KindClosedDay flags a booking on a day the business no longer opens.
	KindClosedDay Kind = "closed_day"
	// KindOutsideHours flags a booking that no longer fits the opening window.
	KindOutsideHours Kind = "outside_hours"
	// KindInsufficientStaff flags a booking exceeding the rostered staff.
	KindInsufficientStaff Kind = "insufficient_staff"
)

// Booking is the read-only view of a future booking the scanner validates.
type Booking struct {
	ID      uuid.UUID
	Start   time.Time
	End     time.Time
	Service string
}

// Span returns the occupied interval of the booking.
func (b Booking) Span() schedule.Span {
	return schedule.Span{Start: b.Start, End: b.End}
}

// Snapshot is a consistent read of everything the scanner needs for one
// business. Callers must produce it from a single transaction; the scanner
// performs no reads of its own.
type Snapshot struct {
	BusinessID string
	TakenAt    time.Time
	Bookings   []Booking
	Hours      schedule.WeekHours
	// Staffing is the number of employees rostered per weekday.
	Staffing [7]int
}

// Conflict is a structured signal that a booking is no longer valid under
// the current hours or staffing. The scanner only reports; remediation
// (re-slotting, refunds, notifications) is a separate concern.
type Conflict struct {
	BookingID uuid.UUID `json:"bookingId"`
	Kind      Kind      `json:"kind"`
	Detail    string    `json:"detail"`
}

// Scan re-validates every future booking in the snapshot against the current
// business hours and staffing and returns one conflict per violated rule.
// Bookings already underway or in the past are skipped. The function is pure:
// it mutates nothing and is safe for concurrent use.
func Scan(snap Snapshot) []Conflict {
	var conflicts []Conflict
	for _, b := range snap.Bookings {
		if !b.Start.After(snap.TakenAt) {
			continue
		}
		if c, ok := hoursConflict(b, snap.Hours); ok {
			conflicts = append(conflicts, c)
			continue
		}
		if c, ok := staffingConflict(b, snap); ok {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

func hoursConflict(b Booking, hours schedule.WeekHours) (Conflict, bool) {
	local := b.Start.In(schedule.Location())
	day := hours.For(b.Start)
	if day.Closed {
		return Conflict{
			BookingID: b.ID,
			Kind:      KindClosedDay,
			Detail:    fmt.Sprintf("business is closed on %s", local.Weekday()),
		}, true
	}
	from := schedule.MinutesOf(b.Start)
	to := schedule.MinutesOf(b.End)
	if !day.Contains(from, to) {
		return Conflict{
			BookingID: b.ID,
			Kind:      KindOutsideHours,
			Detail: fmt.Sprintf("booking %s-%s falls outside opening hours %s-%s",
				from, to, day.Open, day.Close),
		}, true
	}
	return Conflict{}, false
}

func staffingConflict(b Booking, snap Snapshot) (Conflict, bool) {
	weekday := int(b.Start.In(schedule.Location()).Weekday())
	rostered := snap.Staffing[weekday]
	if rostered <= 0 {
		return Conflict{
			BookingID: b.ID,
			Kind:      KindInsufficientStaff,
			Detail:    fmt.Sprintf("no employees rostered on %s", b.Start.In(schedule.Location()).Weekday()),
		}, true
	}
	concurrent := concurrentWith(b, snap.Bookings)
	if concurrent > rostered {
		return Conflict{
			BookingID: b.ID,
			Kind:      KindInsufficientStaff,
			Detail:    fmt.Sprintf("%d concurrent bookings exceed %d rostered employees", concurrent, rostered),
		}, true
	}
	return Conflict{}, false
}

// concurrentWith returns the peak number of bookings (including b itself)
// simultaneously in progress during b's span.
func concurrentWith(b Booking, all []Booking) int {
	span := b.Span()
	peak := 0
	for _, other := range all {
		if !other.Span().Overlaps(span) {
			continue
		}
		at := other.Start
		if at.Before(b.Start) {
			at = b.Start
		}
		n := 0
		for _, third := range all {
			ts := third.Span()
			if !ts.Overlaps(span) {
				continue
			}
			if !ts.Start.After(at) && ts.End.After(at) {
				n++
			}
		}
		if n > peak {
			peak = n
		}
	}
	return peak
}

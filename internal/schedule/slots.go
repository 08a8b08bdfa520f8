package schedule

import "time"

// Span is a half-open time interval [Start, End) occupied by a booking.
type Span struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two spans share any instant.
func (s Span) Overlaps(other Span) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// AvailableSlots computes the open start times for a service on the given
// date. A slot is open when its whole duration fits inside the day's opening
// window and fewer than capacity existing bookings overlap every instant of
// it. Results are in the business timezone, stepped from the opening time.
func AvailableSlots(date time.Time, hours DayHours, duration, step time.Duration, capacity int, existing []Span) []time.Time {
	if hours.Closed || duration <= 0 || capacity <= 0 {
		return nil
	}
	if step <= 0 {
		step = 30 * time.Minute
	}
	local := date.In(Location())
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Location())

	durationMin := Minutes(duration / time.Minute)
	stepMin := Minutes(step / time.Minute)

	var slots []time.Time
	for open := hours.Open; open+durationMin <= hours.Close; open += stepMin {
		start := midnight.Add(time.Duration(open) * time.Minute)
		end := start.Add(duration)
		if PeakConcurrent(Span{Start: start, End: end}, existing) < capacity {
			slots = append(slots, start)
		}
	}
	return slots
}

// PeakConcurrent returns the peak number of existing spans simultaneously
// overlapping any instant of the candidate span. Peaks can only change at
// span boundaries, so sampling the candidate start and each overlapping
// booking's start is sufficient.
func PeakConcurrent(candidate Span, existing []Span) int {
	peak := countAt(candidate.Start, candidate, existing)
	for _, b := range existing {
		if !b.Overlaps(candidate) || !b.Start.After(candidate.Start) {
			continue
		}
		if n := countAt(b.Start, candidate, existing); n > peak {
			peak = n
		}
	}
	return peak
}

func countAt(at time.Time, candidate Span, existing []Span) int {
	n := 0
	for _, b := range existing {
		if !b.Overlaps(candidate) {
			continue
		}
		if !b.Start.After(at) && b.End.After(at) {
			n++
		}
	}
	return n
}

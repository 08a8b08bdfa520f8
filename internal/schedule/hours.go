package schedule

import (
	"fmt"
	"sync"
	"time"
)

// Business time is always interpreted in a single fixed zone regardless of
// where the server or the customer sits.
const zoneName = "Asia/Manila"

var (
	zoneOnce sync.Once
	zone     *time.Location
)

// Location returns the canonical business timezone. It falls back to a fixed
// UTC+8 offset when the tz database is unavailable; the zone observes no DST
// so the fallback is exact.
func Location() *time.Location {
	zoneOnce.Do(func() {
		loc, err := time.LoadLocation(zoneName)
		if err != nil {
			loc = time.FixedZone(zoneName, 8*60*60)
		}
		zone = loc
	})
	return zone
}

// Minutes counts minutes from local midnight.
type Minutes int

// String renders the value as HH:MM.
func (m Minutes) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// MinutesOf converts a local clock time to minutes from midnight.
func MinutesOf(t time.Time) Minutes {
	local := t.In(Location())
	return Minutes(local.Hour()*60 + local.Minute())
}

// DayHours describes the opening window for one weekday. Open and Close are
// minutes from midnight; Closed overrides both.
type DayHours struct {
	Open   Minutes
	Close  Minutes
	Closed bool
}

// WeekHours indexes opening hours by weekday (Sunday == 0).
type WeekHours [7]DayHours

// For returns the hours for the weekday of the given instant in the business
// timezone.
func (w WeekHours) For(t time.Time) DayHours {
	return w[int(t.In(Location()).Weekday())]
}

// Contains reports whether the window [from, to) falls entirely inside the
// opening hours.
func (d DayHours) Contains(from, to Minutes) bool {
	if d.Closed {
		return false
	}
	return from >= d.Open && to <= d.Close
}

// Horizon derives the bookable date range starting at the beginning of the
// current day in the business timezone and spanning the given number of days.
func Horizon(now time.Time, days int) (time.Time, time.Time) {
	if days < 1 {
		days = 1
	}
	local := now.In(Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Location())
	return start, start.AddDate(0, 0, days)
}

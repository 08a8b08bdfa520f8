package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/marshymcfloat/service-flow/internal/schedule"
)

type stubStore struct {
	businesses []string
	snapshots  map[string]Snapshot
	saved      map[string][]Conflict
	cleared    []string
}

func (s *stubStore) ListBusinessIDs(context.Context, time.Time) ([]string, error) {
	return s.businesses, nil
}

func (s *stubStore) LoadSnapshot(_ context.Context, businessID string, now time.Time) (Snapshot, error) {
	snap := s.snapshots[businessID]
	snap.BusinessID = businessID
	snap.TakenAt = now
	return snap, nil
}

func (s *stubStore) SaveReports(_ context.Context, businessID string, _ time.Time, conflicts []Conflict) error {
	if s.saved == nil {
		s.saved = map[string][]Conflict{}
	}
	s.saved[businessID] = conflicts
	return nil
}

func (s *stubStore) ClearResolved(_ context.Context, businessID string, _ time.Time) error {
	s.cleared = append(s.cleared, businessID)
	return nil
}

func (s *stubStore) ListReports(_ context.Context, businessID string) ([]Conflict, error) {
	return s.saved[businessID], nil
}

func closedSunday() schedule.WeekHours {
	var week schedule.WeekHours
	for i := range week {
		week[i] = schedule.DayHours{Open: 540, Close: 1080}
	}
	week[0].Closed = true
	return week
}

func TestScanBusinessPersistsConflicts(t *testing.T) {
	loc := schedule.Location()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, loc)
	// 2026-03-08 is a Sunday, which the business just closed
	bookingID := uuid.New()
	store := &stubStore{snapshots: map[string]Snapshot{
		"acme": {
			Bookings: []Booking{{
				ID:      bookingID,
				Start:   time.Date(2026, 3, 8, 10, 0, 0, 0, loc),
				End:     time.Date(2026, 3, 8, 11, 0, 0, 0, loc),
				Service: "Haircut",
			}},
			Hours:    closedSunday(),
			Staffing: [7]int{1, 1, 1, 1, 1, 1, 1},
		},
	}}
	svc := &Service{Store: store, Logger: zerolog.Nop(), Now: func() time.Time { return now }}

	conflicts, err := svc.ScanBusiness(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, KindClosedDay, conflicts[0].Kind)
	require.Equal(t, bookingID, conflicts[0].BookingID)
	require.Len(t, store.saved["acme"], 1)
	require.Equal(t, []string{"acme"}, store.cleared)
}

func TestScanBusinessCleanSnapshot(t *testing.T) {
	loc := schedule.Location()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, loc)
	store := &stubStore{snapshots: map[string]Snapshot{
		"acme": {
			Bookings: []Booking{{
				ID:    uuid.New(),
				Start: time.Date(2026, 3, 3, 10, 0, 0, 0, loc),
				End:   time.Date(2026, 3, 3, 11, 0, 0, 0, loc),
			}},
			Hours:    closedSunday(),
			Staffing: [7]int{1, 1, 1, 1, 1, 1, 1},
		},
	}}
	svc := &Service{Store: store, Logger: zerolog.Nop(), Now: func() time.Time { return now }}

	conflicts, err := svc.ScanBusiness(context.Background(), "acme")
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestSweepAllScansEveryBusiness(t *testing.T) {
	loc := schedule.Location()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, loc)
	store := &stubStore{
		businesses: []string{"acme", "globex"},
		snapshots:  map[string]Snapshot{},
	}
	svc := &Service{Store: store, Logger: zerolog.Nop(), Now: func() time.Time { return now }}

	require.NoError(t, svc.SweepAll(context.Background()))
	require.ElementsMatch(t, []string{"acme", "globex"}, store.cleared)
}

package conflict

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marshymcfloat/service-flow/internal/events"
	"github.com/marshymcfloat/service-flow/internal/obs"
)

// sweepAggregateID is the stable aggregate for sweep-level events, which do
// not belong to any single booking or business.
var sweepAggregateID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("conflict-sweep"))

// Store is the persistence surface the sweep service needs.
type Store interface {
	ListBusinessIDs(ctx context.Context, now time.Time) ([]string, error)
	LoadSnapshot(ctx context.Context, businessID string, now time.Time) (Snapshot, error)
	SaveReports(ctx context.Context, businessID string, detectedAt time.Time, conflicts []Conflict) error
	ClearResolved(ctx context.Context, businessID string, sweepAt time.Time) error
	ListReports(ctx context.Context, businessID string) ([]Conflict, error)
}

// Service runs conflict scans over booking snapshots and records the results.
type Service struct {
	Store  Store
	Bus    *events.Bus
	Logger zerolog.Logger
	Now    func() time.Time
}

// ScanBusiness loads a fresh snapshot for the business, scans it, persists
// the resulting reports, and emits one event per detected conflict.
func (s *Service) ScanBusiness(ctx context.Context, businessID string) ([]Conflict, error) {
	started := time.Now()
	now := s.now()

	snap, err := s.Store.LoadSnapshot(ctx, businessID, now)
	if err != nil {
		s.observeSweep("error", started)
		return nil, err
	}
	conflicts := Scan(snap)

	if err := s.Store.SaveReports(ctx, businessID, now, conflicts); err != nil {
		s.observeSweep("error", started)
		return nil, err
	}
	if err := s.Store.ClearResolved(ctx, businessID, now); err != nil {
		s.observeSweep("error", started)
		return nil, err
	}

	for _, c := range conflicts {
		if obs.ConflictsDetectedTotal != nil {
			obs.ConflictsDetectedTotal.WithLabelValues(string(c.Kind)).Inc()
		}
		if s.Bus != nil {
			_, _ = s.Bus.Emit(ctx, events.TopicConflictDetected, businessID, c.BookingID, c)
		}
	}

	s.Logger.Info().
		Str("business_id", businessID).
		Int("bookings", len(snap.Bookings)).
		Int("conflicts", len(conflicts)).
		Msg("conflict scan finished")
	s.observeSweep("ok", started)
	return conflicts, nil
}

// SweepAll scans every business with future bookings. Failures for one
// business are logged and do not stop the sweep.
func (s *Service) SweepAll(ctx context.Context) error {
	ids, err := s.Store.ListBusinessIDs(ctx, s.now())
	if err != nil {
		return err
	}
	total := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conflicts, err := s.ScanBusiness(ctx, id)
		if err != nil {
			s.Logger.Error().Err(err).Str("business_id", id).Msg("conflict scan failed")
			continue
		}
		total += len(conflicts)
	}
	if s.Bus != nil && len(ids) > 0 {
		_, _ = s.Bus.Emit(ctx, events.TopicConflictSweepDone, "", sweepAggregateID, map[string]any{
			"businesses": len(ids),
			"conflicts":  total,
		})
	}
	return nil
}

// Reports returns the open conflicts recorded by the last sweep.
func (s *Service) Reports(ctx context.Context, businessID string) ([]Conflict, error) {
	return s.Store.ListReports(ctx, businessID)
}

func (s *Service) observeSweep(result string, started time.Time) {
	if obs.SweepRunsTotal != nil {
		obs.SweepRunsTotal.WithLabelValues(result).Inc()
	}
	if obs.SweepDuration != nil {
		obs.SweepDuration.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(started)))
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

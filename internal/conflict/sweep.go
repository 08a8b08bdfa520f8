package conflict

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/marshymcfloat/service-flow/internal/lock"
	"github.com/marshymcfloat/service-flow/internal/obs"
)

const (
	// TaskSweep enumerates businesses and fans out per-business scans.
	TaskSweep = "conflict:sweep"
	// TaskScan re-validates the bookings of a single business.
	TaskScan = "conflict:scan"
)

type scanPayload struct {
	BusinessID string `json:"businessId"`
}

// NewSweepTask builds the periodic fan-out task.
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSweep, nil, asynq.MaxRetry(2))
}

// NewScanTask builds a per-business scan task.
func NewScanTask(businessID string) (*asynq.Task, error) {
	payload, err := json.Marshal(scanPayload{BusinessID: businessID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScan, payload, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}

// Sweeper glues the scan service to the task queue. The redis lock keeps
// overlapping sweeps of the same business from racing when a previous run
// overshoots the schedule interval.
type Sweeper struct {
	Svc     *Service
	Tasks   *asynq.Client
	Locker  *lock.Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// HandleSweep enqueues one scan task per business with future bookings.
func (s *Sweeper) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	ids, err := s.Svc.Store.ListBusinessIDs(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}
	for _, id := range ids {
		task, err := NewScanTask(id)
		if err != nil {
			return err
		}
		if _, err := s.Tasks.EnqueueContext(ctx, task); err != nil {
			return fmt.Errorf("enqueue scan for %s: %w", id, err)
		}
	}
	s.Logger.Info().Int("businesses", len(ids)).Msg("conflict sweep fanned out")
	return nil
}

// HandleScan runs one business scan under a per-business lock. A held lock
// means another worker is already scanning; the task is dropped, not retried.
func (s *Sweeper) HandleScan(ctx context.Context, task *asynq.Task) error {
	var payload scanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode scan payload: %w", err)
	}
	if payload.BusinessID == "" {
		return fmt.Errorf("scan payload missing business id: %w", asynq.SkipRetry)
	}

	acquired, err := s.Locker.TryLock(ctx, "sweep:"+payload.BusinessID, s.lockTTL(), func(ctx context.Context) error {
		_, err := s.Svc.ScanBusiness(ctx, payload.BusinessID)
		return err
	})
	if err != nil {
		return err
	}
	if !acquired {
		if obs.SweepRunsTotal != nil {
			obs.SweepRunsTotal.WithLabelValues("skipped").Inc()
		}
		s.Logger.Debug().Str("business_id", payload.BusinessID).Msg("scan already in progress, skipping")
	}
	return nil
}

// NewMux registers the sweep handlers on an asynq mux.
func (s *Sweeper) NewMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskSweep, s.HandleSweep)
	mux.HandleFunc(TaskScan, s.HandleScan)
	return mux
}

func (s *Sweeper) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return 5 * time.Minute
}

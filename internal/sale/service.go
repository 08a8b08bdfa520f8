package sale

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marshymcfloat/service-flow/internal/cache"
	"github.com/marshymcfloat/service-flow/internal/events"
	"github.com/marshymcfloat/service-flow/internal/obs"
	"github.com/marshymcfloat/service-flow/internal/tenant"
)

// ErrInvalidEvent marks a sale event rejected at configuration time.
var ErrInvalidEvent = errors.New("sale: invalid event")

// Querier captures the database methods required by the sale service.
type Querier interface {
	ListActiveEvents(ctx context.Context, businessID string, at time.Time) ([]StoredEvent, error)
	ListEvents(ctx context.Context, businessID string) ([]StoredEvent, error)
	CreateEvent(ctx context.Context, ev StoredEvent) (StoredEvent, error)
	UpdateEvent(ctx context.Context, ev StoredEvent) (StoredEvent, error)
	DeleteEvent(ctx context.Context, businessID string, id uuid.UUID) error
}

// Service loads active sale events and applies the discount engine to line
// items. Event writes invalidate the per-business cache and emit domain events.
type Service struct {
	Q     Querier
	Cache *cache.Cache
	Bus   *events.Bus
	Now   func() time.Time
}

// ActiveEvents returns the events currently in their sale window for the
// business, consulting the cache first.
func (s *Service) ActiveEvents(ctx context.Context, businessID string) ([]Event, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("sale service not configured")
	}
	key := tenant.PrefixKey(businessID, "sale:active")
	var stored []StoredEvent
	if hit, err := s.Cache.GetJSON(ctx, key, &stored); err == nil && hit {
		return decodeAll(stored), nil
	}
	stored, err := s.Q.ListActiveEvents(ctx, businessID, s.now())
	if err != nil {
		return nil, err
	}
	_ = s.Cache.SetJSON(ctx, key, stored)
	return decodeAll(stored), nil
}

// BestDiscount loads active events and selects the winning discount for the
// line item. A nil discount means full price.
func (s *Service) BestDiscount(ctx context.Context, businessID string, serviceID uuid.UUID, packageID *uuid.UUID, price float64) (*Discount, error) {
	active, err := s.ActiveEvents(ctx, businessID)
	if err != nil {
		return nil, err
	}
	discount := ApplicableDiscount(serviceID, packageID, price, active)
	if discount != nil && obs.DiscountsAppliedTotal != nil {
		kind := string(KindFixedAmount)
		for _, ev := range active {
			if ev.Title == discount.Reason {
				kind = string(ev.Kind)
				break
			}
		}
		obs.DiscountsAppliedTotal.WithLabelValues(kind).Inc()
	}
	return discount, nil
}

// CreateEvent validates and persists a new sale event.
func (s *Service) CreateEvent(ctx context.Context, ev StoredEvent) (StoredEvent, error) {
	if err := validateEvent(ev); err != nil {
		return StoredEvent{}, err
	}
	created, err := s.Q.CreateEvent(ctx, ev)
	if err != nil {
		return StoredEvent{}, err
	}
	s.invalidate(ctx, ev.BusinessID)
	s.emit(ctx, events.TopicSaleEventCreated, created)
	return created, nil
}

// UpdateEvent validates and persists changes to an existing sale event.
func (s *Service) UpdateEvent(ctx context.Context, ev StoredEvent) (StoredEvent, error) {
	if ev.ID == uuid.Nil {
		return StoredEvent{}, fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	if err := validateEvent(ev); err != nil {
		return StoredEvent{}, err
	}
	updated, err := s.Q.UpdateEvent(ctx, ev)
	if err != nil {
		return StoredEvent{}, err
	}
	s.invalidate(ctx, ev.BusinessID)
	s.emit(ctx, events.TopicSaleEventUpdated, updated)
	return updated, nil
}

// DeleteEvent removes a sale event and invalidates the cache.
func (s *Service) DeleteEvent(ctx context.Context, businessID string, id uuid.UUID) error {
	if err := s.Q.DeleteEvent(ctx, businessID, id); err != nil {
		return err
	}
	s.invalidate(ctx, businessID)
	return nil
}

// validateEvent rejects misconfigured events at entry so the discount engine
// only ever sees well-formed rules. The engine still clamps defensively.
func validateEvent(ev StoredEvent) error {
	if strings.TrimSpace(ev.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	if ev.Kind != KindPercentage && ev.Kind != KindFixedAmount {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, ev.Kind)
	}
	if ev.Value <= 0 {
		return fmt.Errorf("%w: value must be positive", ErrInvalidEvent)
	}
	if ev.Kind == KindPercentage && ev.Value > 100 {
		return fmt.Errorf("%w: percentage cannot exceed 100", ErrInvalidEvent)
	}
	if ev.ScopeType != ScopeService && ev.ScopeType != ScopePackage {
		return fmt.Errorf("%w: unknown scope type %q", ErrInvalidEvent, ev.ScopeType)
	}
	if len(ev.TargetIDs) == 0 {
		return fmt.Errorf("%w: at least one target is required", ErrInvalidEvent)
	}
	if !ev.EndsAt.After(ev.StartsAt) {
		return fmt.Errorf("%w: sale window must end after it starts", ErrInvalidEvent)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, businessID string) {
	_ = s.Cache.Invalidate(ctx, tenant.PrefixKey(businessID, "sale:active"))
}

func (s *Service) emit(ctx context.Context, topic string, ev StoredEvent) {
	if s.Bus == nil {
		return
	}
	_, _ = s.Bus.Emit(ctx, topic, ev.BusinessID, ev.ID, map[string]any{
		"title": ev.Title,
		"kind":  ev.Kind,
		"value": ev.Value,
	})
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func decodeAll(stored []StoredEvent) []Event {
	out := make([]Event, 0, len(stored))
	for _, ev := range stored {
		out = append(out, ev.Decode())
	}
	return out
}

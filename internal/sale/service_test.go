package sale

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubQuerier struct {
	active  []StoredEvent
	created []StoredEvent
	updated []StoredEvent
	deleted []uuid.UUID
}

func (s *stubQuerier) ListActiveEvents(context.Context, string, time.Time) ([]StoredEvent, error) {
	return s.active, nil
}

func (s *stubQuerier) ListEvents(context.Context, string) ([]StoredEvent, error) {
	return s.active, nil
}

func (s *stubQuerier) CreateEvent(_ context.Context, ev StoredEvent) (StoredEvent, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	s.created = append(s.created, ev)
	return ev, nil
}

func (s *stubQuerier) UpdateEvent(_ context.Context, ev StoredEvent) (StoredEvent, error) {
	s.updated = append(s.updated, ev)
	return ev, nil
}

func (s *stubQuerier) DeleteEvent(_ context.Context, _ string, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func validStored() StoredEvent {
	return StoredEvent{
		BusinessID: "acme",
		Title:      "Summer Promo",
		Kind:       KindPercentage,
		Value:      10,
		ScopeType:  ScopeService,
		TargetIDs:  []uuid.UUID{uuid.New()},
		StartsAt:   time.Now(),
		EndsAt:     time.Now().Add(24 * time.Hour),
	}
}

func TestCreateEventValidates(t *testing.T) {
	q := &stubQuerier{}
	svc := &Service{Q: q}
	ctx := context.Background()

	_, err := svc.CreateEvent(ctx, validStored())
	require.NoError(t, err)
	require.Len(t, q.created, 1)

	bad := validStored()
	bad.Value = -5
	_, err = svc.CreateEvent(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidEvent)

	bad = validStored()
	bad.Kind = KindPercentage
	bad.Value = 150
	_, err = svc.CreateEvent(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidEvent)

	bad = validStored()
	bad.TargetIDs = nil
	_, err = svc.CreateEvent(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidEvent)

	bad = validStored()
	bad.EndsAt = bad.StartsAt
	_, err = svc.CreateEvent(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidEvent)

	bad = validStored()
	bad.ScopeType = "CATEGORY"
	_, err = svc.CreateEvent(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestBestDiscountUsesActiveEvents(t *testing.T) {
	serviceID := uuid.New()
	q := &stubQuerier{active: []StoredEvent{
		{
			ID: uuid.New(), Title: "Ten Percent", Kind: KindPercentage, Value: 10,
			ScopeType: ScopeService, TargetIDs: []uuid.UUID{serviceID},
		},
		{
			ID: uuid.New(), Title: "Flat Five", Kind: KindFixedAmount, Value: 5,
			ScopeType: ScopeService, TargetIDs: []uuid.UUID{serviceID},
		},
	}}
	svc := &Service{Q: q}

	discount, err := svc.BestDiscount(context.Background(), "acme", serviceID, nil, 100)
	require.NoError(t, err)
	require.NotNil(t, discount)
	require.Equal(t, "Ten Percent", discount.Reason)
	require.InDelta(t, 10, discount.Amount, 1e-9)
	require.InDelta(t, 90, discount.FinalPrice, 1e-9)
}

func TestBestDiscountNoMatchIsNil(t *testing.T) {
	q := &stubQuerier{active: []StoredEvent{{
		ID: uuid.New(), Title: "Other", Kind: KindFixedAmount, Value: 5,
		ScopeType: ScopeService, TargetIDs: []uuid.UUID{uuid.New()},
	}}}
	svc := &Service{Q: q}

	discount, err := svc.BestDiscount(context.Background(), "acme", uuid.New(), nil, 100)
	require.NoError(t, err)
	require.Nil(t, discount)
}

func TestStoredEventDecodeScope(t *testing.T) {
	pkg := uuid.New()
	stored := StoredEvent{ScopeType: ScopePackage, TargetIDs: []uuid.UUID{pkg}}
	ev := stored.Decode()
	require.True(t, ev.Scope.Matches(uuid.New(), &pkg))
	require.False(t, ev.Scope.Matches(uuid.New(), nil))
}

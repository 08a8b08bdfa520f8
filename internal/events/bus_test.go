package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marshymcfloat/service-flow/internal/events"
)

type stubStore struct {
	lastTopic    string
	lastBusiness string
	lastPayload  []byte
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic, businessID string, aggregateID uuid.UUID, payload []byte) (events.DomainEvent, error) {
	s.lastTopic = topic
	s.lastBusiness = businessID
	s.lastPayload = payload
	return events.DomainEvent{
		ID:          uuid.New(),
		Topic:       topic,
		BusinessID:  businessID,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureScheduler struct {
	events []events.DomainEvent
}

func (c *captureScheduler) Schedule(_ context.Context, event events.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

type captureNotifier struct {
	events []events.DomainEvent
}

func (c *captureNotifier) Notify(_ context.Context, event events.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     store,
		Scheduler: scheduler,
		Notifiers: []events.Notifier{notifier},
	}

	aggregate := uuid.New()
	payload := map[string]any{"bookingId": "123"}
	ctx := context.Background()
	event, err := bus.Emit(ctx, events.TopicBookingCreated, "acme", aggregate, payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicBookingCreated, store.lastTopic)
	require.Equal(t, "acme", store.lastBusiness)
	require.JSONEq(t, `{"bookingId":"123"}`, string(store.lastPayload))
	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, scheduler.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "123", decoded["bookingId"])
}

func TestEmitRejectsMissingAggregate(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), events.TopicBookingCreated, "acme", uuid.Nil, nil)
	require.Error(t, err)
}

func TestEmitRejectsInvalidPayload(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), events.TopicBookingCreated, "acme", uuid.New(), []byte("{not json"))
	require.Error(t, err)
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, events.DomainEvent) error {
	return errors.New("boom")
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}, Notifiers: []events.Notifier{failingNotifier{}}}
	event, err := bus.Emit(context.Background(), events.TopicConflictDetected, "acme", uuid.New(), nil)
	require.Error(t, err)
	require.NotEqual(t, uuid.Nil, event.ID, "event should persist even when a notifier fails")
}

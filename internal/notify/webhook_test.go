package notify_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marshymcfloat/service-flow/internal/events"
	"github.com/marshymcfloat/service-flow/internal/notify"
)

func TestSignatureAndHeaders(t *testing.T) {
	type recorded struct {
		req  *http.Request
		body []byte
	}
	received := make(chan recorded, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- recorded{req: r, body: body}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	dispatcher := &notify.Dispatcher{
		HTTP:    srv.Client(),
		Enabled: true,
	}
	endpoint := notify.Endpoint{ID: uuid.New(), URL: srv.URL, Secret: "secret"}
	event := events.DomainEvent{
		ID:         uuid.New(),
		Topic:      events.TopicConflictDetected,
		BusinessID: "acme",
		Payload:    []byte(`{"bookingId":"1"}`),
		OccurredAt: time.Now(),
	}
	delivery := notify.Delivery{ID: uuid.New()}

	status, _, err := dispatcher.Deliver(context.Background(), endpoint, event, delivery)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	record := <-received
	req := record.req
	require.Equal(t, "application/json", req.Header.Get("Content-Type"))
	require.Equal(t, event.ID.String(), req.Header.Get("X-Event-ID"))
	require.Equal(t, delivery.ID.String(), req.Header.Get("X-Idempotency-Key"))
	timestamp := req.Header.Get("X-Timestamp")
	require.NotEmpty(t, timestamp)
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	require.NoError(t, err)
	require.Equal(t, notify.ComputeSignature(endpoint.Secret, ts, req.Header.Get("X-Event-ID"), record.body), req.Header.Get("X-Signature"))
}

func TestDeliverRejectsNonLocalHTTP(t *testing.T) {
	dispatcher := &notify.Dispatcher{HTTP: http.DefaultClient, Enabled: true}
	endpoint := notify.Endpoint{ID: uuid.New(), URL: "http://example.com/webhook", Secret: "s"}
	_, _, err := dispatcher.Deliver(context.Background(), endpoint, events.DomainEvent{ID: uuid.New()}, notify.Delivery{ID: uuid.New()})
	require.Error(t, err)
}

type scheduleStore struct {
	notify.Store
	endpoints []notify.Endpoint
	enqueued  []uuid.UUID
	err       error
}

func (s *scheduleStore) ListActiveEndpointsForTopic(context.Context, string, string) ([]notify.Endpoint, error) {
	return s.endpoints, nil
}

func (s *scheduleStore) EnqueueDelivery(_ context.Context, endpointID, _ uuid.UUID, _ int32) (notify.Delivery, error) {
	if s.err != nil {
		return notify.Delivery{}, s.err
	}
	s.enqueued = append(s.enqueued, endpointID)
	return notify.Delivery{ID: uuid.New(), EndpointID: endpointID}, nil
}

func TestScheduleEnqueuesPerEndpoint(t *testing.T) {
	store := &scheduleStore{endpoints: []notify.Endpoint{
		{ID: uuid.New(), Active: true},
		{ID: uuid.New(), Active: true},
	}}
	dispatcher := &notify.Dispatcher{Store: store, Enabled: true}
	event := events.DomainEvent{ID: uuid.New(), Topic: events.TopicConflictDetected, BusinessID: "acme"}

	require.NoError(t, dispatcher.Schedule(context.Background(), event))
	require.Len(t, store.enqueued, 2)
}

func TestScheduleDisabledIsNoop(t *testing.T) {
	store := &scheduleStore{endpoints: []notify.Endpoint{{ID: uuid.New()}}, err: errors.New("should not be called")}
	dispatcher := &notify.Dispatcher{Store: store, Enabled: false}
	require.NoError(t, dispatcher.Schedule(context.Background(), events.DomainEvent{ID: uuid.New(), Topic: "x"}))
	require.Empty(t, store.enqueued)
}

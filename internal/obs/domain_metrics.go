package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BookingQuotesTotal counts booking price quote outcomes.
	BookingQuotesTotal *prometheus.CounterVec
	// BookingsCreatedTotal counts confirmed booking submissions by payment method and type.
	BookingsCreatedTotal *prometheus.CounterVec
	// DiscountsAppliedTotal counts sale discounts applied by discount kind.
	DiscountsAppliedTotal *prometheus.CounterVec
	// ConflictsDetectedTotal counts conflicts found by the scanner, labelled by kind.
	ConflictsDetectedTotal *prometheus.CounterVec
	// SweepRunsTotal counts conflict sweep runs by result.
	SweepRunsTotal *prometheus.CounterVec
	// SweepDuration records per-business sweep latency in milliseconds.
	SweepDuration *prometheus.HistogramVec
	// WebhookDeliveriesTotal tracks conflict report webhook dispatch outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// WebhookDispatchDLQ counts deliveries moved to the dead-letter queue.
	WebhookDispatchDLQ prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BookingQuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_quotes_total",
			Help:      "Count of booking price quote outcomes.",
		}, []string{"result"})
		BookingsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Count of confirmed booking submissions.",
		}, []string{"payment_method", "payment_type"})
		DiscountsAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discounts_applied_total",
			Help:      "Count of sale discounts applied to quotes.",
		}, []string{"kind"})
		ConflictsDetectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_detected_total",
			Help:      "Count of booking conflicts detected, labelled by kind.",
		}, []string{"kind"})
		SweepRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_sweep_runs_total",
			Help:      "Count of conflict sweep runs by result.",
		}, []string{"result"})
		SweepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conflict_sweep_duration_ms",
			Help:      "Latency for per-business conflict sweeps in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of conflict report webhook delivery outcomes.",
		}, []string{"result"})
		WebhookDispatchDLQ = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_dispatch_dlq_total",
			Help:      "Number of webhook deliveries moved to the dead-letter queue.",
		})

		mustRegisterCollector(reg, BookingQuotesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BookingQuotesTotal = v
			}
		})
		mustRegisterCollector(reg, BookingsCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BookingsCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, DiscountsAppliedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DiscountsAppliedTotal = v
			}
		})
		mustRegisterCollector(reg, ConflictsDetectedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ConflictsDetectedTotal = v
			}
		})
		mustRegisterCollector(reg, SweepRunsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SweepRunsTotal = v
			}
		})
		mustRegisterCollector(reg, SweepDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				SweepDuration = v
			}
		})
		mustRegisterCollector(reg, WebhookDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookDeliveriesTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookDispatchDLQ, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				WebhookDispatchDLQ = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

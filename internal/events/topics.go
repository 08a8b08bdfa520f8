package events

// Topic constants for domain events emitted by the platform.
const (
	TopicBookingCreated       = "booking.created"
	TopicBookingQuoted        = "booking.quoted"
	TopicSaleEventCreated     = "sale_event.created"
	TopicSaleEventUpdated     = "sale_event.updated"
	TopicScheduleChanged      = "schedule.changed"
	TopicConflictDetected     = "conflict.detected"
	TopicConflictSweepDone    = "conflict.sweep_completed"
	TopicConflictSweepSkipped = "conflict.sweep_skipped"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicBookingCreated,
		TopicBookingQuoted,
		TopicSaleEventCreated,
		TopicSaleEventUpdated,
		TopicScheduleChanged,
		TopicConflictDetected,
		TopicConflictSweepDone,
		TopicConflictSweepSkipped,
	}
}

// Package metrics defines the observability contract of the session.
// Implementations live in infra/metrics.
package metrics

import "time"

// Poll outcomes recorded per long-poll iteration.
const (
	PollOutcomeEvents    = "events"
	PollOutcomeEmpty     = "empty"
	PollOutcomeHTTPError = "http_error"
	PollOutcomeTransport = "transport_error"
)

// PollResult describes one completed long-poll iteration.
type PollResult struct {
	Outcome  string
	Status   int
	Duration time.Duration
	Time     time.Time
}

// CursorReset records a cursor self-heal.
type CursorReset struct {
	Reason string
	Time   time.Time
}

// IncidentIngest records an incident entering the alert pipeline.
type IncidentIngest struct {
	IncidentID string
	Severity   string
	Behavior   string
	Source     string
	Time       time.Time
}

// Alert transition kinds.
const (
	AlertActivated = "activated"
	AlertBuffered  = "buffered"
	AlertAccepted  = "accepted"
	AlertDismissed = "dismissed"
)

// AlertTransition records a state change of the active-alert slot.
type AlertTransition struct {
	IncidentID string
	Transition string
	Time       time.Time
}

// MetricsSink records session events for observability purposes.
type MetricsSink interface {
	RecordPoll(PollResult) error
	RecordCursorReset(CursorReset) error
	RecordIncident(IncidentIngest) error
	RecordAlertTransition(AlertTransition) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordPoll(PollResult) error                 { return nil }
func (NopSink) RecordCursorReset(CursorReset) error         { return nil }
func (NopSink) RecordIncident(IncidentIngest) error         { return nil }
func (NopSink) RecordAlertTransition(AlertTransition) error { return nil }

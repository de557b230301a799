package metrics

import "github.com/fleetlink/driverd/core/metrics"

// MultiSink fans session records out to multiple sinks.
type MultiSink struct {
	Sinks []metrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...metrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPoll forwards the record to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordPoll(r metrics.PollResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordPoll(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordCursorReset(r metrics.CursorReset) error {
	for _, s := range m.Sinks {
		if err := s.RecordCursorReset(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordIncident(r metrics.IncidentIngest) error {
	for _, s := range m.Sinks {
		if err := s.RecordIncident(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordAlertTransition(r metrics.AlertTransition) error {
	for _, s := range m.Sinks {
		if err := s.RecordAlertTransition(r); err != nil {
			return err
		}
	}
	return nil
}

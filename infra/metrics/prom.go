// Package metrics provides the MetricsSink implementations: Prometheus,
// InfluxDB, a fan-out and the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fleetlink/driverd/core/metrics"
)

// PromSink records session events in Prometheus metrics.
type PromSink struct {
	polls        *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	resets       *prometheus.CounterVec
	incidents    *prometheus.CounterVec
	transitions  *prometheus.CounterVec
}

// NewPromSink registers session metrics on the provided Prometheus registerer.
// If reg is nil, the default registerer is used. If the collectors are already
// registered, the existing ones are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "driverd_polls_total",
		Help: "Total number of long-poll iterations",
	}, []string{"outcome"})
	pollDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "driverd_poll_duration_seconds",
		Help:    "Wall time of one long-poll iteration",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	resets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "driverd_cursor_resets_total",
		Help: "Total number of cursor self-heals",
	}, []string{"reason"})
	incidents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "driverd_incidents_ingested_total",
		Help: "Total number of incidents entering the alert pipeline",
	}, []string{"severity", "behavior", "source"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "driverd_alert_transitions_total",
		Help: "Total number of active-alert slot transitions",
	}, []string{"transition"})

	var err error
	s := &PromSink{}
	if s.polls, err = registerCounterVec(reg, polls); err != nil {
		return nil, err
	}
	if s.resets, err = registerCounterVec(reg, resets); err != nil {
		return nil, err
	}
	if s.incidents, err = registerCounterVec(reg, incidents); err != nil {
		return nil, err
	}
	if s.transitions, err = registerCounterVec(reg, transitions); err != nil {
		return nil, err
	}
	if err := reg.Register(pollDuration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			pollDuration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	s.pollDuration = pollDuration
	return s, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func (s *PromSink) RecordPoll(r metrics.PollResult) error {
	s.polls.WithLabelValues(r.Outcome).Inc()
	s.pollDuration.WithLabelValues(r.Outcome).Observe(r.Duration.Seconds())
	return nil
}

func (s *PromSink) RecordCursorReset(r metrics.CursorReset) error {
	s.resets.WithLabelValues(r.Reason).Inc()
	return nil
}

func (s *PromSink) RecordIncident(r metrics.IncidentIngest) error {
	s.incidents.WithLabelValues(r.Severity, r.Behavior, r.Source).Inc()
	return nil
}

func (s *PromSink) RecordAlertTransition(r metrics.AlertTransition) error {
	s.transitions.WithLabelValues(r.Transition).Inc()
	return nil
}

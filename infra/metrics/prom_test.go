package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/fleetlink/driverd/core/metrics"
)

func TestPromSink_RecordPoll(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	if err := sink.RecordPoll(coremetrics.PollResult{
		Outcome:  coremetrics.PollOutcomeEvents,
		Status:   200,
		Duration: 120 * time.Millisecond,
		Time:     time.Now(),
	}); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP driverd_polls_total Total number of long-poll iterations
# TYPE driverd_polls_total counter
driverd_polls_total{outcome="events"} 1
`
	if err := testutil.CollectAndCompare(sink.polls, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if c := testutil.CollectAndCount(sink.pollDuration); c == 0 {
		t.Errorf("poll duration not recorded")
	}
}

func TestPromSink_RecordIncidentAndTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	if err := sink.RecordIncident(coremetrics.IncidentIngest{
		IncidentID: "INC_1", Severity: "HIGH", Behavior: "HIGH", Source: "live", Time: time.Now(),
	}); err != nil {
		t.Fatalf("record incident: %v", err)
	}
	if err := sink.RecordAlertTransition(coremetrics.AlertTransition{
		IncidentID: "INC_1", Transition: coremetrics.AlertActivated, Time: time.Now(),
	}); err != nil {
		t.Fatalf("record transition: %v", err)
	}
	if err := sink.RecordCursorReset(coremetrics.CursorReset{Reason: "bad_request", Time: time.Now()}); err != nil {
		t.Fatalf("record reset: %v", err)
	}

	expected := `
# HELP driverd_incidents_ingested_total Total number of incidents entering the alert pipeline
# TYPE driverd_incidents_ingested_total counter
driverd_incidents_ingested_total{behavior="HIGH",severity="HIGH",source="live"} 1
`
	if err := testutil.CollectAndCompare(sink.incidents, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestPromSink_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSink(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSink(reg); err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}
}

package alert

import (
	"strings"
	"testing"
	"time"

	"github.com/fleetlink/driverd/core/model"
)

func TestBehaviorFor(t *testing.T) {
	cases := []struct {
		severity model.Severity
		want     Behavior
	}{
		{model.SeverityLow, BehaviorNone},
		{model.SeverityMedium, BehaviorMedium},
		{model.SeverityHigh, BehaviorHigh},
		{"CRITICAL", BehaviorNone},
		{"", BehaviorNone},
	}
	for _, c := range cases {
		if got := BehaviorFor(c.severity); got != c.want {
			t.Errorf("BehaviorFor(%q) = %q, want %q", c.severity, got, c.want)
		}
	}
}

func TestProjectIncident(t *testing.T) {
	inc := model.Incident{
		IncidentID:      "INC_7",
		VehicleID:       "TRUCK_001",
		EventType:       model.EventTrafficJam,
		Severity:        model.SeverityMedium,
		ETAImpactMin:    12,
		RequiresReorder: true,
		Location:        model.LatLon{Lat: 47.6, Lon: -122.3},
	}
	ev := ProjectIncident(inc)
	if ev.EventID != "INC_7" || ev.Severity != model.SeverityMedium {
		t.Fatalf("projection: %+v", ev)
	}
	if ev.Impact.ETADelayMinutes != 12 {
		t.Errorf("eta delay %d", ev.Impact.ETADelayMinutes)
	}
	if ev.Impact.AffectedTasks != affectedTasksStub {
		t.Errorf("affected tasks %d", ev.Impact.AffectedTasks)
	}

	inc.RequiresReorder = false
	if got := ProjectIncident(inc).Impact.AffectedTasks; got != 0 {
		t.Errorf("affected tasks without reorder %d", got)
	}
}

func TestHighSeverityNotice(t *testing.T) {
	inc := model.Incident{
		IncidentID:   "INC_9",
		EventType:    model.EventBreakdown,
		Severity:     model.SeverityHigh,
		ETAImpactMin: 60,
		Location:     model.LatLon{Lat: 47.6098, Lon: -122.201},
		DTCCodes:     []string{"P0300", "P0301"},
		EngineStatus: "OFF",
	}
	n := HighSeverityNotice(inc, time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC))
	if n.ThreadID != "HIGH_INC_9" {
		t.Errorf("thread id %q", n.ThreadID)
	}
	if !strings.Contains(n.Title, "BREAKDOWN") {
		t.Errorf("title %q", n.Title)
	}
	for _, want := range []string{"60 minutes", "P0300, P0301", "OFF"} {
		if !strings.Contains(n.Content, want) {
			t.Errorf("content missing %q", want)
		}
	}

	// Same incident renders into the same thread.
	again := HighSeverityNotice(inc, time.Now())
	if again.ThreadID != n.ThreadID {
		t.Errorf("thread id not deterministic: %q vs %q", again.ThreadID, n.ThreadID)
	}
}

package fleet

import (
	"testing"
	"time"

	"github.com/fleetlink/driverd/core/model"
)

func TestLiveIncidentActivatesAlert(t *testing.T) {
	c, _ := newTestContainer(t, Config{})
	c.OnLiveEvent(model.EventPayload{Incident: map[string]any{
		"incident_id":    "INC_1",
		"severity":       "HIGH",
		"event_type":     "BREAKDOWN",
		"eta_impact_min": float64(45),
	}})

	a := c.ActiveAlert()
	if a == nil || a.IncidentID != "INC_1" {
		t.Fatalf("active %+v", a)
	}
	if a.Severity != model.SeverityHigh || a.Source != SourceLive {
		t.Fatalf("alert %+v", a)
	}
	if a.Event.ETAImpactMin != 45 {
		t.Fatalf("eta impact %d", a.Event.ETAImpactMin)
	}
}

func TestLiveIncidentDedup(t *testing.T) {
	c, _ := newTestContainer(t, Config{})
	payload := model.EventPayload{Incident: map[string]any{
		"incident_id": "INC_1",
		"severity":    "MEDIUM",
	}}
	c.OnLiveEvent(payload)
	c.DismissRouting()
	c.OnLiveEvent(payload)

	if c.ActiveAlert() != nil {
		t.Fatal("duplicate incident re-activated")
	}
	if got := len(c.Snapshot().History); got != 1 {
		t.Fatalf("history %d, want 1", got)
	}
}

func TestLowSeveritySuppressed(t *testing.T) {
	c, _ := newTestContainer(t, Config{})
	c.OnLiveEvent(model.EventPayload{Incident: map[string]any{
		"incident_id": "I9",
		"severity":    "LOW",
	}})

	snap := c.Snapshot()
	if snap.ActiveAlert != nil {
		t.Fatalf("LOW severity activated: %+v", snap.ActiveAlert)
	}
	if len(snap.History) != 0 {
		t.Fatalf("LOW severity recorded in history: %+v", snap.History)
	}

	// Suppression must not consume the id: a later escalation of the
	// same incident still alerts.
	c.OnLiveEvent(model.EventPayload{Incident: map[string]any{
		"incident_id": "I9",
		"severity":    "HIGH",
	}})
	if c.ActiveAlert() == nil {
		t.Fatal("escalated incident was suppressed")
	}
}

func TestIncidentIDCandidates(t *testing.T) {
	c, _ := newTestContainer(t, Config{})
	c.OnLiveEvent(model.EventPayload{Incident: map[string]any{
		"event_id": "EVT_7",
		"severity": "MEDIUM",
	}})
	if got := c.ActiveAlert().IncidentID; got != "EVT_7" {
		t.Fatalf("incident id %s", got)
	}
}

func TestIncidentDefaults(t *testing.T) {
	c, _ := newTestContainer(t, Config{})
	c.OnLiveEvent(model.EventPayload{Incident: map[string]any{
		"incident_id": "INC_D",
		"severity":    "MEDIUM",
	}})

	ev := c.ActiveAlert().Event
	if ev.EventType != model.EventTrafficJam {
		t.Fatalf("event type %s", ev.EventType)
	}
	if ev.ETAImpactMin != defaultETAImpactMin {
		t.Fatalf("eta impact %d", ev.ETAImpactMin)
	}
	// MEDIUM implies a reorder proposal.
	if !ev.RequiresReorder {
		t.Fatal("medium incident without requires_reorder")
	}
	if ev.Impact.AffectedTasks == 0 {
		t.Fatal("impact affected tasks not set")
	}
}

func TestVehicleStatusUpdates(t *testing.T) {
	c, _ := newTestContainer(t, Config{})
	c.OnLiveEvent(model.EventPayload{VehicleStatus: map[string]any{
		"vehicle_id": "TRUCK_001",
		"status":     "IDLE",
		"location":   map[string]any{"lat": 47.6, "lon": -122.3},
	}})

	v := c.Snapshot().Vehicle
	if v.Status != model.StatusIdle {
		t.Fatalf("status %s", v.Status)
	}
	if v.LastLocation.Lat != 47.6 || v.LastLocation.Lon != -122.3 {
		t.Fatalf("location %+v", v.LastLocation)
	}
}

func TestLocationAuthorityLatch(t *testing.T) {
	c, _ := newTestContainer(t, Config{})
	c.SetLiveLocation("TRUCK_001", model.LatLon{Lat: 48.0, Lon: 2.0}, time.Now())

	c.OnLiveEvent(model.EventPayload{VehicleStatus: map[string]any{
		"vehicle_id": "TRUCK_001",
		"status":     "IDLE",
		"location":   map[string]any{"lat": 47.6, "lon": -122.3},
	}})

	v := c.Snapshot().Vehicle
	// Poller owns location once latched; the event stream still updates
	// discrete status.
	if v.LastLocation.Lat != 48.0 || v.LastLocation.Lon != 2.0 {
		t.Fatalf("latched location overwritten: %+v", v.LastLocation)
	}
	if v.Status != model.StatusIdle {
		t.Fatalf("status %s", v.Status)
	}
}

func TestBackendTasksReplaceStops(t *testing.T) {
	c, _ := newTestContainer(t, Config{})
	seedStops(c, "OLD_1", "OLD_2")

	c.OnLiveEvent(model.EventPayload{
		Incident: map[string]any{"incident_id": "INC_T", "severity": "MEDIUM"},
		OriginalTaskSequence: []map[string]any{
			{"task_id": "T1", "sequence": float64(1), "address": "1 Main St", "lat": 47.6, "lon": -122.3},
			{"task_id": "T2", "sequence": float64(2), "address": "2 Oak Ave"},
		},
	})

	got := c.Stops()
	if len(got) != 2 || got[0].StopID != "T1" || got[1].StopID != "T2" {
		t.Fatalf("stops %+v", got)
	}
	if got[0].Location == nil || got[0].Location.Lat != 47.6 {
		t.Fatalf("stop location %+v", got[0].Location)
	}

	// Once backend stops arrive, seeded data never overrides them.
	c.SeedStops([]model.DeliveryStop{{StopID: "SEED", CurrentSequence: 1}})
	if c.Stops()[0].StopID != "T1" {
		t.Fatal("seed overwrote backend stops")
	}
}

func TestBackendTasksGracePeriod(t *testing.T) {
	c, _ := newTestContainer(t, Config{})
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	seedStops(c, "S1", "S2", "S3")
	c.OnLiveEvent(model.EventPayload{Incident: map[string]any{"incident_id": "G1", "severity": "MEDIUM"}})
	c.ApplyResequence(model.ResequenceResult{
		IncidentID: "G1",
		NewSequence: []model.SequenceEntry{
			{StopID: "S3", Order: 1},
			{StopID: "S1", Order: 2},
			{StopID: "S2", Order: 3},
		},
	})
	c.AcceptRouting()

	// A stale snapshot lands 3 seconds after the accept: ignored.
	now = now.Add(3 * time.Second)
	c.OnLiveEvent(model.EventPayload{
		Incident:             map[string]any{"incident_id": "G2", "severity": "MEDIUM"},
		OriginalTaskSequence: []map[string]any{{"task_id": "STALE", "sequence": float64(1)}},
	})
	if got := c.Stops()[0].StopID; got != "S3" {
		t.Fatalf("grace period breached, head stop %s", got)
	}

	// Past the grace period the backend wins again.
	now = now.Add(15 * time.Second)
	c.DismissRouting()
	c.OnLiveEvent(model.EventPayload{
		Incident:             map[string]any{"incident_id": "G3", "severity": "MEDIUM"},
		OriginalTaskSequence: []map[string]any{{"task_id": "FRESH", "sequence": float64(1)}},
	})
	if got := c.Stops()[0].StopID; got != "FRESH" {
		t.Fatalf("backend stop not applied after grace period, got %s", got)
	}
}

func TestEmptyBackendTasksKeepExisting(t *testing.T) {
	c, _ := newTestContainer(t, Config{})
	seedStops(c, "S1")
	c.OnLiveEvent(model.EventPayload{
		Incident: map[string]any{"incident_id": "E1", "severity": "MEDIUM"},
		Stops:    []map[string]any{},
	})
	if got := c.Stops(); len(got) != 1 || got[0].StopID != "S1" {
		t.Fatalf("stops %+v", got)
	}
}

func TestMalformedPayloadNoPanic(t *testing.T) {
	c, _ := newTestContainer(t, Config{})
	c.OnLiveEvent(model.EventPayload{})
	c.OnLiveEvent(model.EventPayload{Incident: map[string]any{"severity": 42}})
	c.OnLiveEvent(model.EventPayload{VehicleStatus: map[string]any{"location": "nowhere"}})
	c.OnLiveEvent(model.EventPayload{OriginalTaskSequence: []map[string]any{nil, {"bogus": true}}})
}

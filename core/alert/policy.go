// Package alert decides how an incident is presented to the driver and
// builds the UI-facing projections. Everything here is pure and stateless.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/fleetlink/driverd/core/model"
)

// Behavior is the presentation decision for an incident.
type Behavior string

const (
	// BehaviorNone suppresses the incident entirely: no popup, no side
	// effects. Applied to LOW and unrecognized severities.
	BehaviorNone   Behavior = ""
	BehaviorMedium Behavior = "MEDIUM"
	BehaviorHigh   Behavior = "HIGH"
)

// affectedTasksStub is a placeholder pending real computation of which
// tasks an incident touches. Kept as a variable so tests can pin it.
var affectedTasksStub = 17

// BehaviorFor maps incident severity to alert behavior. Unknown severities
// fail safe to suppression.
func BehaviorFor(severity model.Severity) Behavior {
	switch severity {
	case model.SeverityMedium:
		return BehaviorMedium
	case model.SeverityHigh:
		return BehaviorHigh
	default:
		return BehaviorNone
	}
}

// ProjectIncident builds the UI event projection for an incident, adding
// the computed impact block.
func ProjectIncident(inc model.Incident) model.IncidentEvent {
	affected := 0
	if inc.RequiresReorder {
		affected = affectedTasksStub
	}
	return model.IncidentEvent{
		EventID:         inc.IncidentID,
		VehicleID:       inc.VehicleID,
		EventType:       inc.EventType,
		Severity:        inc.Severity,
		Location:        inc.Location,
		StartTime:       inc.StartTime,
		EndTime:         inc.EndTime,
		GPSSpeed:        inc.GPSSpeed,
		EngineStatus:    inc.EngineStatus,
		DTCCodes:        inc.DTCCodes,
		ETAImpactMin:    inc.ETAImpactMin,
		RequiresReorder: inc.RequiresReorder,
		Impact: model.IncidentImpact{
			ETADelayMinutes: inc.ETAImpactMin,
			AffectedTasks:   affected,
		},
	}
}

// Notice is an outbound message seeded when a HIGH severity incident fires.
type Notice struct {
	Title    string
	Content  string
	ThreadID string
}

// HighSeverityNotice renders the deterministic dispatch notice for a HIGH
// incident. The thread id is keyed by incident id so repeated renders land
// in the same thread.
func HighSeverityNotice(inc model.Incident, now time.Time) Notice {
	kind := strings.ReplaceAll(string(inc.EventType), "_", " ")
	content := fmt.Sprintf(
		"Incident detected at %s\n\n"+
			"Type: %s\n"+
			"Severity: HIGH\n"+
			"ETA impact: %d minutes\n"+
			"Location: lat %.4f, lon %.4f\n"+
			"DTC codes: %s\n"+
			"Engine status: %s\n"+
			"Vehicle speed: %.1f km/h\n\n"+
			"HQ/Dispatch has been notified. Check messages for updates.",
		now.Format(time.RFC1123),
		kind,
		inc.ETAImpactMin,
		inc.Location.Lat, inc.Location.Lon,
		strings.Join(inc.DTCCodes, ", "),
		inc.EngineStatus,
		inc.GPSSpeed,
	)
	return Notice{
		Title:    fmt.Sprintf("HIGH PRIORITY: %s", kind),
		Content:  content,
		ThreadID: fmt.Sprintf("HIGH_%s", inc.IncidentID),
	}
}

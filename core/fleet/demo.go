package fleet

import (
	"fmt"

	"github.com/fleetlink/driverd/core/alert"
	"github.com/fleetlink/driverd/core/model"
)

// ErrAlertActive is returned when a demo trigger is skipped because an
// alert is already presented.
var ErrAlertActive = fmt.Errorf("an alert is already active")

// TriggerDemoAlert synthesizes a demo incident of the given severity and
// pushes it through the regular ingestion pipeline. Demo alerts are
// presentation-only: accepting one never mutates route state. Returns the
// generated incident id.
func (c *Container) TriggerDemoAlert(severity model.Severity) (string, error) {
	behavior := alert.BehaviorFor(severity)
	if behavior == alert.BehaviorNone {
		return "", fmt.Errorf("unsupported demo severity %q", severity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return "", ErrAlertActive
	}

	inc := c.demoIncidentLocked(severity)
	ev := alert.ProjectIncident(inc)
	ev.Source = string(SourceDemo)

	c.ingestLocked(IngestedAlert{
		IncidentID: inc.IncidentID,
		Severity:   severity,
		Source:     SourceDemo,
		Event:      ev,
		Behavior:   behavior,
		Incident:   &inc,
	})
	return inc.IncidentID, nil
}

func (c *Container) demoIncidentLocked(severity model.Severity) model.Incident {
	now := c.now()
	inc := model.Incident{
		VehicleID:       c.cfg.VehicleID,
		Severity:        severity,
		StartTime:       now,
		Location:        c.vehicle.LastLocation,
		RequiresReorder: true,
	}
	switch severity {
	case model.SeverityHigh:
		inc.IncidentID = fmt.Sprintf("HIGH_DEMO_%d", now.UnixMilli())
		inc.EventType = model.EventBreakdown
		inc.EngineStatus = "OFF"
		inc.DTCCodes = []string{"P0300", "P0301"}
		inc.ETAImpactMin = 60
	default:
		inc.IncidentID = fmt.Sprintf("MEDIUM_DEMO_%d", now.UnixMilli())
		inc.EventType = model.EventTrafficJam
		inc.GPSSpeed = 15.5
		inc.EngineStatus = "ON"
		inc.ETAImpactMin = 10
	}
	return inc
}

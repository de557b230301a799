package fleet

import (
	"fmt"
	"strings"
	"time"

	"github.com/fleetlink/driverd/core/alert"
	"github.com/fleetlink/driverd/core/model"
	"github.com/fleetlink/driverd/core/stops"
	"github.com/fleetlink/driverd/internal/lookup"
)

// defaultETAImpactMin is assumed when a live incident omits its ETA impact.
const defaultETAImpactMin = 12

// OnLiveEvent is the ingress point for payloads from the long-poll client.
// A malformed event must never terminate the poll loop or corrupt prior
// state: every failure is recovered locally and the method returns normally.
func (c *Container) OnLiveEvent(p model.EventPayload) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("live event handling recovered: %v", r)
		}
	}()

	if p.Empty() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p.VehicleStatus != nil {
		c.applyVehicleStatusLocked(p.VehicleStatus)
	}
	if tasks := p.Tasks(); len(tasks) > 0 {
		c.applyBackendTasksLocked(tasks, p)
	}
	if p.Incident != nil {
		c.applyIncidentLocked(p.Incident)
	}
	c.notifyChanged()
}

// applyVehicleStatusLocked updates the vehicle record. Id and status are
// written unconditionally; location and update time only while the
// location-polling channel has not become authoritative.
func (c *Container) applyVehicleStatusLocked(vs map[string]any) {
	if id, ok := lookup.Str(vs, "vehicle_id"); ok {
		c.vehicle.VehicleID = id
	}
	if st, ok := lookup.Str(vs, "status"); ok {
		c.vehicle.Status = model.VehicleStatusCode(st)
	}
	if c.locationLatched {
		return
	}
	if loc := resolveStatusLocation(vs); loc != nil {
		c.vehicle.LastLocation = *loc
	}
	c.vehicle.LastUpdateAt = resolveStatusTime(vs, c.now())
}

func resolveStatusLocation(vs map[string]any) *model.LatLon {
	for _, key := range []string{"last_location", "location", "gps"} {
		nested := lookup.Map(vs, key)
		if nested == nil {
			continue
		}
		lat, okLat := lookup.Float(nested, "lat", "latitude")
		lon, okLon := lookup.Float(nested, "lon", "lng", "longitude")
		if okLat && okLon {
			return &model.LatLon{Lat: lat, Lon: lon}
		}
	}
	lat, okLat := lookup.Float(vs, "lat", "latitude")
	lon, okLon := lookup.Float(vs, "lon", "lng", "longitude")
	if okLat && okLon {
		return &model.LatLon{Lat: lat, Lon: lon}
	}
	return nil
}

func resolveStatusTime(vs map[string]any, now time.Time) time.Time {
	if raw, ok := lookup.Str(vs, "last_update_at", "updated_at", "timestamp"); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
	}
	return now
}

// applyBackendTasksLocked replaces the stop list with the backend task
// sequence, unless a route accept happened within the grace period.
func (c *Container) applyBackendTasksLocked(tasks []map[string]any, p model.EventPayload) {
	if since := c.now().Sub(c.lastAcceptAt); !c.lastAcceptAt.IsZero() && since < c.cfg.AcceptGracePeriod {
		c.log.Infof("backend stops skipped: %v into accept grace period", since)
		return
	}

	vehicleID, ok := lookup.Str(p.Incident, "vehicle_id")
	if !ok {
		if vehicleID, ok = lookup.Str(p.VehicleStatus, "vehicle_id"); !ok {
			vehicleID = c.cfg.VehicleID
		}
	}
	planID := c.cfg.PlanID
	if planID == "" {
		planID = fmt.Sprintf("PLAN_%d", c.now().UnixMilli())
	}

	mapped := stops.Normalize(tasks, c.now(), stops.DefaultDefaults(planID, vehicleID))
	if len(mapped) == 0 {
		c.log.Warnf("backend task mapping yielded no stops, keeping existing %d", len(c.stopList))
		return
	}
	c.stopList = mapped
	if !c.useBackendStops {
		c.log.Infof("backend stops in use: %d stops loaded", len(mapped))
	}
	c.useBackendStops = true
}

// applyIncidentLocked deduplicates, grades and ingests a live incident.
func (c *Container) applyIncidentLocked(raw map[string]any) {
	id, ok := lookup.Str(raw, "incident_id", "event_id", "id")
	if !ok {
		id = fmt.Sprintf("LIVE_%d", c.now().UnixMilli())
	}
	if _, dup := c.seen[id]; dup {
		c.log.Debugf("incident %s dropped: duplicate", id)
		return
	}

	inc := c.buildIncidentLocked(id, raw)
	behavior := alert.BehaviorFor(inc.Severity)
	if behavior == alert.BehaviorNone {
		c.log.Infof("incident %s suppressed (severity=%s)", id, inc.Severity)
		return
	}
	c.markSeenLocked(id)

	ev := alert.ProjectIncident(inc)
	ev.Source = string(SourceLive)
	ev.Reason = inc.Reason
	if ev.Reason == "" {
		ev.Reason = strings.ReplaceAll(string(inc.EventType), "_", " ")
	}

	c.ingestLocked(IngestedAlert{
		IncidentID: id,
		Severity:   inc.Severity,
		Source:     SourceLive,
		Event:      ev,
		Behavior:   behavior,
		Incident:   &inc,
	})
}

// buildIncidentLocked maps a loose incident record into the immutable
// Incident, filling conventional defaults.
func (c *Container) buildIncidentLocked(id string, raw map[string]any) model.Incident {
	severity := model.SeverityMedium
	if s, ok := lookup.Str(raw, "severity"); ok {
		severity = model.Severity(strings.ToUpper(s))
	}
	eventType := model.EventTrafficJam
	if s, ok := lookup.Str(raw, "event_type"); ok {
		eventType = model.EventType(s)
	}

	inc := model.Incident{
		IncidentID:   id,
		VehicleID:    c.cfg.VehicleID,
		EventType:    eventType,
		Severity:     severity,
		StartTime:    c.now(),
		Location:     c.vehicle.LastLocation,
		EngineStatus: "ON",
		ETAImpactMin: defaultETAImpactMin,
		// MEDIUM incidents conventionally imply a reroute proposal.
		RequiresReorder: severity == model.SeverityMedium,
	}
	if v, ok := lookup.Str(raw, "vehicle_id"); ok {
		inc.VehicleID = v
	}
	if raw["timestamp"] != nil {
		if ts, ok := lookup.Str(raw, "timestamp"); ok {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				inc.StartTime = parsed
			}
		}
	}
	if loc := stops.ExtractLatLon(raw); loc != nil {
		inc.Location = *loc
	}
	if v, ok := lookup.Float(raw, "gps_speed"); ok {
		inc.GPSSpeed = v
	}
	if v, ok := lookup.Str(raw, "engine_status"); ok {
		inc.EngineStatus = v
	}
	if v := lookup.Strings(raw, "dtc_codes"); v != nil {
		inc.DTCCodes = v
	}
	if v, ok := lookup.Float(raw, "eta_impact_min"); ok {
		inc.ETAImpactMin = int(v)
	}
	if v, ok := lookup.Bool(raw, "requires_reorder"); ok {
		inc.RequiresReorder = v
	}
	if v, ok := lookup.Str(raw, "reason"); ok {
		inc.Reason = v
	}
	if v, ok := lookup.Str(raw, "description"); ok {
		inc.Description = v
	}
	return inc
}

// markSeenLocked adds the incident id to the bounded seen-set, evicting the
// oldest entries beyond the cap.
func (c *Container) markSeenLocked(id string) {
	c.seen[id] = struct{}{}
	c.seenOrder = append(c.seenOrder, id)
	for len(c.seenOrder) > c.cfg.DedupCap {
		delete(c.seen, c.seenOrder[0])
		c.seenOrder = c.seenOrder[1:]
	}
}

// SetLiveLocation is the location-polling write path. The first successful
// call latches location authority to that channel for the rest of the
// session; event-stream locations are ignored from then on.
func (c *Container) SetLiveLocation(vehicleID string, loc model.LatLon, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locationLatched = true
	if vehicleID != "" {
		c.vehicle.VehicleID = vehicleID
	}
	c.vehicle.LastLocation = loc
	if at.IsZero() {
		at = c.now()
	}
	c.vehicle.LastUpdateAt = at
	c.notifyChanged()
}

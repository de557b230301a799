package model

import "time"

// LatLon is a GPS coordinate pair.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// VehicleStatusCode describes the operational state of a vehicle.
type VehicleStatusCode string

const (
	StatusOnRoute VehicleStatusCode = "ON_ROUTE"
	StatusIdle    VehicleStatusCode = "IDLE"
	StatusOffline VehicleStatusCode = "OFFLINE"
)

// EventType classifies a detected incident.
type EventType string

const (
	EventTrafficJam     EventType = "TRAFFIC_JAM"
	EventAccident       EventType = "ACCIDENT"
	EventBreakdown      EventType = "BREAKDOWN"
	EventRouteDeviation EventType = "ROUTE_DEVIATION"
	EventETADelayRisk   EventType = "ETA_DELAY_RISK"
)

// Severity grades an incident.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// StopStatus describes the delivery progress of a single stop.
type StopStatus string

const (
	StopPending    StopStatus = "PENDING"
	StopInProgress StopStatus = "IN_PROGRESS"
	StopCompleted  StopStatus = "COMPLETED"
)

// Completed reports whether the stop has been delivered, tolerating
// lower/mixed case values coming from heterogeneous backends.
func (s StopStatus) Completed() bool {
	switch s {
	case StopCompleted, "completed", "Completed":
		return true
	}
	return false
}

// VehicleRealtimeStatus is the last known state of the session's vehicle.
// It is a single last-writer-wins record owned by the fleet container.
type VehicleRealtimeStatus struct {
	VehicleID    string            `json:"vehicle_id"`
	Status       VehicleStatusCode `json:"status"`
	LastLocation LatLon            `json:"last_location"`
	LastUpdateAt time.Time         `json:"last_update_at"`
}

// Incident is a detected real-world event affecting the vehicle or its
// route. It is immutable once constructed from a payload and identified by
// IncidentID.
type Incident struct {
	IncidentID      string    `json:"incident_id"`
	VehicleID       string    `json:"vehicle_id"`
	EventType       EventType `json:"event_type"`
	Severity        Severity  `json:"severity"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time,omitempty"`
	Location        LatLon    `json:"location"`
	GPSSpeed        float64   `json:"gps_speed"`
	EngineStatus    string    `json:"engine_status"`
	DTCCodes        []string  `json:"dtc_codes"`
	ETAImpactMin    int       `json:"eta_impact_min"`
	RequiresReorder bool      `json:"requires_reorder"`
	Reason          string    `json:"reason,omitempty"`
	Description     string    `json:"description,omitempty"`
}

// IncidentImpact is the computed impact block attached to a UI-facing event.
type IncidentImpact struct {
	ETADelayMinutes int `json:"eta_delay_minutes"`
	AffectedTasks   int `json:"affected_tasks"`
}

// IncidentEvent is the UI-facing projection of an incident.
type IncidentEvent struct {
	EventID         string         `json:"event_id"`
	VehicleID       string         `json:"vehicle_id"`
	EventType       EventType      `json:"event_type"`
	Severity        Severity       `json:"severity"`
	Source          string         `json:"source,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	Location        LatLon         `json:"location"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time,omitempty"`
	GPSSpeed        float64        `json:"gps_speed,omitempty"`
	EngineStatus    string         `json:"engine_status,omitempty"`
	DTCCodes        []string       `json:"dtc_codes,omitempty"`
	ETAImpactMin    int            `json:"eta_impact_min"`
	RequiresReorder bool           `json:"requires_reorder"`
	Impact          IncidentImpact `json:"impact"`
}

// DeliveryStop is one stop of the vehicle's delivery plan.
// CurrentSequence changes when the route is resequenced; OriginalSequence is
// fixed once set. The fleet container owns all stops exclusively.
type DeliveryStop struct {
	StopID           string     `json:"stop_id"`
	PlanID           string     `json:"plan_id"`
	VehicleID        string     `json:"vehicle_id,omitempty"`
	OriginalSequence int        `json:"original_sequence"`
	CurrentSequence  int        `json:"current_sequence"`
	Address          string     `json:"address"`
	PlannedTimeStart time.Time  `json:"planned_time_start"`
	PlannedTimeEnd   time.Time  `json:"planned_time_end"`
	Status           StopStatus `json:"status"`
	PackageCount     int        `json:"package_count,omitempty"`
	Location         *LatLon    `json:"location,omitempty"`
}

// SequenceEntry pairs a stop with its position inside a resequence proposal.
type SequenceEntry struct {
	StopID string `json:"stop_id"`
	Order  int    `json:"order"`
}

// ResequenceResult is a backend-proposed reordering of the remaining stops.
// It is ephemeral: consumed on accept, discarded on dismiss.
type ResequenceResult struct {
	ResultID       string          `json:"result_id"`
	IncidentID     string          `json:"incident_id"`
	PlanID         string          `json:"plan_id"`
	OldSequence    []SequenceEntry `json:"old_sequence"`
	NewSequence    []SequenceEntry `json:"new_sequence"`
	TotalETABefore int             `json:"total_eta_before"`
	ImprovementPct float64         `json:"improvement_pct"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TaskSequenceItem is one entry of a routing decision's task sequence.
type TaskSequenceItem struct {
	TaskID string `json:"task_id"`
	Order  int    `json:"order"`
	ETA    string `json:"eta"`
}

// EventPayload is the normalized output of one actionable long-poll
// response. Record fields keep their loose wire shape; downstream consumers
// extract what they understand via ordered field candidates.
type EventPayload struct {
	Incident             map[string]any
	VehicleStatus        map[string]any
	OriginalTaskSequence []map[string]any
	Stops                []map[string]any
}

// Empty reports whether the payload carries no actionable data.
func (p EventPayload) Empty() bool {
	return p.Incident == nil && p.VehicleStatus == nil &&
		len(p.OriginalTaskSequence) == 0 && len(p.Stops) == 0
}

// Tasks returns whichever task list the payload carries, preferring the
// original task sequence over the stops field.
func (p EventPayload) Tasks() []map[string]any {
	if len(p.OriginalTaskSequence) > 0 {
		return p.OriginalTaskSequence
	}
	return p.Stops
}

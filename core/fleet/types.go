// Package fleet owns all mutable session state for one vehicle: the stop
// list, the single active alert, the paused-alert buffer and the realtime
// vehicle status. It is the reconciliation point between live backend
// events, demo-triggered events and local mutations.
package fleet

import (
	"time"

	"github.com/fleetlink/driverd/core/alert"
	"github.com/fleetlink/driverd/core/model"
)

// Source marks where an alert came from. Demo alerts are presentation-only:
// accepting one never mutates route state.
type Source string

const (
	SourceLive Source = "live"
	SourceDemo Source = "demo"
)

// AlertStatus is the lifecycle of the active alert slot.
type AlertStatus string

const (
	AlertPending   AlertStatus = "pending"
	AlertAccepted  AlertStatus = "accepted"
	AlertDismissed AlertStatus = "dismissed"
)

// IngestedAlert is the transient processing unit of the alert pipeline:
// created at ingestion, either activated immediately or buffered, then
// discarded after accept/dismiss.
type IngestedAlert struct {
	IncidentID   string
	Severity     model.Severity
	Source       Source
	Event        model.IncidentEvent
	Behavior     alert.Behavior
	Incident     *model.Incident
	Resequence   *model.ResequenceResult
	TaskSequence []model.TaskSequenceItem
}

// ActiveAlert is the single alert currently presented to the driver.
type ActiveAlert struct {
	IncidentID string              `json:"incident_id"`
	Severity   model.Severity      `json:"severity"`
	Source     Source              `json:"source"`
	Event      model.IncidentEvent `json:"event"`
	Behavior   alert.Behavior      `json:"behavior"`
	Timestamp  time.Time           `json:"timestamp"`
}

// HistoryEntry is one row of the live alert history panel.
type HistoryEntry struct {
	IncidentID   string          `json:"incident_id"`
	Severity     model.Severity  `json:"severity"`
	EventType    model.EventType `json:"event_type"`
	Timestamp    time.Time       `json:"timestamp"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	VehicleID    string          `json:"vehicle_id,omitempty"`
	GPSSpeed     float64         `json:"gps_speed,omitempty"`
	EngineStatus string          `json:"engine_status,omitempty"`
	DTCCodes     []string        `json:"dtc_codes,omitempty"`
	ETAImpactMin int             `json:"eta_impact_min,omitempty"`
}

// Snapshot is an atomic, read-only view of the session state. UI consumers
// only ever see snapshots; the container keeps exclusive ownership of the
// underlying data.
type Snapshot struct {
	Vehicle       model.VehicleRealtimeStatus `json:"vehicle"`
	Stops         []model.DeliveryStop        `json:"stops"`
	CurrentStop   *model.DeliveryStop         `json:"current_stop,omitempty"`
	NextStop      *model.DeliveryStop         `json:"next_stop,omitempty"`
	ActiveAlert   *ActiveAlert                `json:"active_alert,omitempty"`
	AlertStatus   AlertStatus                 `json:"alert_status,omitempty"`
	AlertBehavior alert.Behavior              `json:"alert_behavior,omitempty"`
	History       []HistoryEntry              `json:"alert_history"`
	Paused        bool                        `json:"paused"`
	BufferedCount int                         `json:"buffered_count"`
}

// Notifier publishes HIGH severity notices to an external channel (e.g. the
// ops MQTT topic). A nil notifier disables publishing.
type Notifier interface {
	PublishNotice(n alert.Notice) error
}

// Config parameterizes the container.
type Config struct {
	VehicleID   string
	PlanID      string
	StartPaused bool
	// AcceptGracePeriod blocks backend stop overwrites right after a
	// route accept, so a stale snapshot cannot clobber the new order.
	AcceptGracePeriod time.Duration
	// HistoryCap bounds the alert history (newest first).
	HistoryCap int
	// DedupCap bounds the incident seen-set; oldest ids are evicted first.
	DedupCap int
	// DrainTick is the debounce interval of the buffered-alert drain loop.
	DrainTick time.Duration
}

func (c *Config) setDefaults() {
	if c.AcceptGracePeriod <= 0 {
		c.AcceptGracePeriod = 10 * time.Second
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = 20
	}
	if c.DedupCap <= 0 {
		c.DedupCap = 4096
	}
	if c.DrainTick <= 0 {
		c.DrainTick = 50 * time.Millisecond
	}
}

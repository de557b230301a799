package config

import "fmt"

// SessionConfig identifies the driver session and its local state.
type SessionConfig struct {
	// VehicleID is the vehicle this session polls for.
	VehicleID string `koanf:"vehicle_id"`
	// PlanID labels locally synthesized stops; backend records carry their own.
	PlanID string `koanf:"plan_id"`
	// StateDir holds the persisted long-poll cursor.
	StateDir string `koanf:"state_dir"`
	// StartPaused starts the session with alert delivery paused.
	StartPaused bool `koanf:"start_paused"`
}

// SetDefaults applies sane defaults.
func (c *SessionConfig) SetDefaults() {
	if c.StateDir == "" {
		c.StateDir = "."
	}
	if c.PlanID == "" {
		c.PlanID = "PLAN_DEFAULT"
	}
}

// Validate checks mandatory fields.
func (c SessionConfig) Validate() error {
	if c.VehicleID == "" {
		return fmt.Errorf("session.vehicle_id is required")
	}
	return nil
}

// EventsConfig parameterizes the event long-poll.
type EventsConfig struct {
	BaseURL     string `koanf:"base_url"`
	WaitSeconds int    `koanf:"wait_s"`
	BackoffMS   int    `koanf:"backoff_ms"`
}

func (c *EventsConfig) SetDefaults() {
	if c.WaitSeconds <= 0 {
		c.WaitSeconds = 20
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 500
	}
}

func (c EventsConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("events.base_url is required")
	}
	return nil
}

// LocationConfig parameterizes the location short-poll. The poller runs by
// default; once it delivers a reading, vehicle position comes from it
// instead of the event stream.
type LocationConfig struct {
	Disabled   bool   `koanf:"disabled"`
	BaseURL    string `koanf:"base_url"`
	IntervalMS int    `koanf:"interval_ms"`
}

func (c *LocationConfig) SetDefaults() {
	if c.IntervalMS <= 0 {
		c.IntervalMS = 1000
	}
}

// APIConfig parameterizes the local UI-facing HTTP API.
type APIConfig struct {
	Addr string `koanf:"addr"`
}

func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8384"
	}
}

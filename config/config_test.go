package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `session:
  vehicle_id: "TRUCK_001"
  plan_id: "P42"
  state_dir: "/var/lib/driverd"
  start_paused: true
events:
  base_url: "https://api.example.com"
  wait_s: 25
  backoff_ms: 250
location:
  disabled: true
  base_url: "https://api.example.com"
  interval_ms: 500
metrics:
  sinks:
    - "nop"
notify:
  enabled: true
  broker: "tcp://localhost:1883"
  topic: "fleet/notices"
api:
  addr: "127.0.0.1:9000"
logging:
  level: "debug"
  pretty: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"vehicle_id", cfg.Session.VehicleID, "TRUCK_001"},
		{"plan_id", cfg.Session.PlanID, "P42"},
		{"state_dir", cfg.Session.StateDir, "/var/lib/driverd"},
		{"start_paused", cfg.Session.StartPaused, true},
		{"events.base_url", cfg.Events.BaseURL, "https://api.example.com"},
		{"events.wait_s", cfg.Events.WaitSeconds, 25},
		{"events.backoff_ms", cfg.Events.BackoffMS, 250},
		{"location.disabled", cfg.Location.Disabled, true},
		{"location.interval_ms", cfg.Location.IntervalMS, 500},
		{"metrics.sinks", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0] == "nop", true},
		{"notify.broker", cfg.Notify.Broker, "tcp://localhost:1883"},
		{"notify.topic", cfg.Notify.Topic, "fleet/notices"},
		{"api.addr", cfg.API.Addr, "127.0.0.1:9000"},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"logging.pretty", cfg.Logging.Pretty, true},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `session:
  vehicle_id: "TRUCK_001"
events:
  base_url: "https://api.example.com"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Events.WaitSeconds != 20 {
		t.Errorf("wait_s default = %d", cfg.Events.WaitSeconds)
	}
	if cfg.Events.BackoffMS != 500 {
		t.Errorf("backoff_ms default = %d", cfg.Events.BackoffMS)
	}
	if cfg.Location.IntervalMS != 1000 {
		t.Errorf("interval_ms default = %d", cfg.Location.IntervalMS)
	}
	if cfg.Location.Disabled {
		t.Error("location poller disabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("level default = %s", cfg.Logging.Level)
	}
	if cfg.API.Addr != "127.0.0.1:8384" {
		t.Errorf("api.addr default = %s", cfg.API.Addr)
	}
	if len(cfg.Metrics.Sinks) != 1 || cfg.Metrics.Sinks[0] != "prometheus" {
		t.Errorf("metrics.sinks default = %v", cfg.Metrics.Sinks)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "session": {"vehicle_id": "TRUCK_002"},
  "events": {"base_url": "https://api.example.com"}
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Session.VehicleID != "TRUCK_002" {
		t.Errorf("vehicle_id = %s", cfg.Session.VehicleID)
	}
}

func TestLoadRejectsMissingRequired(t *testing.T) {
	path := writeConfig(t, "config.yaml", `events:
  base_url: "https://api.example.com"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("missing vehicle_id accepted")
	}

	path = writeConfig(t, "config.yaml", `session:
  vehicle_id: "TRUCK_001"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("missing events.base_url accepted")
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", "x = 1")
	if _, err := Load(path); err == nil {
		t.Fatal("unsupported format accepted")
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", `session:
  vehicle_id: "TRUCK_001"
events:
  base_url: "https://api.example.com"
`)
	t.Setenv("DRIVERD_SESSION__PLAN_ID", "P_ENV")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Session.PlanID != "P_ENV" {
		t.Errorf("plan_id = %s, want env override", cfg.Session.PlanID)
	}
}

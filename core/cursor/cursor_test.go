package cursor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fleetlink/driverd/infra/logger"
)

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	cases := []struct {
		name      string
		candidate map[string]any
		want      Cursor
	}{
		{"nil input", nil, Default(now)},
		{"missing time", map[string]any{"after_id": "e1"}, Default(now)},
		{"garbage time", map[string]any{"after_time": "not-a-time"}, Default(now)},
		{
			"valid snake_case",
			map[string]any{"after_time": past.Format(time.RFC3339), "after_id": "e1"},
			Cursor{AfterTime: past, AfterID: "e1"},
		},
		{
			"valid camelCase",
			map[string]any{"afterTime": past.Format(time.RFC3339), "afterId": "e2"},
			Cursor{AfterTime: past, AfterID: "e2"},
		},
		{
			"future beyond skew",
			map[string]any{"after_time": now.Add(10 * time.Minute).Format(time.RFC3339)},
			Default(now),
		},
		{
			"future within skew",
			map[string]any{"after_time": now.Add(time.Minute).Format(time.RFC3339)},
			Cursor{AfterTime: now.Add(time.Minute)},
		},
	}
	for _, c := range cases {
		got := Normalize(c.candidate, now)
		if !got.AfterTime.Equal(c.want.AfterTime) || got.AfterID != c.want.AfterID {
			t.Errorf("%s: got %+v want %+v", c.name, got, c.want)
		}
	}
}

func TestDefaultLookback(t *testing.T) {
	now := time.Now()
	d := Default(now)
	if got := now.Sub(d.AfterTime); got != LookbackWindow {
		t.Fatalf("lookback %v", got)
	}
	if d.AfterID != "" {
		t.Fatalf("default cursor has id %q", d.AfterID)
	}
}

func TestFutureSelfHeal(t *testing.T) {
	now := time.Now()
	stored := map[string]any{"after_time": now.Add(10 * time.Minute).Format(time.RFC3339)}
	got := Normalize(stored, now)
	if !got.AfterTime.Equal(now.Add(-LookbackWindow).UTC()) {
		t.Fatalf("future cursor not healed: %v", got.AfterTime)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, logger.NopLogger{})

	ts := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	s.Save(Cursor{AfterTime: ts, AfterID: "evt-42"})

	got := s.Load()
	if !got.AfterTime.Equal(ts) || got.AfterID != "evt-42" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, stateFileName), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(dir, logger.NopLogger{})
	got := s.Load()
	if got.AfterID != "" || got.AfterTime.After(time.Now()) {
		t.Fatalf("corrupt file did not default: %+v", got)
	}
}

func TestFileStoreMissing(t *testing.T) {
	s := NewFileStore(t.TempDir(), logger.NopLogger{})
	got := s.Load()
	want := time.Now().Add(-LookbackWindow)
	if got.AfterTime.Before(want.Add(-time.Minute)) || got.AfterTime.After(want.Add(time.Minute)) {
		t.Fatalf("missing file default off: %v", got.AfterTime)
	}
}

func TestCursorJSONShape(t *testing.T) {
	c := Cursor{AfterTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), AfterID: "e9"}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["after_time"]; !ok {
		t.Fatalf("missing after_time field: %s", data)
	}
	if m["after_id"] != "e9" {
		t.Fatalf("missing after_id field: %s", data)
	}
}

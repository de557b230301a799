package poll

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlink/driverd/core/model"
	"github.com/fleetlink/driverd/infra/logger"
)

type locationReading struct {
	loc model.LatLon
	at  time.Time
}

type captureTarget struct {
	mu       sync.Mutex
	readings []locationReading
	notify   chan struct{}
}

func newCaptureTarget() *captureTarget {
	return &captureTarget{notify: make(chan struct{}, 16)}
}

func (c *captureTarget) SetLiveLocation(vehicleID string, loc model.LatLon, at time.Time) {
	c.mu.Lock()
	c.readings = append(c.readings, locationReading{loc: loc, at: at})
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *captureTarget) all() []locationReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]locationReading, len(c.readings))
	copy(out, c.readings)
	return out
}

func runLocationPoller(t *testing.T, srvURL string, target LocationTarget, done <-chan struct{}) {
	t.Helper()
	p := NewLocationPoller(LocationConfig{
		BaseURL:   srvURL,
		VehicleID: "TRUCK_001",
		Interval:  time.Millisecond,
	}, target, logger.NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = p.Start(ctx)
		close(stopped)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Error("location poller did not reach expected state in time")
	}
	cancel()
	<-stopped
}

func TestLocationPollDeliversReading(t *testing.T) {
	received := time.Date(2026, 1, 27, 9, 15, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/location", r.URL.Path)
		assert.Equal(t, "TRUCK_001", r.URL.Query().Get("vehicle_id"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":                 true,
			"location":           map[string]any{"lat": 47.6, "lon": -122.3},
			"vehicle_id":         "TRUCK_001",
			"server_received_at": received.Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	target := newCaptureTarget()
	runLocationPoller(t, srv.URL, target, target.notify)

	readings := target.all()
	require.NotEmpty(t, readings)
	assert.Equal(t, model.LatLon{Lat: 47.6, Lon: -122.3}, readings[0].loc)
	assert.True(t, readings[0].at.Equal(received), "timestamp %v", readings[0].at)
}

func TestLocationPollFlatCoordinatesTolerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":  true,
			"lat": 48.1,
			"lon": -121.9,
		})
	}))
	defer srv.Close()

	target := newCaptureTarget()
	runLocationPoller(t, srv.URL, target, target.notify)

	readings := target.all()
	require.NotEmpty(t, readings)
	assert.Equal(t, model.LatLon{Lat: 48.1, Lon: -121.9}, readings[0].loc)
}

func TestLocationPollSkipsStaleAndNotOK(t *testing.T) {
	responses := []map[string]any{
		{"ok": false, "location": map[string]any{"lat": 1.0, "lon": 1.0}},
		{"ok": true, "stale": true, "location": map[string]any{"lat": 2.0, "lon": 2.0}},
		{"ok": true, "location": map[string]any{"lat": "not-a-number", "lon": 3.0}},
		{"ok": true},
		{"ok": true, "location": map[string]any{"lat": 47.6, "lon": -122.3}},
	}
	var mu sync.Mutex
	i := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[i]
		if i < len(responses)-1 {
			i++
		}
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	target := newCaptureTarget()
	runLocationPoller(t, srv.URL, target, target.notify)

	readings := target.all()
	require.NotEmpty(t, readings)
	// Only the final, valid reading lands.
	assert.Equal(t, model.LatLon{Lat: 47.6, Lon: -122.3}, readings[0].loc)
}

func TestLocationPollSurvivesServerErrors(t *testing.T) {
	var mu sync.Mutex
	n := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n++
		fail := n <= 3
		mu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":       true,
			"location": map[string]any{"lat": 10.0, "lon": 20.0},
		})
	}))
	defer srv.Close()

	target := newCaptureTarget()
	runLocationPoller(t, srv.URL, target, target.notify)

	readings := target.all()
	require.NotEmpty(t, readings)
	assert.Equal(t, model.LatLon{Lat: 10.0, Lon: 20.0}, readings[0].loc)
}

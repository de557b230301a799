package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fleetlink/driverd/core/logger"
	"github.com/fleetlink/driverd/core/model"
	"github.com/fleetlink/driverd/core/stops"
	"github.com/fleetlink/driverd/internal/lookup"
)

// LocationTarget receives confirmed GPS readings. The first delivered
// reading latches location authority to this poller for the session.
type LocationTarget interface {
	SetLiveLocation(vehicleID string, loc model.LatLon, at time.Time)
}

// LocationConfig parameterizes the short-poll loop.
type LocationConfig struct {
	BaseURL   string
	VehicleID string
	Interval  time.Duration
}

func (c *LocationConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
}

// LocationPoller fetches the realtime vehicle position once per interval.
// Stale or malformed readings are skipped; errors never stop the loop.
type LocationPoller struct {
	cfg    LocationConfig
	log    logger.Logger
	target LocationTarget
	client *http.Client
	now    func() time.Time
}

// NewLocationPoller creates a LocationPoller.
func NewLocationPoller(cfg LocationConfig, target LocationTarget, log logger.Logger) *LocationPoller {
	cfg.setDefaults()
	return &LocationPoller{
		cfg:    cfg,
		log:    log,
		target: target,
		client: &http.Client{Timeout: 5 * time.Second},
		now:    time.Now,
	}
}

// Start begins the polling loop. Returns when the context is canceled.
func (p *LocationPoller) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.log.Debugf("location poll: %v", err)
			}
		}
	}
}

func (p *LocationPoller) pollOnce(ctx context.Context) error {
	q := url.Values{}
	q.Set("vehicle_id", p.cfg.VehicleID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/location?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if ok, _ := lookup.Bool(body, "ok"); !ok {
		return nil
	}
	if stale, _ := lookup.Bool(body, "stale"); stale {
		p.log.Debugf("stale location reading skipped")
		return nil
	}
	// The reading arrives as a nested location object; ExtractLatLon also
	// tolerates flat lat/lon fields.
	loc := stops.ExtractLatLon(body)
	if loc == nil {
		return nil
	}

	vehicleID := p.cfg.VehicleID
	if v, ok := lookup.Str(body, "vehicle_id"); ok {
		vehicleID = v
	}
	at := p.now()
	if raw, ok := lookup.Str(body, "server_received_at", "timestamp", "updated_at"); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			at = ts
		}
	}
	p.target.SetLiveLocation(vehicleID, *loc, at)
	return nil
}

// Package poll implements the two backend polling loops of a driver
// session: the event long-poll with its cursor state machine, and the
// 1-second location short-poll.
package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fleetlink/driverd/core/cursor"
	"github.com/fleetlink/driverd/core/logger"
	"github.com/fleetlink/driverd/core/metrics"
	"github.com/fleetlink/driverd/core/model"
	"github.com/fleetlink/driverd/internal/lookup"
)

// zeroAfterID is sent when no event id has been confirmed yet.
const zeroAfterID = "00000000-0000-0000-0000-000000000000"

// EventHandler consumes normalized event payloads. The cursor advances
// only after the handler returns.
type EventHandler interface {
	OnLiveEvent(p model.EventPayload)
}

// EventConfig parameterizes the long-poll loop.
type EventConfig struct {
	BaseURL   string
	VehicleID string
	// WaitSeconds is the server-side hold time per request.
	WaitSeconds int
	// Backoff is the delay after an error iteration.
	Backoff time.Duration
}

func (c *EventConfig) setDefaults() {
	if c.WaitSeconds <= 0 {
		c.WaitSeconds = 20
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
}

// EventPoller drives the sequential long-poll loop: exactly one request
// in flight, cursor persisted through the store, errors retried forever.
type EventPoller struct {
	cfg     EventConfig
	log     logger.Logger
	sink    metrics.MetricsSink
	store   cursor.Store
	handler EventHandler
	client  *http.Client
	now     func() time.Time

	cur               cursor.Cursor
	warnedFutureReset bool
	warnedBadRequest  bool
}

// NewEventPoller creates an EventPoller. sink may be nil.
func NewEventPoller(cfg EventConfig, store cursor.Store, handler EventHandler, log logger.Logger, sink metrics.MetricsSink) *EventPoller {
	cfg.setDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &EventPoller{
		cfg:     cfg,
		log:     log,
		sink:    sink,
		store:   store,
		handler: handler,
		client:  &http.Client{Timeout: time.Duration(cfg.WaitSeconds)*time.Second + 10*time.Second},
		now:     time.Now,
	}
}

// Start runs the poll loop until the context is canceled. Cancellation is
// the only way out; every error is retried after the backoff.
func (p *EventPoller) Start(ctx context.Context) error {
	p.cur = p.store.Load()
	for {
		if ctx.Err() != nil {
			return nil
		}
		p.pollOnce(ctx)
	}
}

func (p *EventPoller) setCursor(c cursor.Cursor) {
	p.cur = c
	p.store.Save(c)
}

func (p *EventPoller) backoff(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.Backoff):
	}
}

func (p *EventPoller) pollOnce(ctx context.Context) {
	if p.cur.Future(p.now()) {
		if !p.warnedFutureReset {
			p.log.Warnf("cursor after_time %s in the future, resetting", p.cur.AfterTime.Format(time.RFC3339))
			p.warnedFutureReset = true
		}
		p.setCursor(cursor.Default(p.now()))
		_ = p.sink.RecordCursorReset(metrics.CursorReset{Reason: "future_cursor", Time: p.now()})
	}

	start := p.now()
	status, item, err := p.fetch(ctx)
	elapsed := p.now().Sub(start)

	switch {
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		p.log.Errorf("poll: %v", err)
		_ = p.sink.RecordPoll(metrics.PollResult{Outcome: metrics.PollOutcomeTransport, Duration: elapsed, Time: p.now()})
		p.backoff(ctx)
		return

	case status == http.StatusBadRequest:
		if !p.warnedBadRequest {
			p.log.Warnf("poll rejected with 400, resetting cursor")
			p.warnedBadRequest = true
		}
		p.setCursor(cursor.Default(p.now()))
		_ = p.sink.RecordCursorReset(metrics.CursorReset{Reason: "bad_request", Time: p.now()})
		_ = p.sink.RecordPoll(metrics.PollResult{Outcome: metrics.PollOutcomeHTTPError, Status: status, Duration: elapsed, Time: p.now()})
		p.backoff(ctx)
		return

	case status < 200 || status > 299:
		p.log.Warnf("poll returned HTTP %d, retrying after backoff", status)
		_ = p.sink.RecordPoll(metrics.PollResult{Outcome: metrics.PollOutcomeHTTPError, Status: status, Duration: elapsed, Time: p.now()})
		p.backoff(ctx)
		return
	}

	payload := extractPayload(item)
	if payload.Empty() {
		// Server-side timeout tick: the cursor stays untouched.
		_ = p.sink.RecordPoll(metrics.PollResult{Outcome: metrics.PollOutcomeEmpty, Status: status, Duration: elapsed, Time: p.now()})
		return
	}

	p.handler.OnLiveEvent(payload)
	_ = p.sink.RecordPoll(metrics.PollResult{Outcome: metrics.PollOutcomeEvents, Status: status, Duration: elapsed, Time: p.now()})
	p.advance(item)
}

// fetch performs one long-poll request and decodes the response item.
func (p *EventPoller) fetch(ctx context.Context) (int, map[string]any, error) {
	q := url.Values{}
	q.Set("vehicle_id", p.cfg.VehicleID)
	q.Set("after_time", p.cur.AfterTime.UTC().Format(time.RFC3339))
	afterID := p.cur.AfterID
	if afterID == "" {
		afterID = zeroAfterID
	}
	q.Set("after_id", afterID)
	q.Set("wait_s", fmt.Sprintf("%d", p.cfg.WaitSeconds))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/event?"+q.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, nil
	}

	var body struct {
		Item map[string]any `json:"item"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return resp.StatusCode, nil, errors.New("failed to decode response body")
	}
	return resp.StatusCode, body.Item, nil
}

// extractPayload maps the loosely-typed response item to the event payload,
// tolerating the known field aliases.
func extractPayload(item map[string]any) model.EventPayload {
	if item == nil {
		return model.EventPayload{}
	}
	return model.EventPayload{
		Incident:             lookup.Map(item, "incident"),
		VehicleStatus:        lookup.Map(item, "vehicle_status", "vehicleStatus"),
		OriginalTaskSequence: lookup.Maps(item, "original_task_sequence", "tasks"),
		Stops:                lookup.Maps(item, "stops"),
	}
}

// advance moves the cursor forward using server-confirmed record fields.
// No candidate, an out-of-skew timestamp or a regression leaves the cursor
// unchanged.
func (p *EventPoller) advance(item map[string]any) {
	raw, ok := pickServerTimestamp(item)
	if !ok {
		return
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		p.log.Debugf("unparseable server timestamp %q, cursor unchanged", raw)
		return
	}
	now := p.now()
	if ts.After(now.Add(cursor.SkewTolerance)) || ts.Before(p.cur.AfterTime) {
		return
	}
	next := cursor.Cursor{AfterTime: ts.UTC(), AfterID: p.cur.AfterID}
	if id, ok := pickServerEventID(item); ok {
		next.AfterID = id
	}
	p.setCursor(next)
}

// Ordered timestamp candidates: incident fields win over the generic event
// block, which wins over the vehicle status block.
func pickServerTimestamp(item map[string]any) (string, bool) {
	for _, section := range []string{"incident", "event", "vehicle_status"} {
		if v, ok := lookup.Str(lookup.Map(item, section), "timestamp", "updated_at", "last_update_at"); ok {
			return v, true
		}
	}
	return "", false
}

func pickServerEventID(item map[string]any) (string, bool) {
	if v, ok := lookup.Str(lookup.Map(item, "incident"), "incident_id", "event_id", "id"); ok {
		return v, true
	}
	for _, section := range []string{"event", "vehicle_status"} {
		if v, ok := lookup.Str(lookup.Map(item, section), "event_id", "id"); ok {
			return v, true
		}
	}
	return "", false
}

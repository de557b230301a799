// Package cursor owns the persisted long-poll cursor: the marker of the
// last consumed backend event. A cursor is only ever advanced from
// server-confirmed record fields; everything here is about loading,
// validating and repairing it.
package cursor

import (
	"time"

	"github.com/fleetlink/driverd/internal/lookup"
)

const (
	// LookbackWindow bounds the catch-up window after a hard reset:
	// a defaulted cursor starts this far in the past.
	LookbackWindow = 5 * time.Minute
	// SkewTolerance is the maximum accepted clock drift between the
	// client and the backend before a cursor counts as poisoned.
	SkewTolerance = 2 * time.Minute
)

// Cursor marks the last consumed event of the vehicle's stream.
type Cursor struct {
	AfterTime time.Time `json:"after_time"`
	AfterID   string    `json:"after_id,omitempty"`
}

// Default returns the safe fallback cursor: lookback-window in the past
// with no event id.
func Default(now time.Time) Cursor {
	return Cursor{AfterTime: now.Add(-LookbackWindow).UTC()}
}

// Future reports whether the cursor's timestamp lies beyond the skew
// tolerance ahead of now. A zero timestamp is never future.
func (c Cursor) Future(now time.Time) bool {
	if c.AfterTime.IsZero() {
		return false
	}
	return c.AfterTime.After(now.Add(SkewTolerance))
}

// Normalize repairs a loosely-shaped candidate cursor. Alternate field
// casings are tolerated; an unparseable or future timestamp yields the safe
// default instead.
func Normalize(candidate map[string]any, now time.Time) Cursor {
	raw, ok := lookup.Str(candidate, "after_time", "afterTime")
	if !ok {
		return Default(now)
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return Default(now)
	}
	c := Cursor{AfterTime: ts.UTC()}
	if c.Future(now) {
		return Default(now)
	}
	if id, ok := lookup.Str(candidate, "after_id", "afterId"); ok {
		c.AfterID = id
	}
	return c
}

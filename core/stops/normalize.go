// Package stops maps heterogeneous backend and demo stop records into the
// canonical DeliveryStop shape and derives the current/next stop from a
// stop list.
package stops

import (
	"fmt"
	"time"

	"github.com/fleetlink/driverd/core/model"
	"github.com/fleetlink/driverd/internal/lookup"
)

// Defaults parameterize the synthetic values used when a record omits a
// field. They exist for demo/bootstrap data only; real backend records carry
// their own values.
type Defaults struct {
	PlanID       string
	VehicleID    string
	PackageCount int
	// WindowSpacing is the synthetic time-window width per stop index.
	WindowSpacing time.Duration
}

// DefaultDefaults mirrors the bootstrap behavior: 30-minute windows and a
// single package per stop.
func DefaultDefaults(planID, vehicleID string) Defaults {
	return Defaults{PlanID: planID, VehicleID: vehicleID, PackageCount: 1, WindowSpacing: 30 * time.Minute}
}

// coordinate field candidates, nested objects first. First match wins.
var nestedCoordKeys = []string{"location", "gps", "position", "stop_location", "coordinates", "coords"}

// ExtractLatLon pulls a GPS coordinate out of a loose record by trying the
// ordered candidate fields. It returns nil when no candidate matches; a
// coordinate is never synthesized.
func ExtractLatLon(rec map[string]any) *model.LatLon {
	for _, key := range nestedCoordKeys {
		nested := lookup.Map(rec, key)
		if nested == nil {
			continue
		}
		lat, okLat := lookup.Float(nested, "lat", "latitude")
		lon, okLon := lookup.Float(nested, "lon", "lng", "longitude")
		if okLat && okLon {
			return &model.LatLon{Lat: lat, Lon: lon}
		}
	}
	lat, okLat := lookup.Float(rec, "lat", "latitude")
	lon, okLon := lookup.Float(rec, "lon", "lng", "longitude")
	if okLat && okLon {
		return &model.LatLon{Lat: lat, Lon: lon}
	}
	return nil
}

// Normalize maps raw stop records to canonical stops. Input order is
// preserved; nothing is sorted or deduplicated. A record that cannot be
// mapped is replaced by its synthetic fallback so one malformed record
// cannot fail the batch.
func Normalize(raw []map[string]any, now time.Time, d Defaults) []model.DeliveryStop {
	out := make([]model.DeliveryStop, 0, len(raw))
	for i, rec := range raw {
		out = append(out, normalizeOne(rec, i, now, d))
	}
	return out
}

func normalizeOne(rec map[string]any, index int, now time.Time, d Defaults) model.DeliveryStop {
	s := fallbackStop(index, now, d)
	if rec == nil {
		return s
	}

	if id, ok := lookup.Str(rec, "stop_id", "task_id", "id"); ok {
		s.StopID = id
	}
	if v, ok := lookup.Str(rec, "plan_id"); ok {
		s.PlanID = v
	}
	if v, ok := lookup.Str(rec, "vehicle_id"); ok {
		s.VehicleID = v
	}
	if v, ok := lookup.Float(rec, "original_sequence", "sequence", "order"); ok {
		s.OriginalSequence = int(v)
	}
	if v, ok := lookup.Float(rec, "current_sequence", "sequence", "order"); ok {
		s.CurrentSequence = int(v)
	}
	if v, ok := lookup.Str(rec, "address"); ok {
		s.Address = v
	}
	if ts, ok := parseTime(rec, "planned_time_start"); ok {
		s.PlannedTimeStart = ts
	}
	if ts, ok := parseTime(rec, "planned_time_end"); ok {
		s.PlannedTimeEnd = ts
	}
	if v, ok := lookup.Str(rec, "status"); ok {
		s.Status = model.StopStatus(v)
	}
	if v, ok := lookup.Float(rec, "package_count"); ok {
		s.PackageCount = int(v)
	}
	s.Location = ExtractLatLon(rec)
	return s
}

// fallbackStop is the deterministic synthetic shape for demo/bootstrap data:
// zero-padded id, 30-minute windows, first two stops completed and the third
// in progress.
func fallbackStop(index int, now time.Time, d Defaults) model.DeliveryStop {
	status := model.StopPending
	switch {
	case index < 2:
		status = model.StopCompleted
	case index == 2:
		status = model.StopInProgress
	}
	return model.DeliveryStop{
		StopID:           fmt.Sprintf("STOP_%03d", index+1),
		PlanID:           d.PlanID,
		VehicleID:        d.VehicleID,
		OriginalSequence: index + 1,
		CurrentSequence:  index + 1,
		Address:          fmt.Sprintf("Address %d", index+1),
		PlannedTimeStart: now.Add(time.Duration(index) * d.WindowSpacing),
		PlannedTimeEnd:   now.Add(time.Duration(index+1) * d.WindowSpacing),
		Status:           status,
		PackageCount:     d.PackageCount,
	}
}

func parseTime(rec map[string]any, key string) (time.Time, bool) {
	raw, ok := lookup.Str(rec, key)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

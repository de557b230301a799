package stops

import (
	"sort"

	"github.com/fleetlink/driverd/core/model"
)

// bySequence returns a copy of the stops ordered by current sequence.
func bySequence(list []model.DeliveryStop) []model.DeliveryStop {
	sorted := make([]model.DeliveryStop, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CurrentSequence < sorted[j].CurrentSequence
	})
	return sorted
}

// Current returns the lowest-sequence stop that is not completed, or the
// lowest-sequence stop when all are completed. Nil for an empty list.
func Current(list []model.DeliveryStop) *model.DeliveryStop {
	if len(list) == 0 {
		return nil
	}
	sorted := bySequence(list)
	for i := range sorted {
		if !sorted[i].Status.Completed() {
			return &sorted[i]
		}
	}
	return &sorted[0]
}

// Next returns the stop immediately following Current in sequence order,
// or nil when there is none.
func Next(list []model.DeliveryStop) *model.DeliveryStop {
	cur := Current(list)
	if cur == nil {
		return nil
	}
	sorted := bySequence(list)
	for i := range sorted {
		if sorted[i].StopID == cur.StopID {
			if i+1 < len(sorted) {
				return &sorted[i+1]
			}
			return nil
		}
	}
	return nil
}

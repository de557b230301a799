package fleet

import (
	"github.com/fleetlink/driverd/core/model"
	"github.com/fleetlink/driverd/core/stops"
)

// Snapshot returns an atomic copy of the session state. Derived values
// (current/next stop) are recomputed from the authoritative stop list on
// every call, never cached.
func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	stopsCopy := make([]model.DeliveryStop, len(c.stopList))
	copy(stopsCopy, c.stopList)
	histCopy := make([]HistoryEntry, len(c.history))
	copy(histCopy, c.history)

	var active *ActiveAlert
	if c.active != nil {
		a := *c.active
		active = &a
	}

	return Snapshot{
		Vehicle:       c.vehicle,
		Stops:         stopsCopy,
		CurrentStop:   stops.Current(stopsCopy),
		NextStop:      stops.Next(stopsCopy),
		ActiveAlert:   active,
		AlertStatus:   c.alertStatus,
		AlertBehavior: c.alertBehavior,
		History:       histCopy,
		Paused:        c.paused,
		BufferedCount: len(c.buffer),
	}
}

// ActiveAlert returns a copy of the active alert, or nil.
func (c *Container) ActiveAlert() *ActiveAlert {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	a := *c.active
	return &a
}

// Stops returns a copy of the stop list in its current order.
func (c *Container) Stops() []model.DeliveryStop {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.DeliveryStop, len(c.stopList))
	copy(out, c.stopList)
	return out
}

// CurrentStop returns the stop the driver should be working on.
func (c *Container) CurrentStop() *model.DeliveryStop {
	return stops.Current(c.Stops())
}

// NextStop returns the stop after the current one, or nil.
func (c *Container) NextStop() *model.DeliveryStop {
	return stops.Next(c.Stops())
}

// BufferedCount returns the number of alerts waiting in the pause buffer.
func (c *Container) BufferedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// SeedStops installs bootstrap stops (demo data) unless backend stops are
// already in use.
func (c *Container) SeedStops(list []model.DeliveryStop) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.useBackendStops {
		c.log.Debugf("bootstrap stops ignored: backend stops in use")
		return
	}
	c.stopList = make([]model.DeliveryStop, len(list))
	copy(c.stopList, list)
	c.notifyChanged()
}

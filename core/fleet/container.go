package fleet

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetlink/driverd/core/alert"
	"github.com/fleetlink/driverd/core/logger"
	"github.com/fleetlink/driverd/core/messages"
	"github.com/fleetlink/driverd/core/metrics"
	"github.com/fleetlink/driverd/core/model"
	"github.com/fleetlink/driverd/internal/eventbus"
)

// Recomputed time windows after a route accept: the first stop starts five
// minutes out, each subsequent stop ten minutes later, every window spans
// ten minutes. An approximation pending true ETA computation.
const (
	acceptLeadTime    = 5 * time.Minute
	acceptStopSpacing = 10 * time.Minute
	acceptWindowSpan  = 10 * time.Minute
)

// Container is the fleet state container. All mutations go through its
// mutex; reads return copies.
type Container struct {
	cfg  Config
	log  logger.Logger
	sink metrics.MetricsSink
	bus  *eventbus.Bus
	msgs messages.Store
	noti Notifier
	now  func() time.Time

	mu sync.Mutex

	vehicle         model.VehicleRealtimeStatus
	stopList        []model.DeliveryStop
	useBackendStops bool
	lastAcceptAt    time.Time
	locationLatched bool

	active         *ActiveAlert
	alertStatus    AlertStatus
	alertBehavior  alert.Behavior
	currentEvent   *model.IncidentEvent
	pendingReseq   *model.ResequenceResult
	pendingTaskSeq []model.TaskSequenceItem

	paused  bool
	buffer  []IngestedAlert
	history []HistoryEntry

	seen      map[string]struct{}
	seenOrder []string
}

// New creates a Container. bus, msgs and noti may be nil; sink may be nil
// and defaults to the nop sink.
func New(cfg Config, log logger.Logger, sink metrics.MetricsSink, bus *eventbus.Bus, msgs messages.Store, noti Notifier) *Container {
	cfg.setDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Container{
		cfg:  cfg,
		log:  log,
		sink: sink,
		bus:  bus,
		msgs: msgs,
		noti: noti,
		now:  time.Now,
		vehicle: model.VehicleRealtimeStatus{
			VehicleID: cfg.VehicleID,
			Status:    model.StatusOnRoute,
		},
		paused: cfg.StartPaused,
		seen:   make(map[string]struct{}),
	}
}

func (c *Container) notifyChanged() {
	if c.bus != nil {
		c.bus.Publish(eventbus.ChangeFleet)
	}
}

// Ingest records the alert into history and either buffers it (paused) or
// activates it immediately. This is the single entry point for live and
// demo alerts.
func (c *Container) Ingest(a IngestedAlert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ingestLocked(a)
}

func (c *Container) ingestLocked(a IngestedAlert) {
	c.appendHistoryLocked(a)
	_ = c.sink.RecordIncident(metrics.IncidentIngest{
		IncidentID: a.IncidentID,
		Severity:   string(a.Severity),
		Behavior:   string(a.Behavior),
		Source:     string(a.Source),
		Time:       c.now(),
	})

	if c.paused {
		c.log.Infof("alert %s received while paused, buffering (%d queued)", a.IncidentID, len(c.buffer)+1)
		c.buffer = append(c.buffer, a)
		_ = c.sink.RecordAlertTransition(metrics.AlertTransition{IncidentID: a.IncidentID, Transition: metrics.AlertBuffered, Time: c.now()})
		c.notifyChanged()
		return
	}
	c.activateLocked(a)
}

// appendHistoryLocked records the alert in the history panel, newest first,
// deduplicated by incident id and capped.
func (c *Container) appendHistoryLocked(a IngestedAlert) {
	for _, h := range c.history {
		if h.IncidentID == a.IncidentID {
			return
		}
	}
	entry := HistoryEntry{
		IncidentID: a.IncidentID,
		Severity:   a.Severity,
		EventType:  a.Event.EventType,
		Timestamp:  a.Event.StartTime,
		Title:      a.Event.Reason,
		Reason:     a.Event.Reason,
		VehicleID:  a.Event.VehicleID,
	}
	if entry.Title == "" {
		entry.Title = strings.ReplaceAll(string(a.Event.EventType), "_", " ")
	}
	if a.Incident != nil {
		entry.Description = a.Incident.Description
		if entry.Description == "" {
			entry.Description = a.Event.Reason
		}
		entry.GPSSpeed = a.Incident.GPSSpeed
		entry.EngineStatus = a.Incident.EngineStatus
		entry.DTCCodes = a.Incident.DTCCodes
		entry.ETAImpactMin = a.Incident.ETAImpactMin
	}
	c.history = append([]HistoryEntry{entry}, c.history...)
	if len(c.history) > c.cfg.HistoryCap {
		c.history = c.history[:c.cfg.HistoryCap]
	}
}

// activateLocked is the only path that sets the active-alert slot.
func (c *Container) activateLocked(a IngestedAlert) {
	reseq := a.Resequence
	taskSeq := a.TaskSequence

	if a.Behavior == alert.BehaviorMedium {
		// No speculative routing UI: a live MEDIUM waits for the
		// backend-confirmed resequence; a demo MEDIUM never gets one.
		reseq = nil
		taskSeq = nil
	}

	if a.Behavior == alert.BehaviorHigh && a.Incident != nil {
		n := alert.HighSeverityNotice(*a.Incident, c.now())
		if c.msgs != nil {
			c.msgs.Add(messages.Message{
				ID:        "MSG_" + uuid.NewString(),
				ThreadID:  n.ThreadID,
				Title:     n.Title,
				Content:   n.Content,
				Timestamp: c.now(),
				IsSent:    true,
			})
		}
		if c.noti != nil {
			if err := c.noti.PublishNotice(n); err != nil {
				c.log.Errorf("notice publish for %s: %v", a.IncidentID, err)
			}
		}
	}

	c.pendingReseq = reseq
	c.pendingTaskSeq = taskSeq
	ev := a.Event
	c.currentEvent = &ev
	c.alertBehavior = a.Behavior
	c.alertStatus = AlertPending
	c.active = &ActiveAlert{
		IncidentID: a.IncidentID,
		Severity:   a.Severity,
		Source:     a.Source,
		Event:      a.Event,
		Behavior:   a.Behavior,
		Timestamp:  c.now(),
	}
	c.log.Infof("alert %s active (severity=%s source=%s)", a.IncidentID, a.Severity, a.Source)
	_ = c.sink.RecordAlertTransition(metrics.AlertTransition{IncidentID: a.IncidentID, Transition: metrics.AlertActivated, Time: c.now()})
	c.notifyChanged()
}

// ApplyResequence attaches a backend-confirmed resequence to the active
// live MEDIUM alert. Ignored when no matching alert is pending.
func (c *Container) ApplyResequence(r model.ResequenceResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.Source != SourceLive || c.alertBehavior != alert.BehaviorMedium {
		c.log.Debugf("resequence %s dropped: no live MEDIUM alert pending", r.ResultID)
		return
	}
	if r.IncidentID != "" && r.IncidentID != c.active.IncidentID {
		c.log.Warnf("resequence %s targets incident %s, active is %s; dropped", r.ResultID, r.IncidentID, c.active.IncidentID)
		return
	}
	c.pendingReseq = &r
	c.notifyChanged()
}

// AcceptRouting applies the pending resequence to the stop list and clears
// the active alert. Demo alerts are a strict no-op. Without a pending
// resequence only the alert state is cleared.
func (c *Container) AcceptRouting() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && c.active.Source == SourceDemo {
		c.log.Infof("accept on demo alert %s: no-op", c.active.IncidentID)
		return
	}

	if c.alertBehavior == alert.BehaviorMedium && c.pendingReseq != nil {
		c.applyResequenceLocked(*c.pendingReseq)
	}

	if c.active != nil {
		_ = c.sink.RecordAlertTransition(metrics.AlertTransition{IncidentID: c.active.IncidentID, Transition: metrics.AlertAccepted, Time: c.now()})
	}
	c.lastAcceptAt = c.now()
	c.clearActiveAlertLocked("user-accept")
}

// applyResequenceLocked rebuilds the stop list strictly following the
// server-provided new sequence: full replacement, not a merge. Stops absent
// from the current list are dropped.
func (c *Container) applyResequenceLocked(r model.ResequenceResult) {
	byID := make(map[string]model.DeliveryStop, len(c.stopList))
	for _, s := range c.stopList {
		byID[s.StopID] = s
	}

	reordered := make([]model.DeliveryStop, 0, len(r.NewSequence))
	for _, entry := range r.NewSequence {
		s, ok := byID[entry.StopID]
		if !ok {
			c.log.Warnf("resequence references unknown stop %s, dropping", entry.StopID)
			continue
		}
		reordered = append(reordered, s)
	}
	for i := range reordered {
		reordered[i].CurrentSequence = i + 1
	}

	c.stopList = recalcWindows(reordered, c.now())
	c.log.Infof("route accepted: %d stops resequenced", len(c.stopList))
}

// recalcWindows recomputes planned time windows from now using the fixed
// per-stop spacing.
func recalcWindows(list []model.DeliveryStop, now time.Time) []model.DeliveryStop {
	out := make([]model.DeliveryStop, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CurrentSequence < out[j].CurrentSequence })
	for i := range out {
		start := now.Add(acceptLeadTime + time.Duration(i)*acceptStopSpacing)
		out[i].PlannedTimeStart = start
		out[i].PlannedTimeEnd = start.Add(acceptWindowSpan)
	}
	return out
}

// DismissRouting clears the active alert without touching the stop list,
// regardless of behavior or source.
func (c *Container) DismissRouting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		_ = c.sink.RecordAlertTransition(metrics.AlertTransition{IncidentID: c.active.IncidentID, Transition: metrics.AlertDismissed, Time: c.now()})
	}
	c.clearActiveAlertLocked("user-dismiss")
}

// ClearActiveAlert resets every alert-related field to its empty state.
// It never fails.
func (c *Container) ClearActiveAlert(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearActiveAlertLocked(reason)
}

func (c *Container) clearActiveAlertLocked(reason string) {
	if c.active != nil {
		c.log.Infof("clearing active alert %s: %s", c.active.IncidentID, reason)
	}
	c.active = nil
	c.alertStatus = ""
	c.alertBehavior = alert.BehaviorNone
	c.currentEvent = nil
	c.pendingReseq = nil
	c.pendingTaskSeq = nil
	c.notifyChanged()
}

// TogglePause flips the paused state. Unpausing does not flush the buffer
// itself; the drain loop dequeues on its next tick so state can settle.
func (c *Container) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = !c.paused
	c.log.Infof("alerts %s", map[bool]string{true: "paused", false: "unpaused"}[c.paused])
	c.notifyChanged()
	return c.paused
}

// Paused reports the pause state.
func (c *Container) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// RunDrain dequeues buffered alerts while unpaused: strictly FIFO, one at a
// time, waiting for the active slot to clear between pops. Returns when the
// context is canceled.
func (c *Container) RunDrain(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.DrainTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.drainOne()
		}
	}
}

// drainOne pops and activates the oldest buffered alert if the slot is free.
func (c *Container) drainOne() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused || c.active != nil || len(c.buffer) == 0 {
		return
	}
	oldest := c.buffer[0]
	c.buffer = c.buffer[1:]
	c.log.Infof("dequeuing buffered alert %s (%d remaining)", oldest.IncidentID, len(c.buffer))
	c.activateLocked(oldest)
}

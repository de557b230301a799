// Package fleet exposes the driver session over a local HTTP API: state
// snapshots for the UI and the driver-initiated mutations.
package fleet

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	corefleet "github.com/fleetlink/driverd/core/fleet"
	"github.com/fleetlink/driverd/core/logger"
	"github.com/fleetlink/driverd/core/messages"
	"github.com/fleetlink/driverd/core/model"
	"github.com/fleetlink/driverd/internal/eventbus"
)

const (
	defaultWatchWait = 20 * time.Second
	maxWatchWait     = 60 * time.Second
)

// Handler serves the session API.
type Handler struct {
	container *corefleet.Container
	msgs      messages.Store
	bus       *eventbus.Bus
	log       logger.Logger
}

// NewHandler creates a Handler around the session container and mailbox.
func NewHandler(c *corefleet.Container, msgs messages.Store, bus *eventbus.Bus, log logger.Logger) *Handler {
	return &Handler{container: c, msgs: msgs, bus: bus, log: log}
}

// Register mounts all session routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/fleet/state", h.handleState)
	mux.HandleFunc("/api/fleet/watch", h.handleWatch)
	mux.HandleFunc("/api/fleet/accept", h.handleAccept)
	mux.HandleFunc("/api/fleet/dismiss", h.handleDismiss)
	mux.HandleFunc("/api/fleet/pause", h.handlePause)
	mux.HandleFunc("/api/fleet/demo-alert", h.handleDemoAlert)
	mux.HandleFunc("/api/messages", h.handleMessages)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.container.Snapshot())
}

// handleWatch long-polls for the next state change. It blocks until the
// container or message store mutates, then answers with the change kind and
// a fresh snapshot so the UI re-renders without a second round trip. A quiet
// session answers {"change": null} after wait_s.
func (h *Handler) handleWatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	wait := defaultWatchWait
	if raw := r.URL.Query().Get("wait_s"); raw != "" {
		s, err := strconv.Atoi(raw)
		if err != nil || s <= 0 {
			http.Error(w, "invalid wait_s", http.StatusBadRequest)
			return
		}
		wait = time.Duration(s) * time.Second
		if wait > maxWatchWait {
			wait = maxWatchWait
		}
	}

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	type watchResponse struct {
		Change *eventbus.Change    `json:"change"`
		State  *corefleet.Snapshot `json:"state"`
	}

	select {
	case <-r.Context().Done():
	case <-timer.C:
		writeJSON(w, http.StatusOK, watchResponse{})
	case change, open := <-sub:
		if !open {
			// Bus closed, session shutting down.
			writeJSON(w, http.StatusOK, watchResponse{})
			return
		}
		snap := h.container.Snapshot()
		writeJSON(w, http.StatusOK, watchResponse{Change: &change, State: &snap})
	}
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.container.AcceptRouting()
	writeJSON(w, http.StatusOK, h.container.Snapshot())
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.container.DismissRouting()
	writeJSON(w, http.StatusOK, h.container.Snapshot())
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	paused := h.container.TogglePause()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

func (h *Handler) handleDemoAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Severity string `json:"severity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	severity := model.Severity(strings.ToUpper(body.Severity))

	id, err := h.container.TriggerDemoAlert(severity)
	if err != nil {
		if errors.Is(err, corefleet.ErrAlertActive) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Infof("demo alert %s triggered via API", id)
	writeJSON(w, http.StatusOK, map[string]string{"incident_id": id})
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if thread := r.URL.Query().Get("thread_id"); thread != "" {
		writeJSON(w, http.StatusOK, h.msgs.Thread(thread))
		return
	}
	writeJSON(w, http.StatusOK, h.msgs.List())
}

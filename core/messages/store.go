// Package messages holds the driver's outbound/inbound message mailbox.
// The store is an explicitly owned, injectable object shared by the alert
// pipeline and the UI API; there is no package-level singleton.
package messages

import (
	"sync"
	"time"

	"github.com/fleetlink/driverd/internal/eventbus"
)

// Message is one mailbox entry. Auto-generated dispatch notices and driver
// messages share this shape.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsDraft   bool      `json:"is_draft"`
	IsSent    bool      `json:"is_sent"`
}

// Store is the mailbox contract used by the fleet container and the API.
type Store interface {
	Add(Message)
	List() []Message
	Thread(threadID string) []Message
}

// MemoryStore is the in-process mailbox. Change notifications go out on the
// session event bus.
type MemoryStore struct {
	mu   sync.RWMutex
	msgs []Message
	bus  *eventbus.Bus
}

// NewMemoryStore creates a MemoryStore. The bus may be nil when no consumer
// needs change notifications (tests).
func NewMemoryStore(bus *eventbus.Bus) *MemoryStore {
	return &MemoryStore{bus: bus}
}

func (s *MemoryStore) Add(m Message) {
	s.mu.Lock()
	s.msgs = append(s.msgs, m)
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.Publish(eventbus.ChangeMessages)
	}
}

// List returns a copy of all messages in insertion order.
func (s *MemoryStore) List() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Thread returns the messages belonging to one thread, in insertion order.
func (s *MemoryStore) Thread(threadID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Message
	for _, m := range s.msgs {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	return out
}

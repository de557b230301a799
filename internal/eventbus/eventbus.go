// Package eventbus provides the fan-out notification channel between the
// fleet state container and its consumers (the local UI API). Consumers use
// a change notification as a hint to re-read the authoritative snapshot.
package eventbus

import "sync"

// Change identifies what part of the session state mutated.
type Change string

const (
	// ChangeFleet signals that the fleet snapshot (stops, alerts, vehicle)
	// changed.
	ChangeFleet Change = "fleet"
	// ChangeMessages signals that the message store changed.
	ChangeMessages Change = "messages"
)

// Bus is a publish/subscribe bus for state-change notifications. Delivery
// is non-blocking: a slow subscriber misses intermediate notifications but
// always observes the latest state on its next snapshot read.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Change
	closed bool
}

// New creates a new Bus.
func New() *Bus { return &Bus{} }

// Publish notifies all subscribers of the change.
func (b *Bus) Publish(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Change {
	ch := make(chan Change, 8)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}

// Package notifier broadcasts sync lifecycle events to subscribed
// listeners, primarily the API server's event stream.
package notifier

import "sync"

// EventType classifies a broadcast event.
type EventType string

const (
	EventSyncStarted   EventType = "sync_started"
	EventSyncCompleted EventType = "sync_completed"
	EventSyncFailed    EventType = "sync_failed"
)

// Event is one sync lifecycle notification.
type Event struct {
	Type      EventType `json:"type"`
	SyncRunID string    `json:"syncRunId"`
	Error     string    `json:"error,omitempty"`
}

// Notifier fans events out to all subscribed listeners. Listeners that fall
// behind miss events rather than blocking the broadcaster; the store stays
// the source of truth for anything missed.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates a new Notifier.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel receiving future events. The caller must
// Unsubscribe when done.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 4)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast delivers the event to every listener with buffer room.
func (n *Notifier) Broadcast(event Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- event:
		default:
			// Listener is full; it will re-query on its next event.
		}
	}
}

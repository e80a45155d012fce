package events

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	defaultHubCapacity = 100
	subscriberBuffer   = 128
)

// Event is one message on the hub. Data is a JSON payload.
type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Hub fans webhook outcomes and recorded issue events out to SSE clients
// and keeps the newest ones for clients that reconnect with Last-Event-ID.
//
// IDs are assigned under the same lock that appends to the buffer and feeds
// subscribers, so every reader sees them strictly increasing.
type Hub struct {
	mu     sync.Mutex
	lastID int64
	recent *ring[Event]
	subs   map[chan Event]struct{}
}

// NewHub keeps the newest capacity events (100 when capacity <= 0).
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultHubCapacity
	}
	return &Hub{
		recent: newRing[Event](capacity),
		subs:   make(map[chan Event]struct{}),
	}
}

// Publish stamps data as the next event. Data that cannot be encoded is sent
// as an empty object.
func (h *Hub) Publish(eventType string, data any) {
	payload := json.RawMessage("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	ev := Event{ID: h.lastID, Type: eventType, At: time.Now().UTC(), Data: payload}
	h.recent.push(ev)
	for ch := range h.subs {
		// A full subscriber misses the event rather than stalling the dispatcher.
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel of future events and a cancel func that closes
// it. cancel may be called more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// SnapshotSince returns buffered events with ID > lastID, oldest first.
// lastID 0 returns the whole buffer.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.recent.len()
	// The buffer is ordered by ID, so find the first newer event.
	first := sort.Search(n, func(i int) bool { return h.recent.at(i).ID > lastID })
	if first == n {
		return []Event{}
	}
	return h.recent.tail(n - first)
}

func (h *Hub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

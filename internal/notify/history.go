package notify

import "sync"

// History keeps a bounded list of recent events.
type History struct {
	mu       sync.RWMutex
	capacity int
	entries  []Event
}

// NewHistory constructs a history with the provided capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 100
	}
	return &History{capacity: capacity}
}

// Add records an event.
func (h *History) Add(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
}

// Recent returns the stored events in chronological order.
func (h *History) Recent() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snapshot := make([]Event, len(h.entries))
	copy(snapshot, h.entries)
	return snapshot
}

// Package notify carries viewing lifecycle events from the scheduling
// engine to notification delivery.
package notify

import "time"

// Type names a lifecycle event.
type Type string

const (
	EventRequested          Type = "viewing.requested"
	EventConfirmed          Type = "viewing.confirmed"
	EventSuggested          Type = "viewing.suggested"
	EventDeclined           Type = "viewing.declined"
	EventSuggestionAccepted Type = "viewing.suggestion_accepted"
	EventSuggestionDeclined Type = "viewing.suggestion_declined"
	EventNoAlternative      Type = "viewing.no_alternative"
)

// Event is one lifecycle occurrence. Time is the HH:MM the event is about
// (requested, confirmed or suggested time).
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	ViewingID  int64     `json:"viewing_id"`
	TenantID   int64     `json:"tenant_id"`
	AgentID    int64     `json:"agent_id"`
	PropertyID int64     `json:"property_id"`
	Time       string    `json:"time,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher accepts lifecycle events.
type Publisher interface {
	Publish(e Event) error
}

// Discard drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(Event) error { return nil }

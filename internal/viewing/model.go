// Package viewing provides the viewing domain model, its data access and
// the lifecycle manager that schedules viewings against agent calendars.
package viewing

import (
	"slices"
	"time"

	"github.com/evcraddock/viewing-scheduler/internal/feasibility"
)

// Status is the lifecycle state of a viewing.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuggested Status = "suggested"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
)

// ValidStatuses is the set of allowed statuses.
var ValidStatuses = []Status{StatusPending, StatusSuggested, StatusConfirmed, StatusDeclined}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusSuggested, StatusDeclined},
	StatusSuggested: {StatusConfirmed, StatusDeclined},
}

// IsValid checks if a status is recognized.
func (s Status) IsValid() bool {
	return slices.Contains(ValidStatuses, s)
}

// CanTransitionTo reports whether the lifecycle allows s -> next.
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Label returns a human-readable label for the status.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusSuggested:
		return "Suggested"
	case StatusConfirmed:
		return "Confirmed"
	case StatusDeclined:
		return "Declined"
	default:
		return string(s)
	}
}

// Viewing is a tenant's request to view a property. ConfirmedTime is set
// only when confirmed. SuggestedTime is set while suggested and kept when
// the suggestion is accepted. TravelTime is advisory, computed at request
// time from the agent's preceding confirmed viewing.
type Viewing struct {
	ID                int64              `json:"id"`
	TenantID          int64              `json:"tenant_id"`
	AgentID           int64              `json:"agent_id"`
	PropertyID        int64              `json:"property_id"`
	RequestedTime     string             `json:"requested_time"`
	Status            Status             `json:"status"`
	ConfirmedTime     string             `json:"confirmed_time,omitempty"`
	SuggestedTime     string             `json:"suggested_time,omitempty"`
	TravelTime        *int               `json:"travel_time,omitempty"`
	FeasibilityStatus feasibility.Status `json:"feasibility_status"`
	DurationMinutes   int                `json:"duration_minutes"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// EffectiveTime is the time the viewing currently occupies: the confirmed
// time, the suggested time while suggested, else the requested time.
func (v *Viewing) EffectiveTime() string {
	switch {
	case v.Status == StatusConfirmed && v.ConfirmedTime != "":
		return v.ConfirmedTime
	case v.Status == StatusSuggested && v.SuggestedTime != "":
		return v.SuggestedTime
	default:
		return v.RequestedTime
	}
}

// AvailableSlot is one bookable grid slot for a property.
type AvailableSlot struct {
	Time          string             `json:"time"`
	Status        feasibility.Status `json:"status"`
	TravelMinutes *int               `json:"travel_minutes,omitempty"`
}

// Assessment is a recomputed feasibility label for an existing viewing.
type Assessment struct {
	ViewingID     int64              `json:"viewing_id"`
	Time          string             `json:"time"`
	Status        feasibility.Status `json:"status"`
	Reason        string             `json:"reason,omitempty"`
	TravelMinutes *int               `json:"travel_minutes,omitempty"`
}

package feasibility

import (
	"fmt"

	"github.com/evcraddock/viewing-scheduler/internal/geotime"
)

// Policy is the per-agency agent scheduling policy.
type Policy struct {
	DurationMinutes int `json:"viewing_duration_minutes"`
	BufferMinutes   int `json:"travel_buffer_minutes"`
}

// DefaultPolicy is a 20 minute viewing with a 10 minute travel buffer.
var DefaultPolicy = Policy{DurationMinutes: 20, BufferMinutes: 10}

// Kind classifies why a verdict is infeasible.
type Kind string

const (
	KindPropertyNotFound Kind = "property_not_found"
	KindOverlap          Kind = "overlap"
	KindTravelBefore     Kind = "travel_before"
	KindTravelAfter      Kind = "travel_after"
	KindTenantOverlap    Kind = "tenant_overlap"
	KindTenantTolerance  Kind = "tenant_tolerance"
)

// Verdict is the outcome of a feasibility check. NextAvailable is the
// earliest start the rejecting rule would accept, in minutes, or 0 when
// the rule cannot compute one.
type Verdict struct {
	Feasible      bool   `json:"feasible"`
	Reason        string `json:"reason,omitempty"`
	Kind          Kind   `json:"kind,omitempty"`
	NextAvailable int    `json:"-"`
}

// Suggested returns NextAvailable as HH:MM, or "" if none.
func (v Verdict) Suggested() string {
	if v.NextAvailable <= 0 || v.NextAvailable >= geotime.MinutesPerDay {
		return ""
	}
	return geotime.FormatTime(v.NextAvailable)
}

var accepted = Verdict{Feasible: true}

func reject(kind Kind, next int, format string, args ...any) Verdict {
	return Verdict{Kind: kind, NextAvailable: next, Reason: fmt.Sprintf(format, args...)}
}

// Sites resolves a property to its postcode. found is false for unknown
// properties; err reports a failed lookup.
type Sites interface {
	Postcode(propertyID int64) (postcode string, found bool, err error)
}

// SiteMap is an in-memory Sites.
type SiteMap map[int64]string

// Postcode implements Sites.
func (m SiteMap) Postcode(propertyID int64) (string, bool, error) {
	p, ok := m[propertyID]
	return p, ok, nil
}

// Checker evaluates candidate slots against an agent's confirmed calendar.
// It never mutates the calendar.
type Checker struct {
	policy Policy
	travel geotime.TravelTimer
	sites  Sites
}

// NewChecker creates a checker. travel is consulted once per neighbouring
// booking, so a randomized timer makes repeated checks non-idempotent.
func NewChecker(policy Policy, travel geotime.TravelTimer, sites Sites) *Checker {
	return &Checker{policy: policy, travel: travel, sites: sites}
}

// Policy returns the checker's agent policy.
func (c *Checker) Policy() Policy {
	return c.policy
}

// Travel returns the checker's travel timer.
func (c *Checker) Travel() geotime.TravelTimer {
	return c.travel
}

// WithSites returns a copy of c resolving properties through sites.
func (c *Checker) WithSites(sites Sites) *Checker {
	cp := *c
	cp.sites = sites
	return &cp
}

// CheckSlot resolves the property and checks start against the agent's
// calendar. An unknown property is an infeasible verdict, a failed
// lookup an error.
func (c *Checker) CheckSlot(agentID, propertyID int64, start int, cal Calendar) (Verdict, error) {
	postcode, found, err := c.sites.Postcode(propertyID)
	if err != nil {
		return Verdict{}, fmt.Errorf("resolving property %d: %w", propertyID, err)
	}
	if !found {
		return reject(KindPropertyNotFound, 0, "property not found"), nil
	}
	return c.CheckAt(agentID, postcode, start, cal), nil
}

// CheckAt checks a candidate viewing at postcode starting at start.
func (c *Checker) CheckAt(agentID int64, postcode string, start int, cal Calendar) Verdict {
	mine := cal.ForAgent(agentID)
	end := start + c.policy.DurationMinutes

	for _, b := range mine {
		if b.Overlaps(start, end) {
			return reject(KindOverlap, b.End()+c.policy.BufferMinutes, "agent has viewing at this time")
		}
	}

	if prev, found := mine.Before(start); found {
		earliest := prev.End() + c.policy.BufferMinutes + c.travel.TravelTime(prev.Postcode, postcode)
		if start < earliest {
			return reject(KindTravelBefore, earliest, "insufficient travel time from %s", prev.Postcode)
		}
	}

	if next, found := mine.After(start); found {
		travel := c.travel.TravelTime(postcode, next.Postcode)
		latestEnd := next.Start - c.policy.BufferMinutes - travel
		if end > latestEnd {
			return reject(KindTravelAfter, next.End()+c.policy.BufferMinutes+travel, "insufficient time before next viewing")
		}
	}

	return accepted
}

// TravelFromPrevious estimates travel from the agent's confirmed viewing
// immediately preceding start. found is false when there is none.
func (c *Checker) TravelFromPrevious(agentID int64, postcode string, start int, cal Calendar) (minutes int, found bool) {
	prev, found := cal.ForAgent(agentID).Before(start)
	if !found {
		return 0, false
	}
	return c.travel.TravelTime(prev.Postcode, postcode), true
}

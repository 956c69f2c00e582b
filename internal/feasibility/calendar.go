// Package feasibility decides whether a candidate viewing fits into an
// agent's confirmed calendar, and applies the tenant-side conflict rule.
package feasibility

import "sort"

// Booking is one confirmed viewing as seen by the checker. Start and
// Duration are in minutes; Postcode is the property's postcode.
type Booking struct {
	ViewingID  int64  `json:"viewing_id"`
	AgentID    int64  `json:"agent_id"`
	TenantID   int64  `json:"tenant_id"`
	PropertyID int64  `json:"property_id"`
	Postcode   string `json:"postcode"`
	Start      int    `json:"start"`
	Duration   int    `json:"duration"`
}

// End returns the exclusive end of the booking.
func (b Booking) End() int {
	return b.Start + b.Duration
}

// Overlaps reports whether [b.Start, b.End) intersects [start, end).
func (b Booking) Overlaps(start, end int) bool {
	return b.Start < end && start < b.End()
}

// Calendar is a snapshot of confirmed bookings.
type Calendar []Booking

// ForAgent returns the agent's bookings ordered by start.
func (c Calendar) ForAgent(agentID int64) Calendar {
	return c.filter(func(b Booking) bool { return b.AgentID == agentID })
}

// ForTenant returns the tenant's bookings ordered by start.
func (c Calendar) ForTenant(tenantID int64) Calendar {
	return c.filter(func(b Booking) bool { return b.TenantID == tenantID })
}

func (c Calendar) filter(keep func(Booking) bool) Calendar {
	var out Calendar
	for _, b := range c {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Before returns the booking with the greatest start strictly before
// minute. The calendar must be sorted.
func (c Calendar) Before(minute int) (Booking, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Start < minute {
			return c[i], true
		}
	}
	return Booking{}, false
}

// After returns the booking with the smallest start strictly after
// minute. The calendar must be sorted.
func (c Calendar) After(minute int) (Booking, bool) {
	for _, b := range c {
		if b.Start > minute {
			return b, true
		}
	}
	return Booking{}, false
}

// Last returns the latest booking. The calendar must be sorted.
func (c Calendar) Last() (Booking, bool) {
	if len(c) == 0 {
		return Booking{}, false
	}
	return c[len(c)-1], true
}

// Without returns a copy of c excluding the booking for viewingID.
func (c Calendar) Without(viewingID int64) Calendar {
	out := make(Calendar, 0, len(c))
	for _, b := range c {
		if b.ViewingID != viewingID {
			out = append(out, b)
		}
	}
	return out
}

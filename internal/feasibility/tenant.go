package feasibility

import "github.com/evcraddock/viewing-scheduler/internal/geotime"

// TenantPolicy configures the tenant-side conflict rule. It is separate
// from the agent Policy: the tolerance is a soft preference that rejects
// with a suggested time rather than a calendar constraint.
type TenantPolicy struct {
	Enabled          bool `json:"enabled"`
	ToleranceMinutes int  `json:"travel_tolerance_minutes"`
}

// DefaultTenantPolicy enables the rule with a 15 minute tolerance.
var DefaultTenantPolicy = TenantPolicy{Enabled: true, ToleranceMinutes: 15}

// TenantRule rejects requests that clash with the tenant's own confirmed
// viewings or exceed the tenant's travel tolerance.
type TenantRule struct {
	policy TenantPolicy
	agent  Policy
	travel geotime.TravelTimer
}

// NewTenantRule creates a tenant rule. agent supplies viewing duration and
// the buffer used for suggested times.
func NewTenantRule(policy TenantPolicy, agent Policy, travel geotime.TravelTimer) *TenantRule {
	return &TenantRule{policy: policy, agent: agent, travel: travel}
}

// Enabled reports whether the rule applies.
func (r *TenantRule) Enabled() bool {
	return r.policy.Enabled
}

// Tolerance returns override when set, else the policy default.
func (r *TenantRule) Tolerance(override *int) int {
	if override != nil {
		return *override
	}
	return r.policy.ToleranceMinutes
}

// Check evaluates a candidate for tenantID with the given tolerance.
func (r *TenantRule) Check(tenantID int64, tolerance int, postcode string, start int, cal Calendar) Verdict {
	if !r.policy.Enabled {
		return accepted
	}

	mine := cal.ForTenant(tenantID)
	end := start + r.agent.DurationMinutes

	for _, b := range mine {
		if b.Overlaps(start, end) {
			next := b.End() + r.agent.BufferMinutes
			return reject(KindTenantOverlap, next,
				"tenant already has a %s viewing in %s; next available is %s",
				geotime.FormatTime(b.Start), b.Postcode, geotime.FormatTime(next))
		}
	}

	last, found := mine.Last()
	if !found {
		return accepted
	}
	if travel := r.travel.TravelTime(last.Postcode, postcode); travel > tolerance {
		next := last.End() + r.agent.BufferMinutes
		return reject(KindTenantTolerance, next,
			"travel time from %s (%d min) exceeds tolerance (%d min)", last.Postcode, travel, tolerance)
	}

	return accepted
}

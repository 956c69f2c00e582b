// Package reschedule searches the working day for an alternative viewing
// slot when a requested time is infeasible.
package reschedule

import (
	"math"
	"sync/atomic"

	"github.com/evcraddock/viewing-scheduler/internal/feasibility"
	"github.com/evcraddock/viewing-scheduler/internal/geotime"
)

// Search pass that produced a slot.
const (
	ReasonSameCluster  = "same-cluster"
	ReasonCrossCluster = "cross-cluster"
)

// DefaultWindow is the same-cluster search window in grid slots.
const DefaultWindow = 6

// Slot is an alternative-slot result.
type Slot struct {
	Time     string          `json:"time"`
	Adjusted bool            `json:"adjusted"`
	Cluster  geotime.Cluster `json:"cluster"`
	Reason   string          `json:"reason,omitempty"`
}

// Query describes one search.
type Query struct {
	AgentID         int64
	Postcode        string
	Requested       int
	SameClusterOnly bool

	// After starts the grid scan strictly after Requested and never
	// returns Requested itself.
	After bool
}

// Finder runs alternative-slot searches. It counts successful
// cross-cluster results for reporting.
type Finder struct {
	checker *feasibility.Checker
	grid    geotime.Grid
	window  int
	coords  geotime.CoordTable

	switches atomic.Int64
}

// NewFinder creates a finder scanning grid with a same-cluster window of
// window slots. coords locates cluster members for the cross-cluster pass.
func NewFinder(checker *feasibility.Checker, grid geotime.Grid, window int, coords geotime.CoordTable) *Finder {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Finder{checker: checker, grid: grid, window: window, coords: coords}
}

// Grid returns the slot grid.
func (f *Finder) Grid() geotime.Grid {
	return f.grid
}

// CrossClusterSwitches returns how many cross-cluster slots were returned.
func (f *Finder) CrossClusterSwitches() int64 {
	return f.switches.Load()
}

// Find returns the first acceptable slot for q. postcodes lists every
// property postcode known to the agency and defines cluster membership.
// ok is false when the working day holds no feasible slot.
func (f *Finder) Find(q Query, cal feasibility.Calendar, postcodes []string) (Slot, bool) {
	target := geotime.ClusterOf(q.Postcode)
	feasible := func(minute int) bool {
		return f.checker.CheckAt(q.AgentID, q.Postcode, minute, cal).Feasible
	}

	from := q.Requested
	if q.After {
		from++
	} else if feasible(q.Requested) {
		return Slot{Time: geotime.FormatTime(q.Requested), Cluster: target}, true
	}

	slots := f.grid.Minutes()
	start := f.grid.IndexFrom(from)
	if start < 0 {
		return Slot{}, false
	}

	end := min(start+f.window, len(slots))
	for _, m := range slots[start:end] {
		if feasible(m) {
			return Slot{Time: geotime.FormatTime(m), Adjusted: true, Cluster: target, Reason: ReasonSameCluster}, true
		}
	}

	if q.SameClusterOnly {
		return Slot{}, false
	}

	fromPostcode := q.Postcode
	if last, found := cal.ForAgent(q.AgentID).Last(); found {
		fromPostcode = last.Postcode
	}
	closest, found := ClosestCluster(f.coords, fromPostcode, target, postcodes)
	if !found {
		return Slot{}, false
	}

	for _, m := range slots[start:] {
		if feasible(m) {
			f.switches.Add(1)
			return Slot{Time: geotime.FormatTime(m), Adjusted: true, Cluster: closest, Reason: ReasonCrossCluster}, true
		}
	}

	return Slot{}, false
}

// ClosestCluster picks the cluster, other than exclude, whose member
// centroid is nearest to from. Members without coordinates are skipped and
// clusters with no located members are not candidates. Ties go to the
// earlier cluster in geotime.Clusters.
func ClosestCluster(coords geotime.CoordTable, from string, exclude geotime.Cluster, postcodes []string) (geotime.Cluster, bool) {
	origin, ok := coords.Lookup(from)
	if !ok {
		return "", false
	}

	members := make(map[geotime.Cluster][]geotime.Coord)
	for _, p := range postcodes {
		if c, ok := coords.Lookup(p); ok {
			cl := geotime.ClusterOf(p)
			members[cl] = append(members[cl], c)
		}
	}

	var best geotime.Cluster
	bestDist := math.Inf(1)
	for _, cl := range geotime.Clusters {
		if cl == exclude {
			continue
		}
		centre, ok := geotime.Centroid(members[cl])
		if !ok {
			continue
		}
		if d := geotime.Haversine(origin, centre); d < bestDist {
			best, bestDist = cl, d
		}
	}

	return best, best != ""
}

// Package metrics summarises viewings into reporting counts and travel
// totals.
package metrics

import (
	"math"
	"sort"

	"github.com/evcraddock/viewing-scheduler/internal/geotime"
	"github.com/evcraddock/viewing-scheduler/internal/property"
	"github.com/evcraddock/viewing-scheduler/internal/viewing"
)

// AgentReport summarises one agent's confirmed day.
type AgentReport struct {
	AgentID              int64 `json:"agent_id"`
	Confirmed            int   `json:"confirmed"`
	TotalTravelMinutes   int   `json:"total_travel_minutes"`
	AverageTravelMinutes int   `json:"average_travel_minutes"`
}

// Report is the agency-wide summary. Pending counts both pending and
// suggested viewings.
type Report struct {
	Total                int           `json:"total"`
	Confirmed            int           `json:"confirmed"`
	Pending              int           `json:"pending"`
	Declined             int           `json:"declined"`
	TotalTravelMinutes   int           `json:"total_travel_minutes"`
	AverageTravelMinutes int           `json:"average_travel_minutes"`
	CrossClusterSwitches int64         `json:"cross_cluster_switches"`
	PerAgent             []AgentReport `json:"per_agent"`
}

// Build computes a report. Travel is the base estimate between each pair
// of consecutive confirmed viewings of the same agent; postcodes maps
// property IDs to postcodes.
func Build(viewings []*viewing.Viewing, postcodes map[int64]string, travel geotime.TravelTimer, switches int64) *Report {
	r := &Report{Total: len(viewings), CrossClusterSwitches: switches, PerAgent: []AgentReport{}}

	byAgent := make(map[int64][]*viewing.Viewing)
	for _, v := range viewings {
		switch v.Status {
		case viewing.StatusConfirmed:
			r.Confirmed++
			byAgent[v.AgentID] = append(byAgent[v.AgentID], v)
		case viewing.StatusPending, viewing.StatusSuggested:
			r.Pending++
		case viewing.StatusDeclined:
			r.Declined++
		}
	}

	legs := 0
	for agentID, day := range byAgent {
		sort.SliceStable(day, func(i, j int) bool { return startOf(day[i]) < startOf(day[j]) })

		a := AgentReport{AgentID: agentID, Confirmed: len(day)}
		for i := 1; i < len(day); i++ {
			a.TotalTravelMinutes += travel.TravelTime(postcodes[day[i-1].PropertyID], postcodes[day[i].PropertyID])
		}
		a.AverageTravelMinutes = average(a.TotalTravelMinutes, len(day)-1)

		r.TotalTravelMinutes += a.TotalTravelMinutes
		legs += max(0, len(day)-1)
		r.PerAgent = append(r.PerAgent, a)
	}
	r.AverageTravelMinutes = average(r.TotalTravelMinutes, legs)
	sort.Slice(r.PerAgent, func(i, j int) bool { return r.PerAgent[i].AgentID < r.PerAgent[j].AgentID })

	return r
}

func startOf(v *viewing.Viewing) int {
	m, err := geotime.ParseTime(v.ConfirmedTime)
	if err != nil {
		return geotime.MinutesPerDay
	}
	return m
}

func average(total, n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(n)))
}

// Viewings lists viewings.
type Viewings interface {
	List(opts viewing.ListOptions) ([]*viewing.Viewing, error)
}

// Properties lists properties.
type Properties interface {
	List(opts property.ListOptions) ([]*property.Property, error)
}

// SwitchCounter reports cross-cluster reschedules.
type SwitchCounter interface {
	CrossClusterSwitches() int64
}

// Service builds reports from live data.
type Service struct {
	viewings   Viewings
	properties Properties
	travel     geotime.TravelTimer
	switches   SwitchCounter
}

// NewService creates a metrics service. travel should be deterministic.
func NewService(viewings Viewings, properties Properties, travel geotime.TravelTimer, switches SwitchCounter) *Service {
	return &Service{viewings: viewings, properties: properties, travel: travel, switches: switches}
}

// Report builds a report over every viewing.
func (s *Service) Report() (*Report, error) {
	vs, err := s.viewings.List(viewing.ListOptions{})
	if err != nil {
		return nil, err
	}
	props, err := s.properties.List(property.ListOptions{})
	if err != nil {
		return nil, err
	}

	postcodes := make(map[int64]string, len(props))
	for _, p := range props {
		postcodes[p.ID] = p.Postcode
	}
	return Build(vs, postcodes, s.travel, s.switches.CrossClusterSwitches()), nil
}

// Package property provides the property domain model and data access.
package property

import (
	"time"

	"github.com/evcraddock/viewing-scheduler/internal/feasibility"
	"github.com/evcraddock/viewing-scheduler/internal/geotime"
)

// Property is a bookable listing. Its postcode keys into the coordinate
// table and AgentID names the agent who runs its viewings.
type Property struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Postcode  string    `json:"postcode"`
	AgentID   int64     `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Cluster returns the geographic cluster of the property's postcode.
func (p *Property) Cluster() geotime.Cluster {
	return geotime.ClusterOf(p.Postcode)
}

// scanProperty scans a property from a database row.
func scanProperty(row interface{ Scan(...interface{}) error }) (*Property, error) {
	var p Property
	if err := row.Scan(&p.ID, &p.Name, &p.Postcode, &p.AgentID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// SitesOf indexes property postcodes by ID for the feasibility checker.
func SitesOf(props []*Property) feasibility.SiteMap {
	s := make(feasibility.SiteMap, len(props))
	for _, p := range props {
		s[p.ID] = p.Postcode
	}
	return s
}

// Postcodes returns the postcode of every property in props.
func Postcodes(props []*Property) []string {
	out := make([]string, 0, len(props))
	for _, p := range props {
		out = append(out, p.Postcode)
	}
	return out
}

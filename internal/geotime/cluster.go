package geotime

import "strings"

// Cluster is a named geographic grouping of postcodes. Clusters only bias
// alternative-slot search order; they never constrain feasibility.
type Cluster string

const (
	West    Cluster = "West London"
	East    Cluster = "East London"
	North   Cluster = "North London"
	South   Cluster = "South London"
	Central Cluster = "Central London"
)

// Clusters is the fixed scan order used to break ties.
var Clusters = []Cluster{West, East, North, South, Central}

// Prefix returns the outward code of a UK postcode ("W2 4DX" -> "W2").
func Prefix(postcode string) string {
	p := NormalizePostcode(postcode)
	if out, _, ok := strings.Cut(p, " "); ok {
		return out
	}
	return p
}

// ClusterOf maps a postcode to its cluster by compass prefix.
func ClusterOf(postcode string) Cluster {
	p := Prefix(postcode)
	switch {
	case strings.HasPrefix(p, "W"), strings.HasPrefix(p, "SW"):
		return West
	case strings.HasPrefix(p, "E"):
		return East
	case strings.HasPrefix(p, "N"):
		return North
	case strings.HasPrefix(p, "S"):
		return South
	default:
		return Central
	}
}

// Centroid returns the arithmetic mean of coords. ok is false when coords
// is empty.
func Centroid(coords []Coord) (c Coord, ok bool) {
	if len(coords) == 0 {
		return Coord{}, false
	}
	for _, p := range coords {
		c.Lat += p.Lat
		c.Lon += p.Lon
	}
	c.Lat /= float64(len(coords))
	c.Lon /= float64(len(coords))
	return c, true
}

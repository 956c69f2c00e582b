package geotime

import (
	"math"
	"math/rand/v2"
	"strings"
	"sync"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Coord is a latitude/longitude pair in degrees.
type Coord struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// CoordTable maps a normalised postcode to its coordinates.
type CoordTable map[string]Coord

// NormalizePostcode trims and upper-cases a postcode for table lookups.
func NormalizePostcode(postcode string) string {
	return strings.ToUpper(strings.TrimSpace(postcode))
}

// Lookup returns the coordinates of a postcode.
func (t CoordTable) Lookup(postcode string) (Coord, bool) {
	c, ok := t[NormalizePostcode(postcode)]
	return c, ok
}

// londonCoords is the built-in coordinate table for the demo agency.
var londonCoords = CoordTable{
	"W2 4DX":   {51.515, -0.183}, // Paddington
	"W11 2BQ":  {51.515, -0.196}, // Notting Hill
	"W1D 4HT":  {51.515, -0.131}, // Soho
	"N1 9GU":   {51.536, -0.106}, // Islington
	"W1K 6TF":  {51.509, -0.150}, // Mayfair
	"NW1 7AB":  {51.539, -0.142}, // Camden
	"E1 6AN":   {51.524, -0.081}, // Shoreditch
	"SW4 0LG":  {51.465, -0.138}, // Clapham
	"SE10 9RT": {51.483, 0.008},  // Greenwich
	"E14 5AB":  {51.505, -0.020}, // Canary Wharf
	"W2 2PF":   {51.515, -0.183}, // Paddington
	"EC2A 3AR": {51.524, -0.081}, // Shoreditch
}

// DefaultCoords returns a copy of the built-in London coordinate table.
func DefaultCoords() CoordTable {
	out := make(CoordTable, len(londonCoords))
	for k, v := range londonCoords {
		out[k] = v
	}
	return out
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Coord) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// TravelTimer estimates agent travel in whole minutes between two postcodes.
type TravelTimer interface {
	TravelTime(from, to string) int
}

// TravelFunc adapts a plain function to TravelTimer.
type TravelFunc func(from, to string) int

// TravelTime calls f(from, to).
func (f TravelFunc) TravelTime(from, to string) int {
	return f(from, to)
}

// TravelModel holds the constants of the geometric travel estimate.
type TravelModel struct {
	SpeedKmh        float64
	OverheadMinutes int
	FallbackMinutes int
	RoundToMinutes  int
}

// DefaultTravelModel is 30 km/h plus 5 minutes, rounded up to 5, with a
// 30 minute fallback for unknown postcodes.
var DefaultTravelModel = TravelModel{
	SpeedKmh:        30,
	OverheadMinutes: 5,
	FallbackMinutes: 30,
	RoundToMinutes:  5,
}

// Estimator computes deterministic base travel times from a coordinate table.
type Estimator struct {
	coords CoordTable
	model  TravelModel
}

// NewEstimator creates an estimator over coords.
func NewEstimator(coords CoordTable, model TravelModel) *Estimator {
	if model.SpeedKmh <= 0 {
		model.SpeedKmh = DefaultTravelModel.SpeedKmh
	}
	if model.RoundToMinutes <= 0 {
		model.RoundToMinutes = DefaultTravelModel.RoundToMinutes
	}
	return &Estimator{coords: coords, model: model}
}

// Coords returns the coordinate table the estimator reads from.
func (e *Estimator) Coords() CoordTable {
	return e.coords
}

// TravelTime returns 0 for identical postcodes, the fallback for unknown
// ones, otherwise the haversine distance at the model speed plus overhead,
// rounded up to the model's rounding step.
func (e *Estimator) TravelTime(from, to string) int {
	from, to = NormalizePostcode(from), NormalizePostcode(to)
	if from == to {
		return 0
	}

	a, okA := e.coords[from]
	b, okB := e.coords[to]
	if !okA || !okB {
		return e.model.FallbackMinutes
	}

	minutes := Haversine(a, b)/e.model.SpeedKmh*60 + float64(e.model.OverheadMinutes)
	step := float64(e.model.RoundToMinutes)
	return int(math.Ceil(minutes/step) * step)
}

// Jittered perturbs a base estimate by a uniform amount in
// [-Spread, +Spread] minutes and floors the result at Floor.
type Jittered struct {
	base   TravelTimer
	spread int
	floor  int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewJittered wraps base with random noise drawn from src. A nil src is
// seeded from the runtime's random source.
func NewJittered(base TravelTimer, spread, floor int, src rand.Source) *Jittered {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	if spread < 0 {
		spread = 0
	}
	return &Jittered{base: base, spread: spread, floor: floor, rng: rand.New(src)}
}

// NewSeededJittered is NewJittered with a deterministic PCG source.
func NewSeededJittered(base TravelTimer, spread, floor int, seed uint64) *Jittered {
	return NewJittered(base, spread, floor, rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// TravelTime returns the base estimate plus noise.
func (j *Jittered) TravelTime(from, to string) int {
	base := j.base.TravelTime(from, to)

	j.mu.Lock()
	delta := j.rng.IntN(2*j.spread+1) - j.spread
	j.mu.Unlock()

	return max(j.floor, base+delta)
}

// Fixed is a deterministic TravelTimer backed by a symmetric pair table.
// Pairs missing from the table return Default; identical postcodes return 0.
type Fixed struct {
	Minutes map[[2]string]int
	Default int
}

// TravelTime looks up (from, to) then (to, from).
func (f Fixed) TravelTime(from, to string) int {
	from, to = NormalizePostcode(from), NormalizePostcode(to)
	if from == to {
		return 0
	}
	if m, ok := f.Minutes[[2]string{from, to}]; ok {
		return m
	}
	if m, ok := f.Minutes[[2]string{to, from}]; ok {
		return m
	}
	return f.Default
}

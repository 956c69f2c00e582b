// Package geotime provides the clock arithmetic, slot grid, travel-time
// estimation and geographic clustering used by the scheduling engine.
package geotime

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the length of the modelled day.
const MinutesPerDay = 24 * 60

// ParseTime converts an HH:MM 24h clock string to minutes since midnight.
func ParseTime(hhmm string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 || !digits(h) || !digits(m) {
		return 0, fmt.Errorf("invalid time %q (use HH:MM)", hhmm)
	}

	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}

	return hours*60 + minutes, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MustParseTime is ParseTime for values already validated upstream.
// It panics on malformed input.
func MustParseTime(hhmm string) int {
	m, err := ParseTime(hhmm)
	if err != nil {
		panic(err)
	}
	return m
}

// FormatTime converts minutes since midnight to HH:MM.
func FormatTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Grid is the fixed set of bookable start times within the working day.
// Start is inclusive, End exclusive, all values in minutes since midnight.
type Grid struct {
	Start int
	End   int
	Step  int
}

// DefaultGrid is 09:00-18:00 in 30 minute steps.
var DefaultGrid = Grid{Start: 9 * 60, End: 18 * 60, Step: 30}

// NewGrid builds a grid from HH:MM working hours and a step in minutes.
func NewGrid(start, end string, step int) (Grid, error) {
	s, err := ParseTime(start)
	if err != nil {
		return Grid{}, fmt.Errorf("working hours start: %w", err)
	}
	e, err := ParseTime(end)
	if err != nil {
		return Grid{}, fmt.Errorf("working hours end: %w", err)
	}
	if e <= s {
		return Grid{}, fmt.Errorf("working hours end %s must be after start %s", end, start)
	}
	if step <= 0 {
		return Grid{}, fmt.Errorf("slot step must be positive, got %d", step)
	}
	return Grid{Start: s, End: e, Step: step}, nil
}

// Minutes returns every slot start in order.
func (g Grid) Minutes() []int {
	if g.Step <= 0 {
		return nil
	}
	var out []int
	for m := g.Start; m < g.End; m += g.Step {
		out = append(out, m)
	}
	return out
}

// Slots returns every slot start formatted as HH:MM.
func (g Grid) Slots() []string {
	mins := g.Minutes()
	out := make([]string, len(mins))
	for i, m := range mins {
		out[i] = FormatTime(m)
	}
	return out
}

// IndexFrom returns the index of the first slot >= minute, or -1.
func (g Grid) IndexFrom(minute int) int {
	for i, m := range g.Minutes() {
		if m >= minute {
			return i
		}
	}
	return -1
}

// TimeSlots generates the grid between whole hours with the given step.
func TimeSlots(startHour, endHour, step int) []string {
	return Grid{Start: startHour * 60, End: endHour * 60, Step: step}.Slots()
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/evcraddock/viewing-scheduler/internal/client"
	"github.com/evcraddock/viewing-scheduler/internal/metrics"
	"github.com/evcraddock/viewing-scheduler/internal/property"
	"github.com/evcraddock/viewing-scheduler/internal/reschedule"
	"github.com/evcraddock/viewing-scheduler/internal/viewing"
)

// printJSON marshals v as indented JSON and writes it to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes rows through a tabwriter with a header and separator.
type table struct {
	w *tabwriter.Writer
}

func newTable(headers ...string) (*table, error) {
	t := &table{w: tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)}
	if err := t.row(toAny(headers)...); err != nil {
		return nil, fmt.Errorf("writing table header: %w", err)
	}
	seps := make([]interface{}, len(headers))
	for i, h := range headers {
		seps[i] = strings.Repeat("-", len(h))
	}
	if err := t.row(seps...); err != nil {
		return nil, fmt.Errorf("writing table separator: %w", err)
	}
	return t, nil
}

func (t *table) row(cols ...interface{}) error {
	for i, c := range cols {
		sep := "\t"
		if i == len(cols)-1 {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(t.w, "%v%s", c, sep); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) flush() error {
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	return nil
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// printPropertyTable prints a list of properties as a formatted table.
func printPropertyTable(props []*property.Property) error {
	if len(props) == 0 {
		fmt.Println("No properties found.")
		return nil
	}

	t, err := newTable("ID", "NAME", "POSTCODE", "CLUSTER", "AGENT")
	if err != nil {
		return err
	}
	for _, p := range props {
		if err := t.row(p.ID, truncate(p.Name, 40), p.Postcode, p.Cluster(), p.AgentID); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	if err := t.flush(); err != nil {
		return err
	}

	fmt.Printf("\nTotal: %d properties\n", len(props))
	return nil
}

// printViewingSummary prints a single viewing in text format.
func printViewingSummary(v *viewing.Viewing) {
	fmt.Printf("Viewing #%d\n", v.ID)
	fmt.Printf("  Status:      %s\n", v.Status.Label())
	fmt.Printf("  Property:    #%d\n", v.PropertyID)
	fmt.Printf("  Tenant:      #%d\n", v.TenantID)
	fmt.Printf("  Agent:       #%d\n", v.AgentID)
	fmt.Printf("  Requested:   %s\n", v.RequestedTime)
	if v.SuggestedTime != "" {
		fmt.Printf("  Suggested:   %s\n", v.SuggestedTime)
	}
	if v.ConfirmedTime != "" {
		fmt.Printf("  Confirmed:   %s\n", v.ConfirmedTime)
	}
	fmt.Printf("  Duration:    %d min\n", v.DurationMinutes)
	fmt.Printf("  Travel:      %s\n", formatTravel(v.TravelTime))
	fmt.Printf("  Feasibility: %s\n", v.FeasibilityStatus)
}

// printViewingTable prints viewings as a formatted table.
func printViewingTable(viewings []*viewing.Viewing) error {
	if len(viewings) == 0 {
		fmt.Println("No viewings found.")
		return nil
	}

	t, err := newTable("ID", "TIME", "STATUS", "PROPERTY", "TENANT", "AGENT", "TRAVEL", "FEASIBILITY")
	if err != nil {
		return err
	}
	for _, v := range viewings {
		if err := t.row(v.ID, v.EffectiveTime(), v.Status, v.PropertyID, v.TenantID, v.AgentID,
			formatTravel(v.TravelTime), v.FeasibilityStatus); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	if err := t.flush(); err != nil {
		return err
	}

	fmt.Printf("\nTotal: %d viewings\n", len(viewings))
	return nil
}

// printSlots prints available slots with their travel labels.
func printSlots(slots []viewing.AvailableSlot) error {
	if len(slots) == 0 {
		fmt.Println("No availability today.")
		return nil
	}

	t, err := newTable("TIME", "STATUS", "TRAVEL")
	if err != nil {
		return err
	}
	for _, s := range slots {
		if err := t.row(s.Time, s.Status, formatTravel(s.TravelMinutes)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return t.flush()
}

// printSlot prints an alternative-slot result.
func printSlot(s *reschedule.Slot) {
	if !s.Adjusted {
		fmt.Printf("%s is available.\n", s.Time)
		return
	}
	fmt.Printf("Next available: %s (%s, %s)\n", s.Time, s.Cluster, s.Reason)
}

// printReport prints the metrics summary.
func printReport(r *metrics.Report) error {
	fmt.Printf("Viewings:        %d\n", r.Total)
	fmt.Printf("  Confirmed:     %d\n", r.Confirmed)
	fmt.Printf("  Pending:       %d\n", r.Pending)
	fmt.Printf("  Declined:      %d\n", r.Declined)
	fmt.Printf("Travel total:    %d min\n", r.TotalTravelMinutes)
	fmt.Printf("Travel average:  %d min\n", r.AverageTravelMinutes)
	fmt.Printf("Cluster changes: %d\n", r.CrossClusterSwitches)

	if len(r.PerAgent) == 0 {
		return nil
	}
	fmt.Println()
	t, err := newTable("AGENT", "CONFIRMED", "TRAVEL", "AVERAGE")
	if err != nil {
		return err
	}
	for _, a := range r.PerAgent {
		if err := t.row(a.AgentID, a.Confirmed, a.TotalTravelMinutes, a.AverageTravelMinutes); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return t.flush()
}

// explain adds the scheduling reason and suggested time to an infeasible
// API error; other errors pass through.
func explain(err error) error {
	var apiErr *client.Error
	if !errors.As(err, &apiErr) || apiErr.SuggestedTime == "" {
		return err
	}
	return fmt.Errorf("%s; try %s", apiErr.Reason, apiErr.SuggestedTime)
}

func formatTravel(minutes *int) string {
	if minutes == nil {
		return "-"
	}
	return fmt.Sprintf("%d min", *minutes)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

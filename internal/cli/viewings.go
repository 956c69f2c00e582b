package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/viewing-scheduler/internal/client"
)

func newRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <tenant-id> <property-id> <HH:MM>",
		Short: "Request a viewing",
		Long:  "Request a viewing for a tenant. Infeasible requests are rejected with the reason and the earliest time that would work.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID("tenant", args[0])
			if err != nil {
				return err
			}
			propertyID, err := parseID("property", args[1])
			if err != nil {
				return err
			}

			v, err := newAPIClient().RequestViewing(tenantID, propertyID, args[2])
			if err != nil {
				return explain(err)
			}
			if isJSON() {
				return printJSON(v)
			}
			fmt.Println("Viewing requested.")
			printViewingSummary(v)
			return nil
		},
	}
}

func newViewingsCmd() *cobra.Command {
	var filter client.ViewingFilter

	cmd := &cobra.Command{
		Use:   "viewings",
		Short: "List viewings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			viewings, err := newAPIClient().ListViewings(filter)
			if err != nil {
				return fmt.Errorf("listing viewings: %w", err)
			}
			if isJSON() {
				return printJSON(viewings)
			}
			return printViewingTable(viewings)
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "filter by status (pending|suggested|confirmed|declined)")
	cmd.Flags().Int64Var(&filter.AgentID, "agent", 0, "filter by agent ID")
	cmd.Flags().Int64Var(&filter.TenantID, "tenant", 0, "filter by tenant ID")

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <viewing-id>",
		Short: "Show a viewing with its current feasibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("viewing", args[0])
			if err != nil {
				return err
			}

			c := newAPIClient()
			v, err := c.GetViewing(id)
			if err != nil {
				return err
			}
			a, err := c.ViewingFeasibility(id)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]interface{}{"viewing": v, "assessment": a})
			}
			printViewingSummary(v)
			fmt.Printf("\nNow: %s at %s", a.Status, a.Time)
			if a.Reason != "" {
				fmt.Printf(" (%s)", a.Reason)
			}
			fmt.Println()
			return nil
		},
	}
}

func newCalendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendar <agent-id>",
		Short: "Show an agent's confirmed viewings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("agent", args[0])
			if err != nil {
				return err
			}

			cal, err := newAPIClient().Calendar(id)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cal)
			}
			return printViewingTable(cal)
		},
	}
}

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show scheduling metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newAPIClient().Metrics()
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(r)
			}
			return printReport(r)
		},
	}
}

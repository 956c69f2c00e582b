package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	var agentID int64

	cmd := &cobra.Command{
		Use:   "add <postcode> <name...>",
		Short: "Add a property",
		Long:  "Add a property for an agent. The server geocodes postcodes it has no coordinates for.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(agentID, args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().Int64Var(&agentID, "agent", 0, "agent ID (required)")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}

func runAdd(agentID int64, postcode, name string) error {
	if agentID <= 0 {
		return fmt.Errorf("invalid agent ID: %d", agentID)
	}

	p, err := newAPIClient().AddProperty(name, postcode, agentID)
	if err != nil {
		return fmt.Errorf("adding property: %w", err)
	}

	if isJSON() {
		return printJSON(p)
	}

	fmt.Printf("Property #%d added: %s (%s, %s)\n", p.ID, p.Name, p.Postcode, p.Cluster())
	return nil
}

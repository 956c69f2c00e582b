package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPropertiesCmd() *cobra.Command {
	var agentID int64

	cmd := &cobra.Command{
		Use:   "properties",
		Short: "List properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := newAPIClient().ListProperties(agentID)
			if err != nil {
				return fmt.Errorf("listing properties: %w", err)
			}
			if isJSON() {
				return printJSON(props)
			}
			return printPropertyTable(props)
		},
	}

	cmd.Flags().Int64Var(&agentID, "agent", 0, "only this agent's properties")

	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSlotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots <property-id>",
		Short: "List today's bookable slots for a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("property", args[0])
			if err != nil {
				return err
			}

			slots, err := newAPIClient().AvailableSlots(id)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(slots)
			}
			return printSlots(slots)
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <property-id> <HH:MM>",
		Short: "Check whether the property's agent can take a viewing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("property", args[0])
			if err != nil {
				return err
			}

			f, err := newAPIClient().CheckFeasibility(id, args[1])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(f)
			}

			if f.Feasible {
				fmt.Printf("%s is feasible.\n", args[1])
				return nil
			}
			fmt.Printf("%s is not feasible: %s\n", args[1], f.Reason)
			if f.SuggestedTime != "" {
				fmt.Printf("Earliest start: %s\n", f.SuggestedTime)
			}
			return nil
		},
	}
}

func newAlternativeCmd() *cobra.Command {
	var sameCluster bool

	cmd := &cobra.Command{
		Use:   "alternative <property-id> <HH:MM>",
		Short: "Find the requested slot or the next feasible one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("property", args[0])
			if err != nil {
				return err
			}

			slot, err := newAPIClient().FindAlternative(id, args[1], sameCluster)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(slot)
			}
			printSlot(slot)
			return nil
		},
	}

	cmd.Flags().BoolVar(&sameCluster, "same-cluster", false, "only search near the requested time")

	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/viewing-scheduler/internal/client"
	"github.com/evcraddock/viewing-scheduler/internal/viewing"
)

// newLifecycleCmds returns the commands that move a viewing between
// states: confirm, suggest, accept, decline and decline-suggestion.
func newLifecycleCmds() []*cobra.Command {
	transitions := []struct {
		use, short string
		call       func(*client.Client, int64) (*viewing.Viewing, error)
	}{
		{"confirm", "Confirm a pending viewing at its requested time", (*client.Client).Confirm},
		{"accept", "Accept a suggested time", (*client.Client).AcceptSuggestion},
		{"decline", "Decline a pending viewing", (*client.Client).Decline},
		{"decline-suggestion", "Decline a suggested time", (*client.Client).DeclineSuggestion},
	}

	cmds := []*cobra.Command{newSuggestCmd()}
	for _, tr := range transitions {
		call := tr.call
		cmds = append(cmds, &cobra.Command{
			Use:   tr.use + " <viewing-id>",
			Short: tr.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID("viewing", args[0])
				if err != nil {
					return err
				}

				v, err := call(newAPIClient(), id)
				if err != nil {
					return explain(err)
				}
				if isJSON() {
					return printJSON(v)
				}
				printViewingSummary(v)
				return nil
			},
		})
	}
	return cmds
}

func newSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <viewing-id>",
		Short: "Suggest the next feasible time for a pending viewing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("viewing", args[0])
			if err != nil {
				return err
			}

			s, err := newAPIClient().Suggest(id)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(s)
			}
			fmt.Printf("Suggested %s (%s, %s)\n", s.Slot.Time, s.Slot.Cluster, s.Slot.Reason)
			printViewingSummary(s.Viewing)
			return nil
		},
	}
}

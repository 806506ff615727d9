package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show aggregate dataset counts",
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			state, err := c.GetSystemState(context.Background())
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(state)
			}

			return printSystemState(state)
		},
	}
}

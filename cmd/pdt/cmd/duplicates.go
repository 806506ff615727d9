package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func duplicatesCmd() *cobra.Command {
	duplicatesRoot := &cobra.Command{
		Use:   "duplicates",
		Short: "Review duplicate-flagged listings",
		Long: "Listings flagged as probable duplicates of another listing stay out\n" +
			"of the active set until the flag is cleared.",
	}

	duplicatesRoot.AddCommand(
		duplicatesListCmd(),
		duplicatesClearCmd(),
	)

	return duplicatesRoot
}

func duplicatesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List duplicate-flagged listings",
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			resp, err := c.ListDuplicates(context.Background())
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(resp)
			}

			if len(resp.Listings) == 0 {
				fmt.Println("No flagged duplicates.")
				return nil
			}

			return printListingsTable(resp.Listings)
		},
	}
}

func duplicatesClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "clear <id>",
		Short:   "Clear a listing's duplicate flag",
		Example: `  pdt duplicates clear abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			if err := c.ClearDuplicate(context.Background(), args[0]); err != nil {
				return err
			}

			fmt.Println("Duplicate flag cleared.")
			return nil
		},
	}
}

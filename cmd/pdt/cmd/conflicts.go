package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func conflictsCmd() *cobra.Command {
	conflictsRoot := &cobra.Command{
		Use:   "conflicts",
		Short: "Review and resolve merge conflicts",
		Long: "Merge conflicts arise when two devices report different values for\n" +
			"the same listing field at nearly the same time. They wait in a queue\n" +
			"until a value is chosen manually.",
	}

	conflictsRoot.AddCommand(
		conflictsListCmd(),
		conflictsResolveCmd(),
	)

	return conflictsRoot
}

func conflictsListCmd() *cobra.Command {
	var (
		listingID string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List merge conflicts",
		Example: `  # Open conflicts only (the default)
  pdt conflicts list

  # Everything, resolved included
  pdt conflicts list --all

  # Conflicts for one listing
  pdt conflicts list --listing abc123`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			resp, err := c.ListConflicts(context.Background(), listingID, !all)
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(resp)
			}

			if len(resp.Conflicts) == 0 {
				fmt.Println("No conflicts.")
				return nil
			}

			return printConflictsTable(resp.Conflicts)
		},
	}
	cmd.Flags().StringVar(&listingID, "listing", "", "restrict to one listing")
	cmd.Flags().BoolVar(&all, "all", false, "include resolved conflicts")

	return cmd
}

func conflictsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "resolve <id> <value>",
		Short:   "Resolve a conflict with a chosen value",
		Example: `  pdt conflicts resolve c1f2 7500`,
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			if err := c.ResolveConflict(context.Background(), args[0], args[1]); err != nil {
				return err
			}

			fmt.Println("Conflict resolved.")
			return nil
		},
	}
}

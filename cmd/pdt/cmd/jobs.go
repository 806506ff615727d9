package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func jobsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "jobs <name>",
		Short:   "Show recent runs of a background job",
		Example: `  pdt jobs trend_refresh --limit 10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			runs, err := c.GetJobHistory(context.Background(), args[0], limit)
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(runs)
			}

			if len(runs) == 0 {
				fmt.Println("No recorded runs.")
				return nil
			}

			return printJobRunsTable(runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")

	return cmd
}

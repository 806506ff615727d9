package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func trendsCmd() *cobra.Command {
	trendsRoot := &cobra.Command{
		Use:   "trends",
		Short: "Inspect market-trend snapshots",
	}

	trendsRoot.AddCommand(
		trendsListCmd(),
		trendsRefreshCmd(),
	)

	return trendsRoot
}

func trendsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the latest trend snapshot per make",
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			trends, err := c.ListTrends(context.Background())
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(trends)
			}

			if len(trends) == 0 {
				fmt.Println("No trend snapshots yet.")
				return nil
			}

			return printTrendsTable(trends)
		},
	}
}

func trendsRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Recompute trend snapshots now",
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			n, err := c.RefreshTrends(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("Wrote %d trend snapshots.\n", n)
			return nil
		},
	}
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [id]",
		Short: "Run valuation analysis",
		Long: "Analyzes a single listing by ID, or every active listing when no\n" +
			"ID is given.",
		Example: `  # Analyze everything
  pdt analyze

  # Analyze one listing
  pdt analyze abc123`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()

			if len(args) == 0 {
				n, err := c.AnalyzeAll(context.Background())
				if err != nil {
					return err
				}
				fmt.Printf("Analyzed %d listings.\n", n)
				return nil
			}

			l, err := c.AnalyzeListing(context.Background(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(l)
			}

			return printListingDetail(l)
		},
	}

	return cmd
}

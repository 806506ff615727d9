package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	apiclient "github.com/calebmorten/pwc-deal-tracker/internal/api/client"
)

func listingsCmd() *cobra.Command {
	listingsRoot := &cobra.Command{
		Use:   "listings",
		Short: "Query listings",
		Long: "Query and inspect listings that have been ingested and valued\n" +
			"by the PWC Deal Tracker pipeline.",
	}

	listingsRoot.AddCommand(
		listingsListCmd(),
		listingsGetCmd(),
		listingsHistoryCmd(),
	)

	return listingsRoot
}

func listingsListCmd() *cobra.Command {
	var (
		makeFilter        string
		status            string
		recommendation    string
		minPrice          float64
		maxPrice          float64
		includeDuplicates bool
		limit             int
		offset            int
		orderBy           string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List listings with optional filters",
		Long: "List ingested listings with optional filters for make, status,\n" +
			"recommendation, price range, and sorting.",
		Example: `  # List all listings
  pdt listings list

  # Filter by make and verdict
  pdt listings list --make Yamaha --recommendation BUY

  # Sort by price with pagination
  pdt listings list --order-by price --limit 20 --offset 40

  # Include duplicate-flagged listings
  pdt listings list --include-duplicates`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			resp, err := c.ListListings(context.Background(), &apiclient.ListListingsParams{
				Make:              makeFilter,
				Status:            status,
				Recommendation:    recommendation,
				MinPrice:          minPrice,
				MaxPrice:          maxPrice,
				IncludeDuplicates: includeDuplicates,
				Limit:             limit,
				Offset:            offset,
				OrderBy:           orderBy,
			})
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(resp)
			}

			if len(resp.Listings) == 0 {
				fmt.Println("No listings found.")
				return nil
			}

			fmt.Printf("Showing %d of %d listings\n\n", len(resp.Listings), resp.Total)
			return printListingsTable(resp.Listings)
		},
	}
	cmd.Flags().StringVar(&makeFilter, "make", "", "manufacturer filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter (pending, complete, analyzed)")
	cmd.Flags().
		StringVar(&recommendation, "recommendation", "", "verdict filter (BUY, CONSIDER, RESEARCH, PASS)")
	cmd.Flags().Float64Var(&minPrice, "min-price", 0, "minimum normalized price")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "maximum normalized price")
	cmd.Flags().
		BoolVar(&includeDuplicates, "include-duplicates", false, "include duplicate-flagged listings")
	cmd.Flags().IntVar(&limit, "limit", 50, "number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "result offset")
	cmd.Flags().
		StringVar(&orderBy, "order-by", "", "sort order (price, added_at, updated_at)")

	return cmd
}

func listingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <id>",
		Short:   "Show listing details",
		Example: `  pdt listings get abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			l, err := c.GetListing(context.Background(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(l)
			}

			return printListingDetail(l)
		},
	}
}

func listingsHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "history <id>",
		Short:   "Show a listing's asking-price history",
		Example: `  pdt listings history abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			changes, err := c.GetPriceHistory(context.Background(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(changes)
			}

			if len(changes) == 0 {
				fmt.Println("No price changes recorded.")
				return nil
			}

			return printPriceHistoryTable(changes)
		},
	}
}

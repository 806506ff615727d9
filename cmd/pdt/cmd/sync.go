package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apiclient "github.com/calebmorten/pwc-deal-tracker/internal/api/client"
)

func importCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a sync payload from a file",
		Long: "Reads an exported sync payload (JSON) and submits it to the server.\n" +
			"Records are deduplicated against the existing dataset; the server\n" +
			"reports how many were added, merged, conflicted, or rejected.",
		Example: `  # Import a payload copied from another device
  pdt import export.json

  # Record the transport the payload arrived over
  pdt import export.json --transport blob`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading payload file: %w", err)
			}

			var payload apiclient.SyncPayload
			if err := json.Unmarshal(data, &payload); err != nil {
				return fmt.Errorf("parsing payload: %w", err)
			}

			c := newClient()
			report, err := c.Import(context.Background(), &payload, transport)
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(report)
			}

			return printImportReport(report)
		},
	}
	cmd.Flags().
		StringVar(&transport, "transport", "blob", "transport the payload arrived over (blob, cloud_code, qr, live, api)")

	return cmd
}

func exportCmd() *cobra.Command {
	var (
		outFile           string
		includeDuplicates bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the dataset as a sync payload",
		Long: "Retrieves the full listing set as a JSON payload suitable for\n" +
			"importing on another device.",
		Example: `  # Write the payload to a file
  pdt export --out export.json

  # Print to stdout
  pdt export`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			payload, err := c.Export(context.Background(), includeDuplicates)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding payload: %w", err)
			}

			if outFile == "" {
				fmt.Println(string(data))
				return nil
			}

			if err := os.WriteFile(outFile, data, 0o600); err != nil {
				return fmt.Errorf("writing payload file: %w", err)
			}

			fmt.Printf("Exported %d listings to %s\n", payload.ListingCount, outFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "", "output file (stdout when empty)")
	cmd.Flags().
		BoolVar(&includeDuplicates, "include-duplicates", false, "include duplicate-flagged listings")

	return cmd
}

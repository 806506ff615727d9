package client

import (
	"context"
	"net/url"
	"time"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// SyncPayload is the export envelope exchanged between devices.
type SyncPayload struct {
	Timestamp    time.Time          `json:"timestamp"`
	ListingCount int                `json:"listing_count"`
	Data         []domain.RawRecord `json:"data"`
}

// Import submits a batch of raw records and returns the import report.
// Transport names the channel the payload arrived over; it defaults to "api"
// when empty.
func (c *Client) Import(
	ctx context.Context,
	payload *SyncPayload,
	transport string,
) (*domain.ImportReport, error) {
	path := "/api/v1/import"
	if transport != "" {
		path += "?transport=" + url.QueryEscape(transport)
	}

	var report domain.ImportReport
	if err := c.post(ctx, path, payload, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Export retrieves the full listing set as a sync payload.
func (c *Client) Export(ctx context.Context, includeDuplicates bool) (*SyncPayload, error) {
	path := "/api/v1/export"
	if includeDuplicates {
		path += "?include_duplicates=true"
	}

	var payload SyncPayload
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

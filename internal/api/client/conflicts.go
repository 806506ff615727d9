package client

import (
	"context"
	"fmt"
	"net/url"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// ConflictsResponse wraps the conflict queue.
type ConflictsResponse struct {
	Conflicts []domain.ConflictRecord `json:"conflicts"`
	Total     int                     `json:"total"`
}

// ListConflicts returns conflict records, optionally restricted to one
// listing or to the open queue.
func (c *Client) ListConflicts(
	ctx context.Context,
	listingID string,
	openOnly bool,
) (*ConflictsResponse, error) {
	q := url.Values{}
	if listingID != "" {
		q.Set("listing_id", listingID)
	}
	if openOnly {
		q.Set("open", "true")
	}

	path := "/api/v1/conflicts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ConflictsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveConflict records the manually chosen value for a conflict.
func (c *Client) ResolveConflict(ctx context.Context, id, resolvedValue string) error {
	body := map[string]string{"resolved_value": resolvedValue}
	return c.post(ctx, fmt.Sprintf("/api/v1/conflicts/%s/resolve", id), body, nil)
}

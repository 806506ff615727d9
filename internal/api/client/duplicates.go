package client

import (
	"context"
	"fmt"
)

// ListDuplicates returns listings flagged as duplicates of another listing.
func (c *Client) ListDuplicates(ctx context.Context) (*ListingsResponse, error) {
	var resp ListingsResponse
	if err := c.get(ctx, "/api/v1/duplicates", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearDuplicate removes the duplicate flag from a listing, returning it to
// the active set.
func (c *Client) ClearDuplicate(ctx context.Context, id string) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/duplicates/%s/clear", id), nil, nil)
}

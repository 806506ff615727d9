package client

import (
	"context"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// GetSystemState returns aggregate dataset counts.
func (c *Client) GetSystemState(ctx context.Context) (*domain.SystemState, error) {
	var state domain.SystemState
	if err := c.get(ctx, "/api/v1/system/state", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

package client

import (
	"context"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// ListTrends returns the latest market-trend snapshot per make.
func (c *Client) ListTrends(ctx context.Context) ([]domain.MarketTrend, error) {
	var resp struct {
		Trends []domain.MarketTrend `json:"trends"`
	}
	if err := c.get(ctx, "/api/v1/trends", &resp); err != nil {
		return nil, err
	}
	return resp.Trends, nil
}

// RefreshTrends recomputes trend snapshots and returns the number written.
func (c *Client) RefreshTrends(ctx context.Context) (int, error) {
	var resp struct {
		Snapshots int `json:"snapshots"`
	}
	if err := c.post(ctx, "/api/v1/trends/refresh", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Snapshots, nil
}

package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// ListingsResponse wraps a paginated listings response.
type ListingsResponse struct {
	Listings []domain.Listing `json:"listings"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// PriceHistoryResponse wraps a listing's recorded price transitions.
type PriceHistoryResponse struct {
	Changes []domain.PriceChange `json:"changes"`
}

// ListListingsParams defines query parameters for listing queries.
type ListListingsParams struct {
	Make              string
	Status            string
	Recommendation    string
	MinPrice          float64
	MaxPrice          float64
	IncludeDuplicates bool
	Limit             int
	Offset            int
	OrderBy           string
}

// ListListings returns listings matching the given parameters.
func (c *Client) ListListings(
	ctx context.Context,
	params *ListListingsParams,
) (*ListingsResponse, error) {
	q := url.Values{}
	if params.Make != "" {
		q.Set("make", params.Make)
	}
	if params.Status != "" {
		q.Set("status", params.Status)
	}
	if params.Recommendation != "" {
		q.Set("recommendation", params.Recommendation)
	}
	if params.MinPrice > 0 {
		q.Set("min_price", strconv.FormatFloat(params.MinPrice, 'f', -1, 64))
	}
	if params.MaxPrice > 0 {
		q.Set("max_price", strconv.FormatFloat(params.MaxPrice, 'f', -1, 64))
	}
	if params.IncludeDuplicates {
		q.Set("include_duplicates", "true")
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}
	if params.OrderBy != "" {
		q.Set("order_by", params.OrderBy)
	}

	path := "/api/v1/listings"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListingsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetListing returns a single listing by ID.
func (c *Client) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	var l domain.Listing
	if err := c.get(ctx, fmt.Sprintf("/api/v1/listings/%s", id), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// GetPriceHistory returns recorded asking-price transitions for a listing.
func (c *Client) GetPriceHistory(
	ctx context.Context,
	id string,
) ([]domain.PriceChange, error) {
	var resp PriceHistoryResponse
	if err := c.get(ctx, fmt.Sprintf("/api/v1/listings/%s/price-history", id), &resp); err != nil {
		return nil, err
	}
	return resp.Changes, nil
}

// AnalyzeListing runs valuation for a single listing and returns the updated
// listing.
func (c *Client) AnalyzeListing(ctx context.Context, id string) (*domain.Listing, error) {
	var l domain.Listing
	if err := c.post(ctx, fmt.Sprintf("/api/v1/listings/%s/analyze", id), nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// AnalyzeAll triggers analysis for every active listing.
func (c *Client) AnalyzeAll(ctx context.Context) (int, error) {
	var resp struct {
		Analyzed int `json:"analyzed"`
	}
	if err := c.post(ctx, "/api/v1/analyze", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Analyzed, nil
}

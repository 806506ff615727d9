package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// ListingsHandler handles listing query endpoints.
type ListingsHandler struct {
	store store.Store
}

// NewListingsHandler creates a new ListingsHandler.
func NewListingsHandler(s store.Store) *ListingsHandler {
	return &ListingsHandler{store: s}
}

// --- Input/Output types ---

// ListListingsInput is the input for listing listings with optional filters.
type ListListingsInput struct {
	Make              string  `query:"make"               doc:"Filter by manufacturer"`
	Status            string  `query:"status"             doc:"Filter by processing status"    enum:"pending,complete,analyzed,"`
	Recommendation    string  `query:"recommendation"     doc:"Filter by analysis verdict"     enum:"BUY,CONSIDER,RESEARCH,PASS,"`
	MinPrice          float64 `query:"min_price"          doc:"Minimum normalized price"       minimum:"0"`
	MaxPrice          float64 `query:"max_price"          doc:"Maximum normalized price"       minimum:"0"`
	IncludeDuplicates bool    `query:"include_duplicates" doc:"Include duplicate-flagged listings"`
	Limit             int     `query:"limit"              doc:"Number of results (default 50)" minimum:"1" maximum:"500"`
	Offset            int     `query:"offset"             doc:"Pagination offset"              minimum:"0"`
	OrderBy           string  `query:"order_by"           doc:"Sort field"                     enum:"price,added_at,updated_at,"`
}

// ListListingsOutput is the response for listing listings.
type ListListingsOutput struct {
	Body struct {
		Listings []domain.Listing `json:"listings"`
		Total    int              `json:"total"`
		Limit    int              `json:"limit"`
		Offset   int              `json:"offset"`
	}
}

// GetListingInput is the input for getting a single listing.
type GetListingInput struct {
	ID string `path:"id" doc:"Listing UUID"`
}

// GetListingOutput is the response for getting a single listing.
type GetListingOutput struct {
	Body domain.Listing
}

// PriceHistoryOutput is the response for a listing's price history.
type PriceHistoryOutput struct {
	Body struct {
		Changes []domain.PriceChange `json:"changes"`
	}
}

// --- Handlers ---

// ListListings returns listings with optional filters for make, status,
// recommendation, price range, and pagination.
func (h *ListingsHandler) ListListings(
	ctx context.Context,
	input *ListListingsInput,
) (*ListListingsOutput, error) {
	q := &store.ListingQuery{
		IncludeDuplicates: input.IncludeDuplicates,
		Offset:            input.Offset,
		OrderBy:           input.OrderBy,
	}

	if input.Make != "" {
		q.Make = &input.Make
	}

	if input.Status != "" {
		q.Status = &input.Status
	}

	if input.Recommendation != "" {
		q.Recommendation = &input.Recommendation
	}

	if input.MinPrice != 0 {
		q.MinPrice = &input.MinPrice
	}

	if input.MaxPrice != 0 {
		q.MaxPrice = &input.MaxPrice
	}

	if input.Limit != 0 {
		q.Limit = input.Limit
	}

	listings, total, err := h.store.ListListings(ctx, q)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing query failed: " + err.Error())
	}

	resp := &ListListingsOutput{}
	resp.Body.Listings = listings
	resp.Body.Total = total
	resp.Body.Limit = q.Limit
	resp.Body.Offset = q.Offset

	return resp, nil
}

// GetListing returns a single listing by ID.
func (h *ListingsHandler) GetListing(
	ctx context.Context,
	input *GetListingInput,
) (*GetListingOutput, error) {
	listing, err := h.store.GetListing(ctx, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("listing not found")
	}

	return &GetListingOutput{Body: *listing}, nil
}

// GetPriceHistory returns recorded price transitions for a listing, newest
// first.
func (h *ListingsHandler) GetPriceHistory(
	ctx context.Context,
	input *GetListingInput,
) (*PriceHistoryOutput, error) {
	if _, err := h.store.GetListing(ctx, input.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("listing not found")
		}
		return nil, huma.Error500InternalServerError("loading listing failed: " + err.Error())
	}

	changes, err := h.store.ListPriceChanges(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("price history query failed: " + err.Error())
	}

	resp := &PriceHistoryOutput{}
	resp.Body.Changes = changes

	return resp, nil
}

// RegisterListingRoutes registers listing endpoints with the Huma API.
func RegisterListingRoutes(api huma.API, h *ListingsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-listings",
		Method:      http.MethodGet,
		Path:        "/api/v1/listings",
		Summary:     "List listings",
		Description: "Returns listings with optional filters for make, status, recommendation, price range, and pagination.",
		Tags:        []string{"listings"},
	}, h.ListListings)

	huma.Register(api, huma.Operation{
		OperationID: "get-listing",
		Method:      http.MethodGet,
		Path:        "/api/v1/listings/{id}",
		Summary:     "Get a listing by ID",
		Description: "Returns a single listing by its UUID.",
		Tags:        []string{"listings"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetListing)

	huma.Register(api, huma.Operation{
		OperationID: "get-listing-price-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/listings/{id}/price-history",
		Summary:     "Get a listing's price history",
		Description: "Returns recorded asking-price transitions for a listing, newest first.",
		Tags:        []string{"listings"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetPriceHistory)
}

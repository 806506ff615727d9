package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// DuplicatesHandler handles the probable-duplicate review queue.
type DuplicatesHandler struct {
	store store.Store
}

// NewDuplicatesHandler creates a new DuplicatesHandler.
func NewDuplicatesHandler(s store.Store) *DuplicatesHandler {
	return &DuplicatesHandler{store: s}
}

// ListDuplicatesOutput is the review queue of duplicate-flagged listings.
type ListDuplicatesOutput struct {
	Body struct {
		Listings []domain.Listing `json:"listings"`
		Total    int              `json:"total"`
	}
}

// ClearDuplicateInput names the listing whose flag to clear.
type ClearDuplicateInput struct {
	ID string `path:"id" doc:"Listing UUID"`
}

// ClearDuplicateOutput acknowledges the clear.
type ClearDuplicateOutput struct {
	Body StatusResponse
}

// ListDuplicates returns listings soft-flagged as probable duplicates.
func (h *DuplicatesHandler) ListDuplicates(
	ctx context.Context,
	_ *struct{},
) (*ListDuplicatesOutput, error) {
	listings, err := h.store.ListDuplicates(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("duplicate query failed: " + err.Error())
	}

	resp := &ListDuplicatesOutput{}
	resp.Body.Listings = listings
	resp.Body.Total = len(listings)

	return resp, nil
}

// ClearDuplicate removes a duplicate flag, returning the listing to the
// active set.
func (h *DuplicatesHandler) ClearDuplicate(
	ctx context.Context,
	input *ClearDuplicateInput,
) (*ClearDuplicateOutput, error) {
	if err := h.store.ClearDuplicateOf(ctx, input.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("listing not found")
		}
		return nil, huma.Error500InternalServerError("clearing flag failed: " + err.Error())
	}

	resp := &ClearDuplicateOutput{}
	resp.Body.Status = "cleared"

	return resp, nil
}

// RegisterDuplicateRoutes registers duplicate review endpoints with the Huma API.
func RegisterDuplicateRoutes(api huma.API, h *DuplicatesHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-duplicates",
		Method:      http.MethodGet,
		Path:        "/api/v1/duplicates",
		Summary:     "List probable duplicates",
		Description: "Returns listings flagged as probable duplicates for manual review.",
		Tags:        []string{"duplicates"},
	}, h.ListDuplicates)

	huma.Register(api, huma.Operation{
		OperationID: "clear-duplicate",
		Method:      http.MethodPost,
		Path:        "/api/v1/duplicates/{id}/clear",
		Summary:     "Clear a duplicate flag",
		Description: "Returns a flagged listing to the active set.",
		Tags:        []string{"duplicates"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.ClearDuplicate)
}

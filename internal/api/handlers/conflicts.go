package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// ConflictsHandler handles merge-conflict review endpoints.
type ConflictsHandler struct {
	store store.Store
}

// NewConflictsHandler creates a new ConflictsHandler.
func NewConflictsHandler(s store.Store) *ConflictsHandler {
	return &ConflictsHandler{store: s}
}

// ListConflictsInput filters the conflict queue.
type ListConflictsInput struct {
	ListingID string `query:"listing_id" doc:"Restrict to one listing"`
	OpenOnly  bool   `query:"open"       doc:"Only unresolved conflicts"`
}

// ListConflictsOutput is the conflict queue.
type ListConflictsOutput struct {
	Body struct {
		Conflicts []domain.ConflictRecord `json:"conflicts"`
		Total     int                     `json:"total"`
	}
}

// ResolveConflictInput settles one conflict with a chosen value.
type ResolveConflictInput struct {
	ID   string `path:"id" doc:"Conflict UUID"`
	Body struct {
		ResolvedValue string `json:"resolved_value" doc:"The value to keep" minLength:"1"`
	}
}

// ResolveConflictOutput acknowledges resolution.
type ResolveConflictOutput struct {
	Body StatusResponse
}

// ListConflicts returns conflict records, optionally restricted to one
// listing or to the open queue.
func (h *ConflictsHandler) ListConflicts(
	ctx context.Context,
	input *ListConflictsInput,
) (*ListConflictsOutput, error) {
	conflicts, err := h.store.ListConflicts(ctx, input.ListingID, input.OpenOnly)
	if err != nil {
		return nil, huma.Error500InternalServerError("conflict query failed: " + err.Error())
	}

	resp := &ListConflictsOutput{}
	resp.Body.Conflicts = conflicts
	resp.Body.Total = len(conflicts)

	return resp, nil
}

// ResolveConflict records the manually chosen value for a conflict.
func (h *ConflictsHandler) ResolveConflict(
	ctx context.Context,
	input *ResolveConflictInput,
) (*ResolveConflictOutput, error) {
	err := h.store.ResolveConflict(ctx, input.ID, input.Body.ResolvedValue)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("conflict not found")
		}
		return nil, huma.Error500InternalServerError("resolving conflict failed: " + err.Error())
	}

	resp := &ResolveConflictOutput{}
	resp.Body.Status = "resolved"

	return resp, nil
}

// RegisterConflictRoutes registers conflict endpoints with the Huma API.
func RegisterConflictRoutes(api huma.API, h *ConflictsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-conflicts",
		Method:      http.MethodGet,
		Path:        "/api/v1/conflicts",
		Summary:     "List merge conflicts",
		Description: "Returns conflict records awaiting (or after) manual resolution.",
		Tags:        []string{"conflicts"},
	}, h.ListConflicts)

	huma.Register(api, huma.Operation{
		OperationID: "resolve-conflict",
		Method:      http.MethodPost,
		Path:        "/api/v1/conflicts/{id}/resolve",
		Summary:     "Resolve a conflict",
		Description: "Records the manually chosen value for a conflicted field.",
		Tags:        []string{"conflicts"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.ResolveConflict)
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/calebmorten/pwc-deal-tracker/internal/engine"
	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// Analyzer runs valuation analysis over listings.
type Analyzer interface {
	AnalyzeListing(ctx context.Context, id string) (*domain.Listing, error)
	AnalyzeAll(ctx context.Context) (int, error)
}

// AnalyzeHandler handles manual analysis trigger requests.
type AnalyzeHandler struct {
	analyzer Analyzer
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(a Analyzer) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: a}
}

// AnalyzeListingInput selects the listing to analyze.
type AnalyzeListingInput struct {
	ID string `path:"id" doc:"Listing UUID"`
}

// AnalyzeListingOutput is the analyzed listing.
type AnalyzeListingOutput struct {
	Body domain.Listing
}

// AnalyzeAllOutput reports how many listings a sweep analyzed.
type AnalyzeAllOutput struct {
	Body struct {
		Analyzed int `json:"analyzed" doc:"Number of listings analyzed"`
	}
}

// AnalyzeListing analyzes one listing and returns it with the fresh verdict.
func (h *AnalyzeHandler) AnalyzeListing(
	ctx context.Context,
	input *AnalyzeListingInput,
) (*AnalyzeListingOutput, error) {
	l, err := h.analyzer.AnalyzeListing(ctx, input.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, huma.Error404NotFound("listing not found")
		case errors.Is(err, engine.ErrDuplicateListing):
			return nil, huma.Error409Conflict("listing is flagged as a duplicate")
		default:
			return nil, huma.Error500InternalServerError("analysis failed: " + err.Error())
		}
	}

	return &AnalyzeListingOutput{Body: *l}, nil
}

// AnalyzeAll re-analyzes every active listing.
func (h *AnalyzeHandler) AnalyzeAll(
	ctx context.Context,
	_ *struct{},
) (*AnalyzeAllOutput, error) {
	n, err := h.analyzer.AnalyzeAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("analysis sweep failed: " + err.Error())
	}

	resp := &AnalyzeAllOutput{}
	resp.Body.Analyzed = n

	return resp, nil
}

// RegisterAnalyzeRoutes registers analysis endpoints with the Huma API.
func RegisterAnalyzeRoutes(api huma.API, h *AnalyzeHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "analyze-listing",
		Method:      http.MethodPost,
		Path:        "/api/v1/listings/{id}/analyze",
		Summary:     "Analyze a listing",
		Description: "Values one listing against the reference catalog and writes the verdict.",
		Tags:        []string{"analysis"},
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError},
	}, h.AnalyzeListing)

	huma.Register(api, huma.Operation{
		OperationID: "analyze-all",
		Method:      http.MethodPost,
		Path:        "/api/v1/analyze",
		Summary:     "Analyze all active listings",
		Description: "Re-analyzes every active listing with a bounded worker pool.",
		Tags:        []string{"analysis"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.AnalyzeAll)
}

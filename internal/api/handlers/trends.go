package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// TrendStore reads and refreshes market trend snapshots.
type TrendStore interface {
	ListTrends(ctx context.Context) ([]domain.MarketTrend, error)
}

// TrendRefresher recomputes trend snapshots on demand.
type TrendRefresher interface {
	RunTrendRefresh(ctx context.Context) (int, error)
}

// TrendsHandler handles market trend endpoints.
type TrendsHandler struct {
	store     TrendStore
	refresher TrendRefresher
}

// NewTrendsHandler creates a new TrendsHandler.
func NewTrendsHandler(s TrendStore, r TrendRefresher) *TrendsHandler {
	return &TrendsHandler{store: s, refresher: r}
}

// ListTrendsOutput is the current set of per-make trend snapshots.
type ListTrendsOutput struct {
	Body struct {
		Trends []domain.MarketTrend `json:"trends"`
	}
}

// RefreshTrendsOutput reports how many snapshots a refresh wrote.
type RefreshTrendsOutput struct {
	Body struct {
		Snapshots int `json:"snapshots" doc:"Number of snapshots written"`
	}
}

// ListTrends returns the latest per-make market snapshots.
func (h *TrendsHandler) ListTrends(
	ctx context.Context,
	_ *struct{},
) (*ListTrendsOutput, error) {
	trends, err := h.store.ListTrends(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("trend query failed: " + err.Error())
	}

	resp := &ListTrendsOutput{}
	resp.Body.Trends = trends

	return resp, nil
}

// RefreshTrends recomputes trend snapshots immediately instead of waiting
// for the scheduled job.
func (h *TrendsHandler) RefreshTrends(
	ctx context.Context,
	_ *struct{},
) (*RefreshTrendsOutput, error) {
	n, err := h.refresher.RunTrendRefresh(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("trend refresh failed: " + err.Error())
	}

	resp := &RefreshTrendsOutput{}
	resp.Body.Snapshots = n

	return resp, nil
}

// RegisterTrendRoutes registers trend endpoints with the Huma API.
func RegisterTrendRoutes(api huma.API, h *TrendsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-trends",
		Method:      http.MethodGet,
		Path:        "/api/v1/trends",
		Summary:     "List market trends",
		Description: "Returns the latest per-make price quartile snapshots.",
		Tags:        []string{"trends"},
	}, h.ListTrends)

	huma.Register(api, huma.Operation{
		OperationID: "refresh-trends",
		Method:      http.MethodPost,
		Path:        "/api/v1/trends/refresh",
		Summary:     "Refresh market trends",
		Description: "Recomputes per-make quartile snapshots from current prices.",
		Tags:        []string{"trends"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.RefreshTrends)
}

package handlers_test

import (
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmorten/pwc-deal-tracker/internal/api/handlers"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

func TestListListings(t *testing.T) {
	t.Parallel()

	st, _ := newTestEnv(t)
	ctx := t.Context()

	yamahaID := seedListing(t, st, domain.Listing{
		Title:           "2021 Yamaha VX Cruiser",
		Make:            "Yamaha",
		NormalizedPrice: ptr(8500.0),
	})
	seedListing(t, st, domain.Listing{
		Title:           "2022 Sea-Doo Spark",
		Make:            "Sea-Doo",
		NormalizedPrice: ptr(4800.0),
	})
	require.NoError(t, st.UpdateAnalysis(ctx, yamahaID, &domain.AnalysisResult{
		Recommendation: domain.RecommendBuy,
		Confidence:     0.9,
		GeneratedAt:    testNow,
	}, domain.StatusAnalyzed))

	h := handlers.NewListingsHandler(st)
	_, api := humatest.New(t)
	handlers.RegisterListingRoutes(api, h)

	tests := []struct {
		name      string
		query     string
		wantTotal string
	}{
		{name: "no filters", query: "", wantTotal: `"total":2`},
		{name: "make filter", query: "?make=yamaha", wantTotal: `"total":1`},
		{name: "recommendation filter", query: "?recommendation=BUY", wantTotal: `"total":1`},
		{name: "status filter", query: "?status=complete", wantTotal: `"total":1`},
		{name: "price floor excludes spark", query: "?min_price=5000", wantTotal: `"total":1`},
		{name: "no matches", query: "?make=kawasaki", wantTotal: `"total":0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Get("/api/v1/listings" + tt.query)
			require.Equal(t, http.StatusOK, resp.Code)
			assert.Contains(t, resp.Body.String(), tt.wantTotal)
		})
	}
}

func TestGetListing(t *testing.T) {
	t.Parallel()

	st, _ := newTestEnv(t)

	id := seedListing(t, st, domain.Listing{
		Title:           "2021 Yamaha VX Cruiser",
		Make:            "Yamaha",
		NormalizedPrice: ptr(8500.0),
	})

	h := handlers.NewListingsHandler(st)
	_, api := humatest.New(t)
	handlers.RegisterListingRoutes(api, h)

	resp := api.Get("/api/v1/listings/" + id)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"title":"2021 Yamaha VX Cruiser"`)

	resp = api.Get("/api/v1/listings/nonexistent")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetPriceHistory(t *testing.T) {
	t.Parallel()

	st, _ := newTestEnv(t)
	ctx := t.Context()

	id := seedListing(t, st, domain.Listing{
		Title:           "2020 Kawasaki STX 160",
		Make:            "Kawasaki",
		NormalizedPrice: ptr(7000.0),
	})
	require.NoError(t, st.InsertPriceChange(ctx, &domain.PriceChange{
		ListingID:  id,
		OldPrice:   7500,
		NewPrice:   7000,
		ObservedAt: testNow,
	}))

	h := handlers.NewListingsHandler(st)
	_, api := humatest.New(t)
	handlers.RegisterListingRoutes(api, h)

	resp := api.Get("/api/v1/listings/" + id + "/price-history")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"old_price":7500`)
	assert.Contains(t, resp.Body.String(), `"new_price":7000`)

	resp = api.Get("/api/v1/listings/nonexistent/price-history")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

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

func TestListTrends(t *testing.T) {
	t.Parallel()

	st, eng := newTestEnv(t)

	require.NoError(t, st.UpsertTrend(t.Context(), &domain.MarketTrend{
		Make:        "Yamaha",
		SampleCount: 12,
		MedianPrice: 9200,
		P25:         7800,
		P75:         11400,
		ComputedAt:  testNow,
	}))

	h := handlers.NewTrendsHandler(st, eng)
	_, api := humatest.New(t)
	handlers.RegisterTrendRoutes(api, h)

	resp := api.Get("/api/v1/trends")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"make":"Yamaha"`)
	assert.Contains(t, resp.Body.String(), `"median_price":9200`)
}

func TestRefreshTrends(t *testing.T) {
	t.Parallel()

	st, eng := newTestEnv(t)

	for _, price := range []float64{8000, 9000, 10000, 11000} {
		seedListing(t, st, domain.Listing{
			Title:           "Yamaha unit",
			Make:            "Yamaha",
			NormalizedPrice: ptr(price),
		})
	}

	h := handlers.NewTrendsHandler(st, eng)
	_, api := humatest.New(t)
	handlers.RegisterTrendRoutes(api, h)

	resp := api.Post("/api/v1/trends/refresh")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"snapshots":1`)

	trends, err := st.ListTrends(t.Context())
	require.NoError(t, err)
	assert.Len(t, trends, 1)
}

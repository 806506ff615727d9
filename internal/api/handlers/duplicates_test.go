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

func TestDuplicates_ListAndClear(t *testing.T) {
	t.Parallel()

	st, _ := newTestEnv(t)
	ctx := t.Context()

	primary := seedListing(t, st, domain.Listing{
		Title:           "2021 Sea-Doo GTI",
		Make:            "Sea-Doo",
		NormalizedPrice: ptr(8000.0),
	})
	dup := seedListing(t, st, domain.Listing{
		Title:           "2021 Sea-Doo GTI low hours",
		Make:            "Sea-Doo",
		NormalizedPrice: ptr(8100.0),
	})
	require.NoError(t, st.SetDuplicateOf(ctx, dup, primary))

	h := handlers.NewDuplicatesHandler(st)
	_, api := humatest.New(t)
	handlers.RegisterDuplicateRoutes(api, h)

	resp := api.Get("/api/v1/duplicates")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total":1`)
	assert.Contains(t, resp.Body.String(), `"duplicate_of":"`+primary+`"`)

	resp = api.Post("/api/v1/duplicates/" + dup + "/clear")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"cleared"`)

	resp = api.Get("/api/v1/duplicates")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total":0`)

	// Back in the active set.
	_, total, err := st.ListListings(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestClearDuplicate_NotFound(t *testing.T) {
	t.Parallel()

	st, _ := newTestEnv(t)

	h := handlers.NewDuplicatesHandler(st)
	_, api := humatest.New(t)
	handlers.RegisterDuplicateRoutes(api, h)

	resp := api.Post("/api/v1/duplicates/nonexistent/clear")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

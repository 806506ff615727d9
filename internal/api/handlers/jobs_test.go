package handlers_test

import (
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmorten/pwc-deal-tracker/internal/api/handlers"
)

func TestGetJobHistory(t *testing.T) {
	t.Parallel()

	st, _ := newTestEnv(t)
	ctx := t.Context()

	runID, err := st.InsertJobRun(ctx, "trend_refresh")
	require.NoError(t, err)
	require.NoError(t, st.CompleteJobRun(ctx, runID, "succeeded", "", 3))

	h := handlers.NewJobsHandler(st)
	_, api := humatest.New(t)
	handlers.RegisterJobRoutes(api, h)

	resp := api.Get("/api/v1/jobs/trend_refresh")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"succeeded"`)
	assert.Contains(t, resp.Body.String(), `"rows_affected":3`)
}

func TestGetJobHistory_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	st, _ := newTestEnv(t)

	h := handlers.NewJobsHandler(st)
	_, api := humatest.New(t)
	handlers.RegisterJobRoutes(api, h)

	resp := api.Get("/api/v1/jobs/never_ran")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, "[]", resp.Body.String())
}

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

func TestClient_ConnectionRefused(t *testing.T) {
	t.Parallel()

	c := New("http://127.0.0.1:1") // nothing listening
	_, err := c.ListTrends(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API server not running")
}

func TestClient_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.ListTrends(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (HTTP 500)")
}

func TestClient_ListListings(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/listings", r.URL.Path)
		assert.Equal(t, "Yamaha", r.URL.Query().Get("make"))
		assert.Equal(t, "BUY", r.URL.Query().Get("recommendation"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ListingsResponse{
			Listings: []domain.Listing{{ID: "l1"}},
			Total:    1,
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.ListListings(context.Background(), &ListListingsParams{
		Make:           "Yamaha",
		Recommendation: "BUY",
		Limit:          10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	assert.Len(t, resp.Listings, 1)
}

func TestClient_GetListing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/listings/l1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.Listing{ID: "l1", Title: "2021 Yamaha VX Cruiser"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	l, err := c.GetListing(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, "2021 Yamaha VX Cruiser", l.Title)
}

func TestClient_Import(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/import", r.URL.Path)
		assert.Equal(t, "qr", r.URL.Query().Get("transport"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload SyncPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, 1, payload.ListingCount)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.ImportReport{Added: 1})
	}))
	defer srv.Close()

	c := New(srv.URL)
	report, err := c.Import(context.Background(), &SyncPayload{
		Timestamp:    time.Now().UTC(),
		ListingCount: 1,
		Data:         []domain.RawRecord{{Title: "2021 Yamaha VX Cruiser", URL: "https://example.com/1"}},
	}, "qr")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
}

func TestClient_AnalyzeAll(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/analyze", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"analyzed": 7})
	}))
	defer srv.Close()

	c := New(srv.URL)
	n, err := c.AnalyzeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestClient_ResolveConflict(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/conflicts/c1/resolve", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "7500", body["resolved_value"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "resolved"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.ResolveConflict(context.Background(), "c1", "7500")
	require.NoError(t, err)
}

func TestClient_GetJobHistory(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jobs/trend_refresh", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]domain.JobRun{{ID: "j1", JobName: "trend_refresh", Status: "succeeded"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	runs, err := c.GetJobHistory(context.Background(), "trend_refresh", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "succeeded", runs[0].Status)
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()

	custom := &http.Client{}
	c := New("http://example.com", WithHTTPClient(custom))
	assert.Same(t, custom, c.httpClient)
}

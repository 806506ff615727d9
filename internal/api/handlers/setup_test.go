package handlers_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calebmorten/pwc-deal-tracker/internal/catalog"
	"github.com/calebmorten/pwc-deal-tracker/internal/dedupe"
	"github.com/calebmorten/pwc-deal-tracker/internal/engine"
	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	"github.com/calebmorten/pwc-deal-tracker/pkg/logger"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) (*store.MemoryStore, *engine.Engine) {
	t.Helper()

	st := store.NewMemoryStore()
	cat, err := catalog.Default()
	require.NoError(t, err)

	d := dedupe.New(st, dedupe.Config{
		TitleSimilarity:     0.85,
		PriceTolerance:      0.05,
		PriceConflictWindow: 5 * time.Minute,
	}, logger.Discard())

	eng := engine.NewEngine(st, d, cat, engine.WithLogger(logger.Discard()))
	eng.SetNowFunc(func() time.Time { return testNow })

	return st, eng
}

func ptr[T any](v T) *T { return &v }

func seedListing(t *testing.T, st *store.MemoryStore, l domain.Listing) string {
	t.Helper()
	if l.Status == "" {
		l.Status = domain.StatusComplete
	}
	l.AddedAt = testNow.Add(-24 * time.Hour)
	l.UpdatedAt = l.AddedAt
	require.NoError(t, st.InsertListing(t.Context(), &l))
	return l.ID
}

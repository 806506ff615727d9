package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmorten/pwc-deal-tracker/internal/catalog"
	"github.com/calebmorten/pwc-deal-tracker/internal/dedupe"
	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	"github.com/calebmorten/pwc-deal-tracker/pkg/logger"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()
	cat, err := catalog.Default()
	require.NoError(t, err)

	d := dedupe.New(st, dedupe.Config{
		TitleSimilarity:     0.85,
		PriceTolerance:      0.05,
		PriceConflictWindow: 5 * time.Minute,
	}, logger.Discard())

	eng := NewEngine(st, d, cat, WithLogger(logger.Discard()))
	eng.SetNowFunc(func() time.Time { return testNow })

	return eng, st
}

func ptr[T any](v T) *T { return &v }

// seedListing inserts a listing directly, bypassing the dedup pipeline.
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

func TestImportBatch_Counts(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)

	batch := &domain.SyncBatch{
		SourceTransport: "cloud_code",
		ReceivedAt:      testNow,
		Records: []domain.RawRecord{
			{
				URL:      "https://marketplace.example/item/1?utm_source=share",
				Title:    "2021 Yamaha VX Cruiser",
				RawPrice: "$8,500",
			},
			{
				URL:      "https://marketplace.example/item/1",
				Title:    "2021 Yamaha VX Cruiser",
				RawPrice: "$8,500",
			},
			{RawPrice: "$5,000"}, // no title
			{
				URL:      "https://marketplace.example/item/2",
				Title:    "2022 Sea-Doo Spark",
				RawPrice: "$4,800",
			},
		},
	}

	report, err := eng.ImportBatch(t.Context(), batch)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 0, report.Conflicted)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 4, report.Total())
}

func TestImportBatch_NearSimultaneousPriceMismatchConflicts(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)
	ctx := t.Context()

	batch := &domain.SyncBatch{
		SourceTransport: "qr",
		Records: []domain.RawRecord{
			{
				URL:        "https://marketplace.example/item/9",
				Title:      "2020 Kawasaki STX 160",
				RawPrice:   "$7,500",
				CapturedAt: testNow,
			},
			{
				URL:        "https://marketplace.example/item/9",
				Title:      "2020 Kawasaki STX 160",
				RawPrice:   "$8,200",
				CapturedAt: testNow.Add(time.Minute),
			},
		},
	}

	report, err := eng.ImportBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Conflicted)

	listings, _, err := st.ListListings(ctx, &store.ListingQuery{})
	require.NoError(t, err)
	require.Len(t, listings, 1)

	conflicts, err := st.ListConflicts(ctx, listings[0].ID, true)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "normalized_price", conflicts[0].Field)
}

// brokenInsertStore fails InsertListing after a set number of successes; the
// failure surfaces inside the import transaction.
type brokenInsertStore struct {
	store.Store
	failAfter int
	inserts   *int
}

func (b *brokenInsertStore) InsertListing(ctx context.Context, l *domain.Listing) error {
	*b.inserts++
	if *b.inserts > b.failAfter {
		return errors.New("connection reset during insert")
	}
	return b.Store.InsertListing(ctx, l)
}

func (b *brokenInsertStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return b.Store.WithTx(ctx, func(tx store.Store) error {
		return fn(&brokenInsertStore{Store: tx, failAfter: b.failAfter, inserts: b.inserts})
	})
}

func TestImportBatch_MidBatchFailureRollsBackWholeBatch(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	st := &brokenInsertStore{Store: mem, failAfter: 1, inserts: new(int)}

	cat, err := catalog.Default()
	require.NoError(t, err)
	d := dedupe.New(st, dedupe.Config{PriceConflictWindow: 5 * time.Minute}, logger.Discard())
	eng := NewEngine(st, d, cat, WithLogger(logger.Discard()))

	batch := &domain.SyncBatch{
		SourceTransport: "blob",
		ReceivedAt:      testNow,
		Records: []domain.RawRecord{
			{
				URL:      "https://marketplace.example/item/500",
				Title:    "2021 Yamaha VX Cruiser",
				RawPrice: "$8,500",
			},
			{
				URL:      "https://marketplace.example/item/501",
				Title:    "2022 Sea-Doo Spark",
				RawPrice: "$4,800",
			},
		},
	}

	report, err := eng.ImportBatch(t.Context(), batch)
	require.Error(t, err)
	assert.Nil(t, report)

	// The first record was inserted before the failure; the rollback takes
	// it out with the rest of the batch.
	_, total, err := mem.ListListings(t.Context(), &store.ListingQuery{IncludeDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestAnalyzeListing_BuyAgainstReference(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)
	ctx := t.Context()

	// MSRP 11749, age 3 → factor 0.625 → expected 7343.13.
	id := seedListing(t, st, domain.Listing{
		Title:           "2021 Yamaha VX Cruiser",
		Make:            "Yamaha",
		Model:           "VX Cruiser",
		Year:            ptr(2021),
		NormalizedPrice: ptr(5000.0),
		Photos:          []string{"https://img.example/1.jpg"},
	})

	l, err := eng.AnalyzeListing(ctx, id)
	require.NoError(t, err)

	require.NotNil(t, l.Analysis)
	assert.Equal(t, domain.RecommendBuy, l.Analysis.Recommendation)
	assert.InDelta(t, 1.0, l.Analysis.Confidence, 0.001)
	require.NotNil(t, l.Analysis.ExpectedPrice)
	assert.InDelta(t, 7343.13, *l.Analysis.ExpectedPrice, 0.01)
	require.NotNil(t, l.Analysis.DeltaPercent)
	assert.InDelta(t, -0.319, *l.Analysis.DeltaPercent, 0.005)
	assert.Equal(t, testNow, l.Analysis.GeneratedAt)

	stored, err := st.GetListing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzed, stored.Status)
	require.NotNil(t, stored.Analysis)
	assert.Equal(t, domain.RecommendBuy, stored.Analysis.Recommendation)
}

func TestAnalyzeListing_OverpricedPass(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)

	id := seedListing(t, st, domain.Listing{
		Title:           "2021 Yamaha VX Cruiser",
		Make:            "Yamaha",
		Model:           "VX Cruiser",
		Year:            ptr(2021),
		NormalizedPrice: ptr(9500.0),
		Photos:          []string{"https://img.example/1.jpg"},
	})

	l, err := eng.AnalyzeListing(t.Context(), id)
	require.NoError(t, err)
	require.NotNil(t, l.Analysis)
	assert.Equal(t, domain.RecommendPass, l.Analysis.Recommendation)
}

func TestAnalyzeListing_NoPriceDegradesToResearch(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)

	id := seedListing(t, st, domain.Listing{
		Title:  "2021 Yamaha VX Cruiser",
		Make:   "Yamaha",
		Model:  "VX Cruiser",
		Year:   ptr(2021),
		Status: domain.StatusPending,
	})

	l, err := eng.AnalyzeListing(t.Context(), id)
	require.NoError(t, err)
	require.NotNil(t, l.Analysis)
	assert.Equal(t, domain.RecommendResearch, l.Analysis.Recommendation)
	assert.Zero(t, l.Analysis.Confidence)
	assert.Equal(t, domain.StatusAnalyzed, l.Status)
}

func TestAnalyzeListing_NoReferenceOutlierFallback(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)

	// Polaris has no catalog rows; the outlier check runs against peers.
	for _, price := range []float64{10000, 10100, 10200, 10300, 10400, 10500} {
		seedListing(t, st, domain.Listing{
			Title:           "Polaris watercraft",
			Make:            "Polaris",
			NormalizedPrice: ptr(price),
		})
	}
	id := seedListing(t, st, domain.Listing{
		Title:           "Polaris SLT 700 runs great",
		Make:            "Polaris",
		NormalizedPrice: ptr(2000.0),
		Photos:          []string{"https://img.example/p.jpg"},
	})

	l, err := eng.AnalyzeListing(t.Context(), id)
	require.NoError(t, err)
	require.NotNil(t, l.Analysis)
	assert.Equal(t, domain.RecommendConsider, l.Analysis.Recommendation)
	assert.LessOrEqual(t, l.Analysis.Confidence, 0.6)
	assert.Nil(t, l.Analysis.DeltaPercent)
}

func TestAnalyzeListing_NoReferenceNoPeers(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)

	id := seedListing(t, st, domain.Listing{
		Title:           "Honda AquaTrax F-12X",
		Make:            "Honda",
		NormalizedPrice: ptr(6500.0),
		Photos:          []string{"https://img.example/h.jpg"},
	})

	l, err := eng.AnalyzeListing(t.Context(), id)
	require.NoError(t, err)
	require.NotNil(t, l.Analysis)
	assert.Equal(t, domain.RecommendResearch, l.Analysis.Recommendation)
	assert.InDelta(t, 0.6, l.Analysis.Confidence, 0.001)
}

func TestAnalyzeListing_DuplicateRefused(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)
	ctx := t.Context()

	primary := seedListing(t, st, domain.Listing{
		Title:           "2021 Sea-Doo GTI",
		Make:            "Sea-Doo",
		NormalizedPrice: ptr(8000.0),
	})
	dup := seedListing(t, st, domain.Listing{
		Title:           "2021 Sea-Doo GTI SE clean",
		Make:            "Sea-Doo",
		NormalizedPrice: ptr(8100.0),
	})
	require.NoError(t, st.SetDuplicateOf(ctx, dup, primary))

	_, err := eng.AnalyzeListing(ctx, dup)
	require.ErrorIs(t, err, ErrDuplicateListing)
}

func TestAnalyzeListing_NotFound(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)

	_, err := eng.AnalyzeListing(t.Context(), "no-such-id")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyzeAll_SkipsDuplicates(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)
	ctx := t.Context()

	ids := make([]string, 0, 3)
	for i, price := range []float64{5000, 6000, 7000} {
		ids = append(ids, seedListing(t, st, domain.Listing{
			Title:           "2021 Yamaha VX Cruiser",
			Make:            "Yamaha",
			Model:           "VX Cruiser",
			Year:            ptr(2021),
			NormalizedPrice: ptr(price),
			CanonicalKey:    string(rune('a' + i)),
		}))
	}
	primary := ids[0]
	dup := seedListing(t, st, domain.Listing{
		Title:           "2021 Yamaha VX Cruiser again",
		Make:            "Yamaha",
		NormalizedPrice: ptr(5050.0),
	})
	require.NoError(t, st.SetDuplicateOf(ctx, dup, primary))

	n, err := eng.AnalyzeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, id := range ids {
		l, err := st.GetListing(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAnalyzed, l.Status)
	}

	flagged, err := st.GetListing(ctx, dup)
	require.NoError(t, err)
	assert.Nil(t, flagged.Analysis)
}

func TestRunTrendRefresh(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)
	ctx := t.Context()

	for _, price := range []float64{8000, 9000, 10000, 11000, 12000} {
		seedListing(t, st, domain.Listing{
			Title:           "Yamaha unit",
			Make:            "Yamaha",
			NormalizedPrice: ptr(price),
		})
	}
	// Too few samples for quartiles; skipped.
	for _, price := range []float64{4000, 4200} {
		seedListing(t, st, domain.Listing{
			Title:           "Sea-Doo unit",
			Make:            "Sea-Doo",
			NormalizedPrice: ptr(price),
		})
	}

	written, err := eng.RunTrendRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	trends, err := st.ListTrends(ctx)
	require.NoError(t, err)
	require.Len(t, trends, 1)

	tr := trends[0]
	assert.Equal(t, "Yamaha", tr.Make)
	assert.Equal(t, 5, tr.SampleCount)
	assert.InDelta(t, 10000, tr.MedianPrice, 0.001)
	assert.InDelta(t, 9000, tr.P25, 0.001)
	assert.InDelta(t, 11000, tr.P75, 0.001)
	assert.Equal(t, testNow, tr.ComputedAt)
}

func TestRunTrendRefresh_MedianDeltaNearestYearFallback(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)
	ctx := t.Context()

	// 2019 VX Cruiser has no exact catalog row; the nearest year (2020,
	// MSRP 11449) anchors the delta. Age 5 → factor 0.53 → expected 6067.97.
	for _, price := range []float64{6000, 6200, 6400, 6600} {
		seedListing(t, st, domain.Listing{
			Title:           "2019 Yamaha VX Cruiser",
			Make:            "Yamaha",
			Model:           "VX Cruiser",
			Year:            ptr(2019),
			NormalizedPrice: ptr(price),
		})
	}

	written, err := eng.RunTrendRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	trends, err := st.ListTrends(ctx)
	require.NoError(t, err)
	require.Len(t, trends, 1)

	tr := trends[0]
	require.NotNil(t, tr.MedianDeltaPercent)
	// Median asking price 6300 vs expected 6067.97.
	assert.InDelta(t, (6300-6067.97)/6067.97, *tr.MedianDeltaPercent, 0.0001)
}

func TestRunTrendRefresh_NoReferenceMatchesLeavesDeltaUnset(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)
	ctx := t.Context()

	// Priced but modelless listings produce a snapshot with no delta.
	for _, price := range []float64{3000, 3200, 3400, 3600} {
		seedListing(t, st, domain.Listing{
			Title:           "Honda unit",
			Make:            "Honda",
			NormalizedPrice: ptr(price),
		})
	}

	written, err := eng.RunTrendRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	trends, err := st.ListTrends(ctx)
	require.NoError(t, err)
	require.Len(t, trends, 1)
	assert.Nil(t, trends[0].MedianDeltaPercent)
}

func TestRunTrendRefresh_ReplacesPriorSnapshot(t *testing.T) {
	t.Parallel()

	eng, st := newTestEngine(t)
	ctx := t.Context()

	for _, price := range []float64{8000, 9000, 10000, 11000} {
		seedListing(t, st, domain.Listing{
			Title:           "Yamaha unit",
			Make:            "Yamaha",
			NormalizedPrice: ptr(price),
		})
	}

	_, err := eng.RunTrendRefresh(ctx)
	require.NoError(t, err)

	seedListing(t, st, domain.Listing{
		Title:           "Yamaha unit",
		Make:            "Yamaha",
		NormalizedPrice: ptr(12000.0),
	})

	written, err := eng.RunTrendRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	trends, err := st.ListTrends(ctx)
	require.NoError(t, err)
	require.Len(t, trends, 1)
	assert.Equal(t, 5, trends[0].SampleCount)
}

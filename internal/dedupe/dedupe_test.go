package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	"github.com/calebmorten/pwc-deal-tracker/pkg/logger"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

func testConfig() Config {
	return Config{
		TitleSimilarity:     0.85,
		PriceTolerance:      0.05,
		PriceConflictWindow: 5 * time.Minute,
	}
}

func newTestDeduplicator(t *testing.T) (*Deduplicator, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return New(st, testConfig(), logger.Discard()), st
}

func TestIngest_NewListing(t *testing.T) {
	t.Parallel()

	d, st := newTestDeduplicator(t)
	ctx := t.Context()

	res, err := d.Ingest(ctx, domain.RawRecord{
		URL:      "https://marketplace.example/item/42?utm_source=share",
		Title:    "2021 Yamaha VX Cruiser HO low hours",
		RawPrice: "$9,500",
		Location: "Tampa, FL",
		Source:   "marketplace",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdded, res.Outcome)
	require.NotEmpty(t, res.ListingID)

	l, err := st.GetListing(ctx, res.ListingID)
	require.NoError(t, err)
	assert.Equal(t, "https://marketplace.example/item/42", l.CanonicalURL)
	require.NotNil(t, l.NormalizedPrice)
	assert.Equal(t, 9500.0, *l.NormalizedPrice)
	assert.Equal(t, "Yamaha", l.Make)
	assert.Equal(t, "VX Cruiser HO", l.Model)
	require.NotNil(t, l.Year)
	assert.Equal(t, 2021, *l.Year)
	assert.Equal(t, domain.StatusComplete, l.Status)
}

func TestIngest_MissingTitleRejected(t *testing.T) {
	t.Parallel()

	d, _ := newTestDeduplicator(t)

	_, err := d.Ingest(t.Context(), domain.RawRecord{RawPrice: "$5,000"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)
}

func TestIngest_UnparseablePriceStaysPending(t *testing.T) {
	t.Parallel()

	d, st := newTestDeduplicator(t)
	ctx := t.Context()

	res, err := d.Ingest(ctx, domain.RawRecord{
		URL:      "https://marketplace.example/item/77",
		Title:    "2018 Sea-Doo GTX 155",
		RawPrice: "Call for price",
	})
	require.NoError(t, err)

	l, err := st.GetListing(ctx, res.ListingID)
	require.NoError(t, err)
	assert.Nil(t, l.NormalizedPrice)
	assert.Equal(t, domain.StatusPending, l.Status)
}

func TestIngest_SameURLMergesDespiteTrackingParams(t *testing.T) {
	t.Parallel()

	d, st := newTestDeduplicator(t)
	ctx := t.Context()

	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	first, err := d.Ingest(ctx, domain.RawRecord{
		URL:        "https://marketplace.example/item/9",
		Title:      "2020 Kawasaki Ultra 310LX",
		RawPrice:   "$15,000",
		CapturedAt: t0,
	})
	require.NoError(t, err)

	second, err := d.Ingest(ctx, domain.RawRecord{
		URL:        "https://marketplace.example/item/9?utm_campaign=resurface&fbclid=zz",
		Title:      "2020 Kawasaki Ultra 310LX",
		RawPrice:   "$13,900",
		Seller:     "Gulf Coast Motorsports",
		CapturedAt: t0.Add(48 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ListingID, second.ListingID)
	assert.Equal(t, OutcomeMerged, second.Outcome)

	l, err := st.GetListing(ctx, first.ListingID)
	require.NoError(t, err)
	assert.Equal(t, 13900.0, *l.NormalizedPrice)
	assert.Equal(t, "Gulf Coast Motorsports", l.Seller)

	// Price transition preserved as history.
	history, err := st.ListPriceChanges(ctx, first.ListingID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 15000.0, history[0].OldPrice)
	assert.Equal(t, 13900.0, history[0].NewPrice)

	_, total, err := st.ListListings(ctx, &store.ListingQuery{IncludeDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "merge must not create a second listing")
}

func TestIngest_MergeDoesNotClobberAnalysis(t *testing.T) {
	t.Parallel()

	d, st := newTestDeduplicator(t)
	ctx := t.Context()

	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	res, err := d.Ingest(ctx, domain.RawRecord{
		URL:        "https://marketplace.example/item/11",
		Title:      "2019 Yamaha GP1800R",
		RawPrice:   "$10,500",
		CapturedAt: t0,
	})
	require.NoError(t, err)

	analysis := &domain.AnalysisResult{
		Recommendation: domain.RecommendConsider,
		Confidence:     0.8,
		GeneratedAt:    t0.Add(time.Hour),
	}
	require.NoError(t, st.UpdateAnalysis(ctx, res.ListingID, analysis, domain.StatusAnalyzed))

	// Re-capture without analysis arrives later.
	_, err = d.Ingest(ctx, domain.RawRecord{
		URL:        "https://marketplace.example/item/11",
		Title:      "2019 Yamaha GP1800R",
		RawPrice:   "$10,500",
		CapturedAt: t0.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	l, err := st.GetListing(ctx, res.ListingID)
	require.NoError(t, err)
	require.NotNil(t, l.Analysis)
	assert.Equal(t, domain.RecommendConsider, l.Analysis.Recommendation)
	assert.Equal(t, domain.StatusAnalyzed, l.Status)
}

func TestIngest_NearSimultaneousPriceMismatchConflicts(t *testing.T) {
	t.Parallel()

	d, st := newTestDeduplicator(t)
	ctx := t.Context()

	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	res, err := d.Ingest(ctx, domain.RawRecord{
		URL:        "https://marketplace.example/item/60",
		Title:      "2022 Sea-Doo RXP-X 300",
		RawPrice:   "$16,000",
		CapturedAt: t0,
	})
	require.NoError(t, err)

	second, err := d.Ingest(ctx, domain.RawRecord{
		URL:        "https://marketplace.example/item/60",
		Title:      "2022 Sea-Doo RXP-X 300",
		RawPrice:   "$14,500",
		CapturedAt: t0.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflicted, second.Outcome)

	conflicts, err := st.ListConflicts(ctx, res.ListingID, true)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "normalized_price", conflicts[0].Field)

	// Stored price untouched until the conflict is resolved.
	l, err := st.GetListing(ctx, res.ListingID)
	require.NoError(t, err)
	assert.Equal(t, 16000.0, *l.NormalizedPrice)

	// Replay of the same mismatch doesn't stack a second open conflict.
	_, err = d.Ingest(ctx, domain.RawRecord{
		URL:        "https://marketplace.example/item/60",
		Title:      "2022 Sea-Doo RXP-X 300",
		RawPrice:   "$14,500",
		CapturedAt: t0.Add(2 * time.Minute),
	})
	require.NoError(t, err)

	conflicts, err = st.ListConflicts(ctx, res.ListingID, true)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestIngest_FieldOverwriteRecordsResolvedConflict(t *testing.T) {
	t.Parallel()

	d, st := newTestDeduplicator(t)
	ctx := t.Context()

	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	res, err := d.Ingest(ctx, domain.RawRecord{
		URL:        "https://marketplace.example/item/70",
		Title:      "2021 Sea-Doo GTI 130",
		RawPrice:   "$8,900",
		Location:   "Tampa, FL",
		CapturedAt: t0,
	})
	require.NoError(t, err)

	second, err := d.Ingest(ctx, domain.RawRecord{
		URL:        "https://marketplace.example/item/70",
		Title:      "2021 Sea-Doo GTI 130",
		RawPrice:   "$8,900",
		Location:   "Orlando, FL",
		CapturedAt: t0.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, second.Outcome, "a self-resolving divergence is not an escalation")

	l, err := st.GetListing(ctx, res.ListingID)
	require.NoError(t, err)
	assert.Equal(t, "Orlando, FL", l.Location)

	// The losing value stays on record as a resolved conflict, not an open one.
	open, err := st.ListConflicts(ctx, res.ListingID, true)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := st.ListConflicts(ctx, res.ListingID, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	c := all[0]
	assert.Equal(t, "location", c.Field)
	assert.True(t, c.Resolved())
	assert.Equal(t, "Orlando, FL", c.ResolvedValue)
	require.Len(t, c.Candidates, 2)
	assert.Equal(t, "Tampa, FL", c.Candidates[0].Value)
	assert.Equal(t, "Orlando, FL", c.Candidates[1].Value)
}

func TestIngest_LateEarlierCaptureBacksDatesAddedAt(t *testing.T) {
	t.Parallel()

	d, st := newTestDeduplicator(t)
	ctx := t.Context()

	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	res, err := d.Ingest(ctx, domain.RawRecord{
		URL:        "https://marketplace.example/item/80",
		Title:      "2019 Kawasaki STX-15F",
		RawPrice:   "$6,500",
		CapturedAt: t0,
	})
	require.NoError(t, err)

	// A capture taken two days earlier arrives out of order.
	earlier := time.Date(2026, 3, 30, 12, 0, 0, 0, time.UTC)
	_, err = d.Ingest(ctx, domain.RawRecord{
		URL:        "https://marketplace.example/item/80",
		Title:      "2019 Kawasaki STX-15F",
		RawPrice:   "$6,500",
		CapturedAt: earlier,
	})
	require.NoError(t, err)

	l, err := st.GetListing(ctx, res.ListingID)
	require.NoError(t, err)
	assert.Equal(t, earlier, l.AddedAt, "first-seen time reflects the earliest capture")
}

func TestIngest_FuzzyDuplicateFlaggedNotMerged(t *testing.T) {
	t.Parallel()

	d, st := newTestDeduplicator(t)
	ctx := t.Context()

	first, err := d.Ingest(ctx, domain.RawRecord{
		URL:      "https://marketplace.example/item/100",
		Title:    "2020 Yamaha VX Cruiser low hours",
		RawPrice: "$8,000",
		Location: "Tampa, FL",
	})
	require.NoError(t, err)

	// Same machine reposted at a different URL with a lightly edited title.
	second, err := d.Ingest(ctx, domain.RawRecord{
		URL:      "https://otherboard.example/posting/555",
		Title:    "2020 Yamaha VX Cruiser low hrs",
		RawPrice: "$7,900",
		Location: "Tampa, FL",
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAdded, second.Outcome, "fuzzy matches are never auto-merged")
	assert.NotEqual(t, first.ListingID, second.ListingID)
	assert.Equal(t, first.ListingID, second.FlaggedDuplicateOf)

	dups, err := st.ListDuplicates(ctx)
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, second.ListingID, dups[0].ID)
	assert.Equal(t, first.ListingID, dups[0].DuplicateOf)
}

func TestIngest_DifferentLocalityNotFlagged(t *testing.T) {
	t.Parallel()

	d, st := newTestDeduplicator(t)
	ctx := t.Context()

	_, err := d.Ingest(ctx, domain.RawRecord{
		URL:      "https://marketplace.example/item/200",
		Title:    "2020 Yamaha VX Cruiser low hours",
		RawPrice: "$8,000",
		Location: "Tampa, FL",
	})
	require.NoError(t, err)

	res, err := d.Ingest(ctx, domain.RawRecord{
		URL:      "https://marketplace.example/item/201",
		Title:    "2020 Yamaha VX Cruiser low hours",
		RawPrice: "$8,000",
		Location: "Portland, OR",
	})
	require.NoError(t, err)
	assert.Empty(t, res.FlaggedDuplicateOf)

	dups, err := st.ListDuplicates(ctx)
	require.NoError(t, err)
	assert.Empty(t, dups)
}

func TestIngest_ConcurrentSameKeySerializes(t *testing.T) {
	t.Parallel()

	d, st := newTestDeduplicator(t)
	ctx := t.Context()

	const n = 16
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := d.Ingest(ctx, domain.RawRecord{
				URL:      "https://marketplace.example/item/300",
				Title:    "2017 Sea-Doo GTI 90",
				RawPrice: "$5,200",
			})
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	_, total, err := st.ListListings(ctx, &store.ListingQuery{IncludeDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "one canonical listing regardless of race")
}

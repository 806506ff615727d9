package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/calebmorten/pwc-deal-tracker/internal/metrics"
	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	"github.com/calebmorten/pwc-deal-tracker/pkg/stats"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
	"github.com/calebmorten/pwc-deal-tracker/pkg/valuation"
)

// RunTrendRefresh recomputes one market trend snapshot per make from the
// current analyzable prices, returning the number of snapshots written. Makes
// with fewer than four priced listings are skipped; quartiles over a smaller
// sample would be noise dressed up as signal.
func (eng *Engine) RunTrendRefresh(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		metrics.TrendRefreshDuration.Observe(time.Since(start).Seconds())
	}()

	makes, err := eng.store.ListMakes(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing makes: %w", err)
	}

	now := eng.nowFunc()
	written := 0

	for _, mk := range makes {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}

		prices, err := eng.store.ListAnalyzablePrices(ctx, mk)
		if err != nil {
			return written, fmt.Errorf("loading prices for %s: %w", mk, err)
		}

		q, ok := stats.Compute(prices)
		if !ok {
			eng.log.Debug("skipping trend for sparse make",
				"make", mk, "samples", len(prices))
			continue
		}

		delta, err := eng.trendDelta(ctx, mk, now)
		if err != nil {
			return written, fmt.Errorf("computing delta for %s: %w", mk, err)
		}

		trend := &domain.MarketTrend{
			Make:               mk,
			SampleCount:        len(prices),
			MedianPrice:        q.Median,
			P25:                q.Q1,
			P75:                q.Q3,
			MedianDeltaPercent: delta,
			ComputedAt:         now,
		}
		if err := eng.store.UpsertTrend(ctx, trend); err != nil {
			return written, fmt.Errorf("upserting trend for %s: %w", mk, err)
		}
		metrics.TrendSnapshotsTotal.Inc()
		written++
	}

	eng.log.Info("trend refresh complete", "snapshots", written, "makes", len(makes))

	return written, nil
}

// trendDelta computes the median valuation delta across a make's active
// listings. Reference matching tolerates the nearest catalog year here: the
// aggregate only needs to be directionally right, unlike per-listing
// valuation, which requires an exact year.
func (eng *Engine) trendDelta(ctx context.Context, mk string, now time.Time) (*float64, error) {
	var deltas []float64

	for offset := 0; ; {
		page, total, err := eng.store.ListListings(ctx, &store.ListingQuery{
			Make:   &mk,
			Limit:  500,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("listing %s listings: %w", mk, err)
		}

		for i := range page {
			l := &page[i]
			if !l.HasPrice() || l.Model == "" || l.Year == nil {
				continue
			}

			spec, ok := eng.catalog.Lookup(l.Make, l.Model, *l.Year)
			if !ok {
				spec, ok = eng.catalog.NearestYear(l.Make, l.Model, *l.Year)
			}
			if !ok {
				continue
			}

			age, _ := l.Age(now)
			v, err := valuation.Valuate(spec, age, l.NormalizedPrice, eng.curve)
			if err != nil || v.DeltaPercent == nil {
				continue
			}
			deltas = append(deltas, *v.DeltaPercent)
		}

		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}

	m, ok := stats.Median(deltas)
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// Package engine orchestrates the pipelines that connect transports, dedup,
// and valuation: batch imports, single and bulk analysis, and the scheduled
// trend refresh.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/calebmorten/pwc-deal-tracker/internal/catalog"
	"github.com/calebmorten/pwc-deal-tracker/internal/dedupe"
	"github.com/calebmorten/pwc-deal-tracker/internal/metrics"
	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
	"github.com/calebmorten/pwc-deal-tracker/pkg/valuation"
)

const defaultAnalyzeWorkers = 4

// ErrDuplicateListing is returned when analysis is requested for a listing
// that is flagged as a probable duplicate. Duplicates stay out of the active
// set until a human clears the flag.
var ErrDuplicateListing = errors.New("listing is flagged as a duplicate")

// Engine orchestrates import, analysis, and trend aggregation.
type Engine struct {
	store   store.Store
	dedup   *dedupe.Deduplicator
	catalog *catalog.Catalog
	log     *slog.Logger

	curve          valuation.Curve
	classifier     valuation.ClassifierConfig
	analyzeWorkers int
	nowFunc        func() time.Time
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(
	s store.Store,
	d *dedupe.Deduplicator,
	c *catalog.Catalog,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		store:          s,
		dedup:          d,
		catalog:        c,
		log:            slog.Default(),
		curve:          valuation.DefaultCurve(),
		classifier:     valuation.DefaultClassifierConfig(),
		analyzeWorkers: defaultAnalyzeWorkers,
		nowFunc:        time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithCurve sets the depreciation curve used for expected prices.
func WithCurve(c valuation.Curve) EngineOption {
	return func(e *Engine) {
		e.curve = c
	}
}

// WithClassifierConfig sets classifier tuning.
func WithClassifierConfig(c valuation.ClassifierConfig) EngineOption {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithAnalyzeWorkers bounds bulk-analysis parallelism.
func WithAnalyzeWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.analyzeWorkers = n
		}
	}
}

// SetNowFunc overrides the clock; tests only.
func (eng *Engine) SetNowFunc(f func() time.Time) {
	eng.nowFunc = f
}

// ImportBatch applies a transport-delivered batch inside a single store
// transaction. Invalid records are counted as rejected and never abort the
// batch; a store failure or cancellation rolls the whole batch back, leaving
// the store exactly as it was before the import.
func (eng *Engine) ImportBatch(ctx context.Context, batch *domain.SyncBatch) (*domain.ImportReport, error) {
	start := time.Now()
	defer func() {
		metrics.ImportDuration.Observe(time.Since(start).Seconds())
	}()

	transport := batch.SourceTransport
	if transport == "" {
		transport = "unknown"
	}
	metrics.ImportBatchesTotal.WithLabelValues(transport).Inc()

	report := &domain.ImportReport{}

	err := eng.store.WithTx(ctx, func(st store.Store) error {
		ded := eng.dedup.WithStore(st)

		for i := range batch.Records {
			res, err := ded.Ingest(ctx, batch.Records[i])
			if err != nil {
				var verr *dedupe.ValidationError
				if errors.As(err, &verr) {
					report.Rejected++
					metrics.ImportRecordsTotal.WithLabelValues("rejected").Inc()
					eng.log.Warn("record rejected",
						"transport", transport,
						"record", i,
						"field", verr.Field,
						"reason", verr.Reason,
					)
					continue
				}
				return fmt.Errorf("ingesting record %d: %w", i, err)
			}

			metrics.ImportRecordsTotal.WithLabelValues(string(res.Outcome)).Inc()
			switch res.Outcome {
			case dedupe.OutcomeAdded:
				report.Added++
			case dedupe.OutcomeMerged:
				report.Merged++
			case dedupe.OutcomeConflicted:
				report.Conflicted++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	eng.log.Info("batch imported",
		"transport", transport,
		"added", report.Added,
		"merged", report.Merged,
		"conflicted", report.Conflicted,
		"rejected", report.Rejected,
	)

	return report, nil
}

// AnalyzeListing values one listing against the reference catalog and writes
// the verdict. Listings without a catalog match fall back to the statistical
// outlier check against peer prices; missing data degrades the verdict, it
// never fails the call.
func (eng *Engine) AnalyzeListing(ctx context.Context, id string) (*domain.Listing, error) {
	start := time.Now()
	defer func() {
		metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	}()

	l, err := eng.store.GetListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading listing: %w", err)
	}
	if l.DuplicateOf != "" {
		return nil, fmt.Errorf("analyzing %s: %w", id, ErrDuplicateListing)
	}

	now := eng.nowFunc()
	res := eng.classify(ctx, l, now)

	if err := eng.store.UpdateAnalysis(ctx, id, &res, domain.StatusAnalyzed); err != nil {
		return nil, fmt.Errorf("writing analysis: %w", err)
	}
	metrics.AnalysisTotal.WithLabelValues(string(res.Recommendation)).Inc()

	l.Analysis = &res
	l.Status = domain.StatusAnalyzed
	l.UpdatedAt = now

	return l, nil
}

func (eng *Engine) classify(ctx context.Context, l *domain.Listing, now time.Time) domain.AnalysisResult {
	in := valuation.ClassifyInput{
		HasPhotos: len(l.Photos) > 0,
	}
	if l.HasPrice() {
		in.Price = *l.NormalizedPrice
		in.HasPrice = true
	}

	spec, matched := eng.lookupSpec(l)
	if matched {
		age, _ := l.Age(now)
		v, err := valuation.Valuate(spec, age, l.NormalizedPrice, eng.curve)
		if err == nil {
			in.Delta = v.DeltaPercent
			in.ExpectedPrice = v.ExpectedPrice
		}
	}

	if in.Delta == nil && in.HasPrice {
		metrics.AnalysisNoReferenceTotal.Inc()
		peers, err := eng.store.ListAnalyzablePrices(ctx, l.Make)
		if err != nil {
			eng.log.Error("loading peer prices failed", "listing_id", l.ID, "error", err)
		} else {
			in.PeerPrices = peers
		}
	}

	return valuation.Classify(in, eng.classifier, now)
}

// lookupSpec requires an exact (make, model, year) hit. Nearest-year
// approximation is reserved for trend aggregation; a valuation must never
// rest on a guessed model year.
func (eng *Engine) lookupSpec(l *domain.Listing) (domain.ReferenceSpec, bool) {
	if l.Make == "" || l.Model == "" || l.Year == nil {
		return domain.ReferenceSpec{}, false
	}
	return eng.catalog.Lookup(l.Make, l.Model, *l.Year)
}

// AnalyzeAll re-analyzes every active listing with a bounded worker pool and
// returns the number analyzed. Per-listing failures are logged and skipped so
// one bad row cannot stall the sweep.
func (eng *Engine) AnalyzeAll(ctx context.Context) (int, error) {
	ids, err := eng.listActiveIDs(ctx)
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.SetLimit(eng.analyzeWorkers)

	analyzed := make(chan string, len(ids))
	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if _, err := eng.AnalyzeListing(ctx, id); err != nil {
				eng.log.Error("analysis failed", "listing_id", id, "error", err)
				return nil
			}
			analyzed <- id
			return nil
		})
	}

	err = g.Wait()
	close(analyzed)

	return len(analyzed), err
}

func (eng *Engine) listActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for offset := 0; ; {
		page, total, err := eng.store.ListListings(ctx, &store.ListingQuery{
			Limit:  500,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("listing active listings: %w", err)
		}
		for i := range page {
			ids = append(ids, page[i].ID)
		}
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}
	return ids, nil
}

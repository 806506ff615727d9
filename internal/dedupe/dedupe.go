// Package dedupe folds raw captured listings into the canonical store:
// identity resolution, field-level merging, and fuzzy near-duplicate
// flagging.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calebmorten/pwc-deal-tracker/internal/metrics"
	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	"github.com/calebmorten/pwc-deal-tracker/pkg/pricenorm"
	"github.com/calebmorten/pwc-deal-tracker/pkg/titleparse"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// ValidationError marks a raw record that cannot be ingested. Batch imports
// count these as rejected instead of aborting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
}

// Outcome classifies what Ingest did with a record.
type Outcome string

// Ingest outcomes.
const (
	OutcomeAdded      Outcome = "added"
	OutcomeMerged     Outcome = "merged"
	OutcomeConflicted Outcome = "conflicted"
)

// Result describes a single ingested record.
type Result struct {
	ListingID string
	Outcome   Outcome
	// FlaggedDuplicateOf is set when a newly added listing was linked to a
	// probable duplicate for manual review.
	FlaggedDuplicateOf string
}

// Config holds fuzzy-duplicate thresholds.
type Config struct {
	// TitleSimilarity in [0,1]: pairs at or above it are duplicate suspects.
	TitleSimilarity float64
	// PriceTolerance as a fraction of the larger price.
	PriceTolerance float64
	// PriceConflictWindow bounds near-simultaneous price escalation.
	PriceConflictWindow time.Duration
}

// Deduplicator ingests raw records into the canonical store. Records sharing
// a canonical key are serialized; distinct keys proceed in parallel.
type Deduplicator struct {
	store    store.Store
	resolver *Resolver
	cfg      Config
	logger   *slog.Logger
	keys     *keyedMutex
	nowFunc  func() time.Time
}

// New creates a Deduplicator.
func New(st store.Store, cfg Config, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{
		store:    st,
		resolver: &Resolver{PriceConflictWindow: cfg.PriceConflictWindow},
		cfg:      cfg,
		logger:   logger.With("component", "dedupe"),
		keys:     newKeyedMutex(),
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the clock; tests only.
func (d *Deduplicator) SetNowFunc(f func() time.Time) {
	d.nowFunc = f
}

// WithStore returns a Deduplicator bound to st, sharing the key locks and
// thresholds. Batch imports use it to run ingestion inside a store
// transaction.
func (d *Deduplicator) WithStore(st store.Store) *Deduplicator {
	cp := *d
	cp.store = st
	return &cp
}

// Ingest folds one raw record into the store: new identity inserts, known
// identity merges, and near-duplicates of other listings are flagged for
// review. Batch callers run it against a transactional store view so a
// mid-batch failure rolls every record back together.
func (d *Deduplicator) Ingest(ctx context.Context, raw domain.RawRecord) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	incoming, capturedAt, err := d.buildListing(raw)
	if err != nil {
		return nil, err
	}

	key := incoming.CanonicalKey
	d.keys.Lock(key)
	defer d.keys.Unlock(key)

	existing, err := d.store.GetListingByKey(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return d.insertNew(ctx, incoming)
	case err != nil:
		return nil, fmt.Errorf("looking up canonical key: %w", err)
	}

	return d.merge(ctx, existing, incoming, capturedAt)
}

func (d *Deduplicator) insertNew(ctx context.Context, l *domain.Listing) (*Result, error) {
	if err := d.store.InsertListing(ctx, l); err != nil {
		return nil, fmt.Errorf("inserting listing: %w", err)
	}

	res := &Result{ListingID: l.ID, Outcome: OutcomeAdded}

	match, err := d.findFuzzyDuplicate(ctx, l)
	if err != nil {
		return nil, err
	}
	if match != "" {
		if err := d.store.SetDuplicateOf(ctx, l.ID, match); err != nil {
			return nil, fmt.Errorf("flagging duplicate: %w", err)
		}
		metrics.FuzzyDuplicatesTotal.Inc()
		res.FlaggedDuplicateOf = match
		d.logger.Info("flagged probable duplicate for review",
			"listing_id", l.ID, "duplicate_of", match)
	}

	return res, nil
}

func (d *Deduplicator) merge(
	ctx context.Context,
	existing, incoming *domain.Listing,
	capturedAt time.Time,
) (*Result, error) {
	out := d.resolver.Merge(existing, incoming, capturedAt)

	escalated := false
	for _, c := range out.Conflicts {
		if !c.Resolved() {
			open, err := d.store.HasOpenConflict(ctx, existing.ID, c.Field)
			if err != nil {
				return nil, fmt.Errorf("checking open conflict: %w", err)
			}
			if open {
				continue
			}
		}
		conflict := c
		if err := d.store.CreateConflict(ctx, &conflict); err != nil {
			return nil, fmt.Errorf("creating conflict: %w", err)
		}
		metrics.ConflictRecordsTotal.Inc()
		if conflict.Resolved() {
			d.logger.Info("merge auto-resolved field divergence",
				"listing_id", existing.ID, "field", c.Field)
		} else {
			escalated = true
			d.logger.Warn("merge escalated conflict",
				"listing_id", existing.ID, "field", c.Field)
		}
	}

	if out.PriceChanged {
		pc := &domain.PriceChange{
			ListingID:  existing.ID,
			OldPrice:   out.OldPrice,
			NewPrice:   out.NewPrice,
			ObservedAt: capturedAt,
		}
		if err := d.store.InsertPriceChange(ctx, pc); err != nil {
			return nil, fmt.Errorf("recording price change: %w", err)
		}
	}

	if out.Changed {
		if capturedAt.After(existing.UpdatedAt) {
			existing.UpdatedAt = capturedAt
		}
		if err := d.store.UpdateListing(ctx, existing); err != nil {
			return nil, fmt.Errorf("updating merged listing: %w", err)
		}
	}

	outcome := OutcomeMerged
	if escalated {
		outcome = OutcomeConflicted
	}

	return &Result{ListingID: existing.ID, Outcome: outcome}, nil
}

// buildListing normalizes a raw record into listing shape: price
// normalization, title parsing, canonical identity.
func (d *Deduplicator) buildListing(raw domain.RawRecord) (*domain.Listing, time.Time, error) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil, time.Time{}, &ValidationError{Field: "title", Reason: "is required"}
	}

	capturedAt := raw.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = d.nowFunc()
	}

	l := &domain.Listing{
		CanonicalURL: CanonicalURL(raw.URL),
		Title:        title,
		RawPriceText: raw.RawPrice,
		Location:     strings.TrimSpace(raw.Location),
		Seller:       strings.TrimSpace(raw.Seller),
		Source:       strings.TrimSpace(raw.Source),
		Photos:       raw.Photos,
		Make:         raw.Make,
		Model:        raw.Model,
		Year:         raw.Year,
		Status:       domain.StatusPending,
		Analysis:     raw.Analysis,
		AddedAt:      capturedAt,
		UpdatedAt:    capturedAt,
	}

	if price, ok := pricenorm.Normalize(raw.RawPrice); ok {
		l.NormalizedPrice = &price
	}

	parsed := titleparse.Parse(title)
	if l.Make == "" {
		l.Make = parsed.Make
	}
	if l.Model == "" {
		l.Model = parsed.Model
	}
	if l.Year == nil && parsed.HasYear() {
		y := parsed.Year
		l.Year = &y
	}

	l.CanonicalKey = CanonicalKey(raw.URL, title, l.NormalizedPrice, l.Location)

	switch {
	case l.Analysis != nil:
		l.Status = domain.StatusAnalyzed
	case l.HasPrice() && l.Make != "":
		l.Status = domain.StatusComplete
	}

	return l, capturedAt, nil
}

// findFuzzyDuplicate scans active listings with the same parsed make for a
// near-duplicate: similar title, price within tolerance, compatible
// locality. Suspects are linked for review, never auto-merged.
func (d *Deduplicator) findFuzzyDuplicate(ctx context.Context, l *domain.Listing) (string, error) {
	if l.NormalizedPrice == nil || d.cfg.TitleSimilarity <= 0 {
		return "", nil
	}

	q := &store.ListingQuery{Limit: 500}
	if l.Make != "" {
		q.Make = &l.Make
	}
	candidates, _, err := d.store.ListListings(ctx, q)
	if err != nil {
		return "", fmt.Errorf("scanning for near-duplicates: %w", err)
	}

	loc := normalizeText(l.Location)
	for _, c := range candidates {
		if c.ID == l.ID || c.NormalizedPrice == nil {
			continue
		}
		if !priceWithinTolerance(*l.NormalizedPrice, *c.NormalizedPrice, d.cfg.PriceTolerance) {
			continue
		}
		cLoc := normalizeText(c.Location)
		if loc != "" && cLoc != "" && loc != cLoc {
			continue
		}
		if TitleSimilarity(l.Title, c.Title) >= d.cfg.TitleSimilarity {
			return c.ID, nil
		}
	}

	return "", nil
}

func priceWithinTolerance(a, b, tolerance float64) bool {
	larger := max(a, b)
	if larger == 0 {
		return true
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance*larger
}

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// MemoryStore implements Store with plain maps behind a mutex. It backs the
// "memory" database driver for single-node use and makes engine and handler
// tests run without Postgres.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes WithTx calls

	listings     map[string]*domain.Listing // by id
	byKey        map[string]string          // canonical key → id
	conflicts    map[string]*domain.ConflictRecord
	priceChanges map[string][]domain.PriceChange // by listing id
	trends       map[string]*domain.MarketTrend  // by lowercase make
	jobRuns      map[string]*domain.JobRun

	nowFunc func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings:     make(map[string]*domain.Listing),
		byKey:        make(map[string]string),
		conflicts:    make(map[string]*domain.ConflictRecord),
		priceChanges: make(map[string][]domain.PriceChange),
		trends:       make(map[string]*domain.MarketTrend),
		jobRuns:      make(map[string]*domain.JobRun),
		nowFunc:      time.Now,
	}
}

// SetNowFunc overrides the clock; tests only.
func (s *MemoryStore) SetNowFunc(f func() time.Time) {
	s.nowFunc = f
}

// InsertListing stores a new listing, assigning an ID when absent.
func (s *MemoryStore) InsertListing(_ context.Context, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	cp := cloneListing(l)
	s.listings[l.ID] = cp
	if l.CanonicalKey != "" {
		s.byKey[l.CanonicalKey] = l.ID
	}
	return nil
}

// UpdateListing replaces a stored listing by ID.
func (s *MemoryStore) UpdateListing(_ context.Context, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.listings[l.ID]
	if !ok {
		return ErrNotFound
	}
	if old.CanonicalKey != "" && old.CanonicalKey != l.CanonicalKey {
		delete(s.byKey, old.CanonicalKey)
	}
	s.listings[l.ID] = cloneListing(l)
	if l.CanonicalKey != "" {
		s.byKey[l.CanonicalKey] = l.ID
	}
	return nil
}

// GetListing retrieves a listing by ID.
func (s *MemoryStore) GetListing(_ context.Context, id string) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneListing(l), nil
}

// GetListingByKey retrieves a listing by canonical key.
func (s *MemoryStore) GetListingByKey(_ context.Context, key string) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneListing(s.listings[id]), nil
}

// ListListings queries listings with filters, returning results and the
// total match count before limit/offset.
func (s *MemoryStore) ListListings(_ context.Context, opts *ListingQuery) ([]domain.Listing, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if opts == nil {
		opts = &ListingQuery{}
	}

	var matches []domain.Listing
	for _, l := range s.listings {
		if matchesQuery(l, opts) {
			matches = append(matches, *cloneListing(l))
		}
	}

	sortListings(matches, opts.OrderBy)

	total := len(matches)
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	start := opts.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return matches[start:end], total, nil
}

func matchesQuery(l *domain.Listing, opts *ListingQuery) bool {
	if !opts.IncludeDuplicates && l.DuplicateOf != "" {
		return false
	}
	if opts.Make != nil && !strings.EqualFold(l.Make, *opts.Make) {
		return false
	}
	if opts.Status != nil && string(l.Status) != *opts.Status {
		return false
	}
	if opts.Recommendation != nil {
		if l.Analysis == nil || string(l.Analysis.Recommendation) != *opts.Recommendation {
			return false
		}
	}
	if opts.MinPrice != nil && (l.NormalizedPrice == nil || *l.NormalizedPrice < *opts.MinPrice) {
		return false
	}
	if opts.MaxPrice != nil && (l.NormalizedPrice == nil || *l.NormalizedPrice > *opts.MaxPrice) {
		return false
	}
	return true
}

func sortListings(ls []domain.Listing, orderBy string) {
	switch orderBy {
	case "price":
		sort.SliceStable(ls, func(i, j int) bool {
			pi, pj := ls[i].NormalizedPrice, ls[j].NormalizedPrice
			switch {
			case pi == nil:
				return false
			case pj == nil:
				return true
			default:
				return *pi < *pj
			}
		})
	case "updated_at":
		sort.SliceStable(ls, func(i, j int) bool {
			return ls[i].UpdatedAt.After(ls[j].UpdatedAt)
		})
	default: // added_at, newest first
		sort.SliceStable(ls, func(i, j int) bool {
			return ls[i].AddedAt.After(ls[j].AddedAt)
		})
	}
}

// UpdateAnalysis sets the analysis result and status for a listing.
func (s *MemoryStore) UpdateAnalysis(
	_ context.Context,
	id string,
	a *domain.AnalysisResult,
	status domain.Status,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return ErrNotFound
	}
	l.Analysis = a
	l.Status = status
	l.UpdatedAt = s.nowFunc()
	return nil
}

// SetDuplicateOf soft-flags a listing as a probable duplicate.
func (s *MemoryStore) SetDuplicateOf(_ context.Context, id, duplicateOfID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return ErrNotFound
	}
	l.DuplicateOf = duplicateOfID
	l.UpdatedAt = s.nowFunc()
	return nil
}

// ClearDuplicateOf removes the duplicate flag after manual review.
func (s *MemoryStore) ClearDuplicateOf(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return ErrNotFound
	}
	l.DuplicateOf = ""
	l.UpdatedAt = s.nowFunc()
	return nil
}

// ListDuplicates returns listings flagged for duplicate review.
func (s *MemoryStore) ListDuplicates(_ context.Context) ([]domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Listing
	for _, l := range s.listings {
		if l.DuplicateOf != "" {
			out = append(out, *cloneListing(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

// ListAnalyzablePrices returns prices of active listings, optionally by make.
func (s *MemoryStore) ListAnalyzablePrices(_ context.Context, make string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []float64
	for _, l := range s.listings {
		if l.DuplicateOf != "" || !l.HasPrice() {
			continue
		}
		if make != "" && !strings.EqualFold(l.Make, make) {
			continue
		}
		out = append(out, *l.NormalizedPrice)
	}
	return out, nil
}

// ListMakes returns the distinct parsed makes across active listings.
func (s *MemoryStore) ListMakes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]string)
	for _, l := range s.listings {
		if l.Make != "" && l.DuplicateOf == "" {
			seen[strings.ToLower(l.Make)] = l.Make
		}
	}

	out := make([]string, 0, len(seen))
	for _, m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// CreateConflict stores a new conflict record.
func (s *MemoryStore) CreateConflict(_ context.Context, c *domain.ConflictRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[c.ListingID]; !ok {
		return ErrNotFound
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.nowFunc()
	}
	cp := *c
	cp.Candidates = append([]domain.FieldCandidate(nil), c.Candidates...)
	s.conflicts[c.ID] = &cp
	return nil
}

// ListConflicts returns conflict records, optionally for one listing and
// optionally open-only.
func (s *MemoryStore) ListConflicts(_ context.Context, listingID string, openOnly bool) ([]domain.ConflictRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ConflictRecord
	for _, c := range s.conflicts {
		if listingID != "" && c.ListingID != listingID {
			continue
		}
		if openOnly && c.Resolved() {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ResolveConflict marks a conflict resolved with the chosen value.
func (s *MemoryStore) ResolveConflict(_ context.Context, id, resolvedValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conflicts[id]
	if !ok {
		return ErrNotFound
	}
	now := s.nowFunc()
	c.ResolvedValue = resolvedValue
	c.ResolvedAt = &now
	return nil
}

// HasOpenConflict reports whether an unresolved conflict exists for the
// listing field. Keeps repeated imports from stacking duplicates.
func (s *MemoryStore) HasOpenConflict(_ context.Context, listingID, field string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.conflicts {
		if c.ListingID == listingID && c.Field == field && !c.Resolved() {
			return true, nil
		}
	}
	return false, nil
}

// InsertPriceChange appends a price transition for a listing.
func (s *MemoryStore) InsertPriceChange(_ context.Context, pc *domain.PriceChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pc.ID == "" {
		pc.ID = uuid.NewString()
	}
	if pc.ObservedAt.IsZero() {
		pc.ObservedAt = s.nowFunc()
	}
	s.priceChanges[pc.ListingID] = append(s.priceChanges[pc.ListingID], *pc)
	return nil
}

// ListPriceChanges returns the price history for a listing, oldest first.
func (s *MemoryStore) ListPriceChanges(_ context.Context, listingID string) ([]domain.PriceChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.PriceChange(nil), s.priceChanges[listingID]...)
	return out, nil
}

// UpsertTrend replaces the trend snapshot for a make.
func (s *MemoryStore) UpsertTrend(_ context.Context, t *domain.MarketTrend) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.trends[strings.ToLower(t.Make)] = cloneTrend(t)
	return nil
}

// ListTrends returns all trend snapshots, sorted by make.
func (s *MemoryStore) ListTrends(_ context.Context) ([]domain.MarketTrend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.MarketTrend, 0, len(s.trends))
	for _, t := range s.trends {
		out = append(out, *cloneTrend(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Make < out[j].Make })
	return out, nil
}

// InsertJobRun records the start of a scheduled job execution.
func (s *MemoryStore) InsertJobRun(_ context.Context, jobName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.jobRuns[id] = &domain.JobRun{
		ID:        id,
		JobName:   jobName,
		StartedAt: s.nowFunc(),
		Status:    "running",
	}
	return id, nil
}

// CompleteJobRun finalizes a job run.
func (s *MemoryStore) CompleteJobRun(_ context.Context, id, status, errText string, rowsAffected int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jr, ok := s.jobRuns[id]
	if !ok {
		return ErrNotFound
	}
	now := s.nowFunc()
	jr.CompletedAt = &now
	jr.Status = status
	jr.ErrorText = errText
	jr.RowsAffected = &rowsAffected
	return nil
}

// ListJobRuns returns recent runs of a job, newest first.
func (s *MemoryStore) ListJobRuns(_ context.Context, jobName string, limit int) ([]domain.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.JobRun
	for _, jr := range s.jobRuns {
		if jobName == "" || jr.JobName == jobName {
			out = append(out, *jr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetSystemState computes aggregate dataset counts.
func (s *MemoryStore) GetSystemState(_ context.Context) (*domain.SystemState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &domain.SystemState{TrendSnapshotsHeld: len(s.trends)}
	for _, l := range s.listings {
		st.ListingsTotal++
		if l.DuplicateOf != "" {
			st.DuplicatesFlagged++
		}
		switch l.Status {
		case domain.StatusPending:
			st.ListingsPending++
		case domain.StatusComplete:
			st.ListingsComplete++
		case domain.StatusAnalyzed:
			st.ListingsAnalyzed++
		}
	}
	for _, c := range s.conflicts {
		if !c.Resolved() {
			st.ConflictsOpen++
		}
	}
	return st, nil
}

// WithTx runs fn against the store, restoring the pre-transaction state when
// fn returns an error. Transactions serialize against each other; fn uses
// the store it is handed for every access.
func (s *MemoryStore) WithTx(_ context.Context, fn func(Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	listings     map[string]*domain.Listing
	byKey        map[string]string
	conflicts    map[string]*domain.ConflictRecord
	priceChanges map[string][]domain.PriceChange
	trends       map[string]*domain.MarketTrend
	jobRuns      map[string]*domain.JobRun
}

func (s *MemoryStore) snapshot() *memSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &memSnapshot{
		listings:     make(map[string]*domain.Listing, len(s.listings)),
		byKey:        make(map[string]string, len(s.byKey)),
		conflicts:    make(map[string]*domain.ConflictRecord, len(s.conflicts)),
		priceChanges: make(map[string][]domain.PriceChange, len(s.priceChanges)),
		trends:       make(map[string]*domain.MarketTrend, len(s.trends)),
		jobRuns:      make(map[string]*domain.JobRun, len(s.jobRuns)),
	}
	for id, l := range s.listings {
		snap.listings[id] = cloneListing(l)
	}
	for k, id := range s.byKey {
		snap.byKey[k] = id
	}
	for id, c := range s.conflicts {
		snap.conflicts[id] = cloneConflict(c)
	}
	for id, pcs := range s.priceChanges {
		snap.priceChanges[id] = append([]domain.PriceChange(nil), pcs...)
	}
	for mk, t := range s.trends {
		snap.trends[mk] = cloneTrend(t)
	}
	for id, jr := range s.jobRuns {
		snap.jobRuns[id] = cloneJobRun(jr)
	}
	return snap
}

func (s *MemoryStore) restore(snap *memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listings = snap.listings
	s.byKey = snap.byKey
	s.conflicts = snap.conflicts
	s.priceChanges = snap.priceChanges
	s.trends = snap.trends
	s.jobRuns = snap.jobRuns
}

// Migrate is a no-op for the in-memory store.
func (s *MemoryStore) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func cloneConflict(c *domain.ConflictRecord) *domain.ConflictRecord {
	cp := *c
	cp.Candidates = append([]domain.FieldCandidate(nil), c.Candidates...)
	if c.ResolvedAt != nil {
		at := *c.ResolvedAt
		cp.ResolvedAt = &at
	}
	return &cp
}

func cloneTrend(t *domain.MarketTrend) *domain.MarketTrend {
	cp := *t
	if t.MedianDeltaPercent != nil {
		v := *t.MedianDeltaPercent
		cp.MedianDeltaPercent = &v
	}
	return &cp
}

func cloneJobRun(jr *domain.JobRun) *domain.JobRun {
	cp := *jr
	if jr.CompletedAt != nil {
		at := *jr.CompletedAt
		cp.CompletedAt = &at
	}
	if jr.RowsAffected != nil {
		n := *jr.RowsAffected
		cp.RowsAffected = &n
	}
	return &cp
}

func cloneListing(l *domain.Listing) *domain.Listing {
	cp := *l
	cp.Photos = append([]string(nil), l.Photos...)
	if l.NormalizedPrice != nil {
		v := *l.NormalizedPrice
		cp.NormalizedPrice = &v
	}
	if l.Year != nil {
		y := *l.Year
		cp.Year = &y
	}
	if l.Analysis != nil {
		a := *l.Analysis
		cp.Analysis = &a
	}
	return &cp
}

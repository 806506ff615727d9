// Package store defines the datastore abstraction for pwc-deal-tracker.
// All business logic depends on the Store interface, never on concrete
// implementations. Two implementations exist: PostgresStore (pgx) for
// durable deployments and MemoryStore for single-node use and tests.
package store

import (
	"context"
	"errors"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ListingQuery defines optional filters for listing queries.
type ListingQuery struct {
	Make           *string
	Status         *string
	Recommendation *string
	MinPrice       *float64
	MaxPrice       *float64
	// IncludeDuplicates also returns listings soft-flagged via duplicate_of;
	// default false keeps them out of the active set.
	IncludeDuplicates bool
	Limit             int // default 50
	Offset            int
	OrderBy           string // "price", "added_at", "updated_at"
}

// Store defines all data access operations for pwc-deal-tracker.
//
// Every write method is atomic per call: a failure leaves the store exactly
// as it was, so callers can apply batches record by record and report
// partial outcomes without partial writes.
type Store interface {
	// Listings
	InsertListing(ctx context.Context, l *domain.Listing) error
	UpdateListing(ctx context.Context, l *domain.Listing) error
	GetListing(ctx context.Context, id string) (*domain.Listing, error)
	GetListingByKey(ctx context.Context, canonicalKey string) (*domain.Listing, error)
	ListListings(ctx context.Context, opts *ListingQuery) ([]domain.Listing, int, error)
	UpdateAnalysis(ctx context.Context, id string, a *domain.AnalysisResult, status domain.Status) error
	SetDuplicateOf(ctx context.Context, id, duplicateOfID string) error
	ClearDuplicateOf(ctx context.Context, id string) error
	ListDuplicates(ctx context.Context) ([]domain.Listing, error)
	// ListAnalyzablePrices returns normalized prices of non-duplicate
	// listings, optionally restricted to a make. Used for the statistical
	// fallback and trend aggregation.
	ListAnalyzablePrices(ctx context.Context, make string) ([]float64, error)
	ListMakes(ctx context.Context) ([]string, error)

	// Conflicts
	CreateConflict(ctx context.Context, c *domain.ConflictRecord) error
	ListConflicts(ctx context.Context, listingID string, openOnly bool) ([]domain.ConflictRecord, error)
	ResolveConflict(ctx context.Context, id, resolvedValue string) error
	HasOpenConflict(ctx context.Context, listingID, field string) (bool, error)

	// Price history
	InsertPriceChange(ctx context.Context, pc *domain.PriceChange) error
	ListPriceChanges(ctx context.Context, listingID string) ([]domain.PriceChange, error)

	// Trends
	UpsertTrend(ctx context.Context, t *domain.MarketTrend) error
	ListTrends(ctx context.Context) ([]domain.MarketTrend, error)

	// Scheduler
	InsertJobRun(ctx context.Context, jobName string) (id string, err error)
	CompleteJobRun(ctx context.Context, id string, status string, errText string, rowsAffected int) error
	ListJobRuns(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error)

	// Transactions
	// WithTx runs fn against a transactional view of the store: a nil
	// return commits, any error rolls every write inside fn back.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Aggregates
	GetSystemState(ctx context.Context) (*domain.SystemState, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}

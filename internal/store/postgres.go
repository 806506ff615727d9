package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

const defaultPoolSize = 10

// pgxConn is the query surface shared by *pgxpool.Pool and pgx.Tx, so the
// same methods serve both pooled and transactional execution.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
//
// TODO(test): PostgresStore methods require live Postgres, tested via integration tests.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   pgxConn
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool, db: pool}, nil
}

// WithTx runs fn against a transactional view of the store. A nil return
// commits; any error rolls every write back.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&PostgresStore{pool: s.pool, db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// InsertListing inserts a new listing and populates its generated ID.
func (s *PostgresStore) InsertListing(ctx context.Context, l *domain.Listing) error {
	args, err := listingArgs(l)
	if err != nil {
		return err
	}

	if err := s.db.QueryRow(ctx, queryInsertListing, args).Scan(&l.ID); err != nil {
		return fmt.Errorf("inserting listing: %w", err)
	}
	return nil
}

// UpdateListing replaces a stored listing by ID.
func (s *PostgresStore) UpdateListing(ctx context.Context, l *domain.Listing) error {
	args, err := listingArgs(l)
	if err != nil {
		return err
	}
	args["id"] = l.ID

	tag, err := s.db.Exec(ctx, queryUpdateListing, args)
	if err != nil {
		return fmt.Errorf("updating listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetListing retrieves a listing by its internal UUID.
func (s *PostgresStore) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	l := &domain.Listing{}
	if err := scanListing(s.db.QueryRow(ctx, queryGetListingByID, id), l); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting listing: %w", err)
	}
	return l, nil
}

// GetListingByKey retrieves a listing by its canonical dedup key.
func (s *PostgresStore) GetListingByKey(ctx context.Context, key string) (*domain.Listing, error) {
	l := &domain.Listing{}
	if err := scanListing(s.db.QueryRow(ctx, queryGetListingByKey, key), l); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting listing by key: %w", err)
	}
	return l, nil
}

// ListListings queries listings with optional filters, returning results and total count.
func (s *PostgresStore) ListListings(
	ctx context.Context,
	opts *ListingQuery,
) ([]domain.Listing, int, error) {
	if opts == nil {
		opts = &ListingQuery{}
	}
	dataSQL, countSQL, args := opts.ToSQL()

	// Get total count.
	var total int
	if err := s.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting listings: %w", err)
	}

	// Get data rows.
	listings, err := s.queryListings(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}

	return listings, total, nil
}

// UpdateAnalysis sets the analysis result and status for a listing.
func (s *PostgresStore) UpdateAnalysis(
	ctx context.Context,
	id string,
	a *domain.AnalysisResult,
	status domain.Status,
) error {
	analysisJSON, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling analysis: %w", err)
	}

	tag, err := s.db.Exec(ctx, queryUpdateAnalysis, id, analysisJSON, string(status))
	if err != nil {
		return fmt.Errorf("updating analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDuplicateOf soft-flags a listing as a probable duplicate of another.
func (s *PostgresStore) SetDuplicateOf(ctx context.Context, id, duplicateOfID string) error {
	tag, err := s.db.Exec(ctx, querySetDuplicateOf, id, duplicateOfID)
	if err != nil {
		return fmt.Errorf("setting duplicate flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearDuplicateOf removes the duplicate flag after manual review.
func (s *PostgresStore) ClearDuplicateOf(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, queryClearDuplicateOf, id)
	if err != nil {
		return fmt.Errorf("clearing duplicate flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDuplicates returns listings flagged for duplicate review.
func (s *PostgresStore) ListDuplicates(ctx context.Context) ([]domain.Listing, error) {
	return s.queryListings(ctx, queryListDuplicates)
}

// ListAnalyzablePrices returns prices of active listings, optionally filtered by make.
func (s *PostgresStore) ListAnalyzablePrices(ctx context.Context, make string) ([]float64, error) {
	rows, err := s.db.Query(ctx, queryListAnalyzablePrices, make)
	if err != nil {
		return nil, fmt.Errorf("querying analyzable prices: %w", err)
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning price: %w", err)
		}
		prices = append(prices, p)
	}

	return prices, rows.Err()
}

// ListMakes returns the distinct parsed makes across active listings.
func (s *PostgresStore) ListMakes(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, queryListMakes)
	if err != nil {
		return nil, fmt.Errorf("querying makes: %w", err)
	}
	defer rows.Close()

	var makes []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scanning make: %w", err)
		}
		makes = append(makes, m)
	}

	return makes, rows.Err()
}

// CreateConflict stores a new conflict record and populates its generated ID.
func (s *PostgresStore) CreateConflict(ctx context.Context, c *domain.ConflictRecord) error {
	candidatesJSON, err := json.Marshal(c.Candidates)
	if err != nil {
		return fmt.Errorf("marshaling candidates: %w", err)
	}

	args := pgx.NamedArgs{
		"listing_id":     c.ListingID,
		"field":          c.Field,
		"candidates":     candidatesJSON,
		"resolved_value": c.ResolvedValue,
		"resolved_at":    c.ResolvedAt,
		"created_at":     c.CreatedAt,
	}

	if err := s.db.QueryRow(ctx, queryCreateConflict, args).Scan(&c.ID); err != nil {
		return fmt.Errorf("creating conflict: %w", err)
	}
	return nil
}

// ListConflicts returns conflict records, optionally for one listing and optionally open-only.
func (s *PostgresStore) ListConflicts(
	ctx context.Context,
	listingID string,
	openOnly bool,
) ([]domain.ConflictRecord, error) {
	rows, err := s.db.Query(ctx, queryListConflicts, listingID, openOnly)
	if err != nil {
		return nil, fmt.Errorf("querying conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []domain.ConflictRecord
	for rows.Next() {
		var c domain.ConflictRecord
		var candidatesJSON []byte

		if err := rows.Scan(
			&c.ID, &c.ListingID, &c.Field, &candidatesJSON,
			&c.ResolvedValue, &c.ResolvedAt, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning conflict: %w", err)
		}

		if err := json.Unmarshal(candidatesJSON, &c.Candidates); err != nil {
			return nil, fmt.Errorf("unmarshaling conflict candidates: %w", err)
		}

		conflicts = append(conflicts, c)
	}

	return conflicts, rows.Err()
}

// ResolveConflict marks a conflict resolved with the chosen value.
func (s *PostgresStore) ResolveConflict(ctx context.Context, id, resolvedValue string) error {
	tag, err := s.db.Exec(ctx, queryResolveConflict, id, resolvedValue)
	if err != nil {
		return fmt.Errorf("resolving conflict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasOpenConflict reports whether an unresolved conflict exists for the listing field.
func (s *PostgresStore) HasOpenConflict(ctx context.Context, listingID, field string) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, queryHasOpenConflict, listingID, field).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking open conflict: %w", err)
	}
	return exists, nil
}

// InsertPriceChange appends a price transition for a listing.
func (s *PostgresStore) InsertPriceChange(ctx context.Context, pc *domain.PriceChange) error {
	err := s.db.QueryRow(ctx, queryInsertPriceChange,
		pc.ListingID, pc.OldPrice, pc.NewPrice, pc.ObservedAt,
	).Scan(&pc.ID)
	if err != nil {
		return fmt.Errorf("inserting price change: %w", err)
	}
	return nil
}

// ListPriceChanges returns the price history for a listing, oldest first.
func (s *PostgresStore) ListPriceChanges(
	ctx context.Context,
	listingID string,
) ([]domain.PriceChange, error) {
	rows, err := s.db.Query(ctx, queryListPriceChanges, listingID)
	if err != nil {
		return nil, fmt.Errorf("querying price changes: %w", err)
	}
	defer rows.Close()

	var changes []domain.PriceChange
	for rows.Next() {
		var pc domain.PriceChange
		if err := rows.Scan(
			&pc.ID, &pc.ListingID, &pc.OldPrice, &pc.NewPrice, &pc.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning price change: %w", err)
		}
		changes = append(changes, pc)
	}

	return changes, rows.Err()
}

// UpsertTrend replaces the trend snapshot for a make.
func (s *PostgresStore) UpsertTrend(ctx context.Context, t *domain.MarketTrend) error {
	args := pgx.NamedArgs{
		"make":                 t.Make,
		"sample_count":         t.SampleCount,
		"median_price":         t.MedianPrice,
		"p25":                  t.P25,
		"p75":                  t.P75,
		"median_delta_percent": t.MedianDeltaPercent,
		"computed_at":          t.ComputedAt,
	}

	if err := s.db.QueryRow(ctx, queryUpsertTrend, args).Scan(&t.ID); err != nil {
		return fmt.Errorf("upserting trend: %w", err)
	}
	return nil
}

// ListTrends returns all trend snapshots, sorted by make.
func (s *PostgresStore) ListTrends(ctx context.Context) ([]domain.MarketTrend, error) {
	rows, err := s.db.Query(ctx, queryListTrends)
	if err != nil {
		return nil, fmt.Errorf("querying trends: %w", err)
	}
	defer rows.Close()

	var trends []domain.MarketTrend
	for rows.Next() {
		var t domain.MarketTrend
		if err := rows.Scan(
			&t.ID, &t.Make, &t.SampleCount, &t.MedianPrice, &t.P25, &t.P75,
			&t.MedianDeltaPercent, &t.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning trend: %w", err)
		}
		trends = append(trends, t)
	}

	return trends, rows.Err()
}

// InsertJobRun records the start of a scheduled job and returns its UUID.
func (s *PostgresStore) InsertJobRun(ctx context.Context, jobName string) (string, error) {
	var id string
	if err := s.db.QueryRow(ctx, queryInsertJobRun, jobName).Scan(&id); err != nil {
		return "", fmt.Errorf("inserting job run: %w", err)
	}
	return id, nil
}

// CompleteJobRun marks a job run as finished with the given status and metadata.
func (s *PostgresStore) CompleteJobRun(
	ctx context.Context,
	id string,
	status string,
	errText string,
	rowsAffected int,
) error {
	_, err := s.db.Exec(ctx, queryCompleteJobRun, id, status, errText, rowsAffected)
	if err != nil {
		return fmt.Errorf("completing job run: %w", err)
	}
	return nil
}

// ListJobRuns returns the most recent runs for a specific job, newest first.
func (s *PostgresStore) ListJobRuns(
	ctx context.Context,
	jobName string,
	limit int,
) ([]domain.JobRun, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.db.Query(ctx, queryListJobRuns, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying job runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.JobRun
	for rows.Next() {
		var r domain.JobRun
		if err := rows.Scan(
			&r.ID, &r.JobName, &r.StartedAt, &r.CompletedAt,
			&r.Status, &r.ErrorText, &r.RowsAffected,
		); err != nil {
			return nil, fmt.Errorf("scanning job run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetSystemState computes aggregate dataset counts in one round trip.
func (s *PostgresStore) GetSystemState(ctx context.Context) (*domain.SystemState, error) {
	st := &domain.SystemState{}
	if err := s.db.QueryRow(ctx, querySystemState).Scan(
		&st.ListingsTotal, &st.ListingsPending, &st.ListingsComplete, &st.ListingsAnalyzed,
		&st.ConflictsOpen, &st.DuplicatesFlagged, &st.TrendSnapshotsHeld,
	); err != nil {
		return nil, fmt.Errorf("querying system state: %w", err)
	}
	return st, nil
}

// queryListings is a helper for queries returning full listing rows.
func (s *PostgresStore) queryListings(
	ctx context.Context,
	query string,
	args ...any,
) ([]domain.Listing, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		if err := scanListing(rows, &l); err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, l)
	}

	return listings, rows.Err()
}

// listingArgs builds the named arguments shared by insert and update.
func listingArgs(l *domain.Listing) (pgx.NamedArgs, error) {
	photosJSON, err := json.Marshal(l.Photos)
	if err != nil {
		return nil, fmt.Errorf("marshaling photos: %w", err)
	}

	var analysisJSON []byte
	if l.Analysis != nil {
		analysisJSON, err = json.Marshal(l.Analysis)
		if err != nil {
			return nil, fmt.Errorf("marshaling analysis: %w", err)
		}
	}

	return pgx.NamedArgs{
		"canonical_key":    l.CanonicalKey,
		"canonical_url":    l.CanonicalURL,
		"title":            l.Title,
		"raw_price_text":   l.RawPriceText,
		"normalized_price": l.NormalizedPrice,
		"location":         l.Location,
		"seller":           l.Seller,
		"source":           l.Source,
		"photos":           photosJSON,
		"make":             l.Make,
		"model":            l.Model,
		"year":             l.Year,
		"status":           string(l.Status),
		"duplicate_of":     l.DuplicateOf,
		"analysis":         analysisJSON,
		"added_at":         l.AddedAt,
		"updated_at":       l.UpdatedAt,
	}, nil
}

// scannable abstracts pgx.Row and pgx.Rows for reuse.
type scannable interface {
	Scan(dest ...any) error
}

// scanListing scans a full listing row.
func scanListing(row scannable, l *domain.Listing) error {
	var photosJSON, analysisJSON []byte

	if err := row.Scan(
		&l.ID, &l.CanonicalKey, &l.CanonicalURL, &l.Title,
		&l.RawPriceText, &l.NormalizedPrice, &l.Location, &l.Seller, &l.Source,
		&photosJSON, &l.Make, &l.Model, &l.Year,
		&l.Status, &l.DuplicateOf, &analysisJSON, &l.AddedAt, &l.UpdatedAt,
	); err != nil {
		return err
	}

	if len(photosJSON) > 0 {
		if err := json.Unmarshal(photosJSON, &l.Photos); err != nil {
			return fmt.Errorf("unmarshaling photos: %w", err)
		}
	}
	if len(analysisJSON) > 0 {
		l.Analysis = &domain.AnalysisResult{}
		if err := json.Unmarshal(analysisJSON, l.Analysis); err != nil {
			return fmt.Errorf("unmarshaling analysis: %w", err)
		}
	}

	return nil
}

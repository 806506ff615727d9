package store

// SQL query constants organized by entity.
// All SQL lives here — PostgresStore methods reference these constants.

// Listing queries.
const (
	queryInsertListing = `
		INSERT INTO listings (
			canonical_key, canonical_url, title, raw_price_text, normalized_price,
			location, seller, source, photos, make, model, year,
			status, duplicate_of, analysis, added_at, updated_at
		) VALUES (
			@canonical_key, @canonical_url, @title, @raw_price_text, @normalized_price,
			@location, @seller, @source, @photos, @make, @model, @year,
			@status, @duplicate_of, @analysis, @added_at, @updated_at
		)
		RETURNING id`

	queryUpdateListing = `
		UPDATE listings SET
			canonical_key = @canonical_key,
			canonical_url = @canonical_url,
			title = @title,
			raw_price_text = @raw_price_text,
			normalized_price = @normalized_price,
			location = @location,
			seller = @seller,
			source = @source,
			photos = @photos,
			make = @make,
			model = @model,
			year = @year,
			status = @status,
			duplicate_of = @duplicate_of,
			analysis = @analysis,
			updated_at = @updated_at
		WHERE id = @id`

	queryGetListingByID = baseListingsSelect + `
		WHERE id = $1`

	queryGetListingByKey = baseListingsSelect + `
		WHERE canonical_key = $1`

	queryUpdateAnalysis = `
		UPDATE listings SET
			analysis = $2,
			status = $3,
			updated_at = now()
		WHERE id = $1`

	querySetDuplicateOf = `
		UPDATE listings SET
			duplicate_of = $2,
			updated_at = now()
		WHERE id = $1`

	queryClearDuplicateOf = `
		UPDATE listings SET
			duplicate_of = '',
			updated_at = now()
		WHERE id = $1`

	queryListDuplicates = baseListingsSelect + `
		WHERE COALESCE(duplicate_of, '') <> ''
		ORDER BY added_at ASC`

	queryListAnalyzablePrices = `
		SELECT normalized_price FROM listings
		WHERE normalized_price IS NOT NULL
			AND normalized_price > 0
			AND COALESCE(duplicate_of, '') = ''
			AND ($1 = '' OR LOWER(make) = LOWER($1))`

	queryListMakes = `
		SELECT DISTINCT make FROM listings
		WHERE COALESCE(make, '') <> '' AND COALESCE(duplicate_of, '') = ''
		ORDER BY make ASC`
)

// Conflict queries.
const (
	queryCreateConflict = `
		INSERT INTO conflicts (
			listing_id, field, candidates, resolved_value, resolved_at, created_at
		) VALUES (
			@listing_id, @field, @candidates, @resolved_value, @resolved_at, @created_at
		)
		RETURNING id`

	queryListConflicts = `
		SELECT id, listing_id, field, candidates, COALESCE(resolved_value, ''), resolved_at, created_at
		FROM conflicts
		WHERE ($1 = '' OR listing_id = $1::uuid)
			AND (NOT $2 OR resolved_at IS NULL)
		ORDER BY created_at ASC`

	queryResolveConflict = `
		UPDATE conflicts SET
			resolved_value = $2,
			resolved_at = now()
		WHERE id = $1`

	queryHasOpenConflict = `
		SELECT EXISTS(
			SELECT 1 FROM conflicts
			WHERE listing_id = $1 AND field = $2 AND resolved_at IS NULL
		)`
)

// Price history queries.
const (
	queryInsertPriceChange = `
		INSERT INTO price_changes (
			listing_id, old_price, new_price, observed_at
		) VALUES ($1, $2, $3, $4)
		RETURNING id`

	queryListPriceChanges = `
		SELECT id, listing_id, old_price, new_price, observed_at
		FROM price_changes
		WHERE listing_id = $1
		ORDER BY observed_at ASC`
)

// Trend queries.
const (
	queryUpsertTrend = `
		INSERT INTO market_trends (
			make, sample_count, median_price, p25, p75, median_delta_percent, computed_at
		) VALUES (
			@make, @sample_count, @median_price, @p25, @p75, @median_delta_percent, @computed_at
		)
		ON CONFLICT (make) DO UPDATE SET
			sample_count = EXCLUDED.sample_count,
			median_price = EXCLUDED.median_price,
			p25 = EXCLUDED.p25,
			p75 = EXCLUDED.p75,
			median_delta_percent = EXCLUDED.median_delta_percent,
			computed_at = EXCLUDED.computed_at
		RETURNING id`

	queryListTrends = `
		SELECT id, make, sample_count, median_price, p25, p75, median_delta_percent, computed_at
		FROM market_trends
		ORDER BY make ASC`
)

// Job run queries.
const (
	queryInsertJobRun = `
		INSERT INTO job_runs (job_name, started_at, status)
		VALUES ($1, now(), 'running')
		RETURNING id`

	queryCompleteJobRun = `
		UPDATE job_runs SET
			completed_at = now(),
			status = $2,
			error_text = $3,
			rows_affected = $4
		WHERE id = $1`

	queryListJobRuns = `
		SELECT id, job_name, started_at, completed_at, status, COALESCE(error_text, ''), rows_affected
		FROM job_runs
		WHERE ($1 = '' OR job_name = $1)
		ORDER BY started_at DESC
		LIMIT $2`
)

// System state query. One round trip for all dashboard counters.
const querySystemState = `
	SELECT
		(SELECT COUNT(*) FROM listings),
		(SELECT COUNT(*) FROM listings WHERE status = 'pending'),
		(SELECT COUNT(*) FROM listings WHERE status = 'complete'),
		(SELECT COUNT(*) FROM listings WHERE status = 'analyzed'),
		(SELECT COUNT(*) FROM conflicts WHERE resolved_at IS NULL),
		(SELECT COUNT(*) FROM listings WHERE COALESCE(duplicate_of, '') <> ''),
		(SELECT COUNT(*) FROM market_trends)`

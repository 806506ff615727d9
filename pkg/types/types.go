// Package domain defines the core business types for pwc-deal-tracker.
package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Status represents the processing state of a listing.
type Status string

// Status constants. A listing advances Pending → Complete → Analyzed and
// never regresses as a side effect of a merge; only an explicit user edit
// may reopen an analyzed listing.
const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusAnalyzed Status = "analyzed"
)

// Rank returns the ordering of a status for monotonicity checks.
// Unknown statuses rank below Pending.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusComplete:
		return 2
	case StatusAnalyzed:
		return 3
	default:
		return 0
	}
}

// MaxStatus returns the further-along of two statuses.
func MaxStatus(a, b Status) Status {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Recommendation represents the classifier verdict for a listing.
type Recommendation string

// Recommendation constants.
const (
	RecommendBuy      Recommendation = "BUY"
	RecommendConsider Recommendation = "CONSIDER"
	RecommendResearch Recommendation = "RESEARCH"
	RecommendPass     Recommendation = "PASS"
)

// Listing is the canonical deduplicated unit. CanonicalURL is the identity
// key across the live store; ID is assigned on first ingestion and never
// reassigned.
type Listing struct {
	ID           string `json:"id"            db:"id"`
	CanonicalURL string `json:"canonical_url" db:"canonical_url"`
	// CanonicalKey is the dedup identity: the canonical URL when present,
	// else a composite fingerprint. Recomputed on every ingest, never
	// exported.
	CanonicalKey string `json:"-"     db:"canonical_key"`
	Title        string `json:"title" db:"title"`

	// Pricing
	RawPriceText    string   `json:"raw_price_text,omitempty"   db:"raw_price_text"`
	NormalizedPrice *float64 `json:"normalized_price,omitempty" db:"normalized_price"`

	// Capture context
	Location string   `json:"location,omitempty" db:"location"`
	Seller   string   `json:"seller,omitempty"   db:"seller"`
	Source   string   `json:"source,omitempty"   db:"source"`
	Photos   []string `json:"photos,omitempty"   db:"photos"`

	// Parsed identity
	Make  string `json:"make,omitempty"  db:"make"`
	Model string `json:"model,omitempty" db:"model"`
	Year  *int   `json:"year,omitempty"  db:"year"`

	Status      Status `json:"status"                 db:"status"`
	DuplicateOf string `json:"duplicate_of,omitempty" db:"duplicate_of"`

	Analysis *AnalysisResult `json:"analysis,omitempty" db:"analysis"`

	AddedAt   time.Time `json:"added_at"   db:"added_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasPrice reports whether the listing carries a usable normalized price.
func (l *Listing) HasPrice() bool {
	return l.NormalizedPrice != nil && *l.NormalizedPrice > 0
}

// Age returns the listing's age in whole years relative to now, or false
// when the year is unknown.
func (l *Listing) Age(now time.Time) (int, bool) {
	if l.Year == nil || *l.Year <= 0 {
		return 0, false
	}
	age := now.Year() - *l.Year
	if age < 0 {
		age = 0
	}
	return age, true
}

// ReferenceSpec is an immutable reference catalog row keyed by
// (make, model, year). Looked up by the valuation engine, never mutated.
type ReferenceSpec struct {
	Make       string  `json:"make"        db:"make"`
	Model      string  `json:"model"       db:"model"`
	Year       int     `json:"year"        db:"year"`
	Horsepower int     `json:"horsepower"  db:"horsepower"`
	EngineType string  `json:"engine_type" db:"engine_type"`
	MSRP       float64 `json:"msrp"        db:"msrp"`
}

// AnalysisResult is the valuation verdict embedded in a listing.
type AnalysisResult struct {
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	ExpectedPrice  *float64       `json:"expected_price,omitempty"`
	DeltaPercent   *float64       `json:"delta_percent,omitempty"`
	Reasoning      string         `json:"reasoning"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// RawRecord is a single pre-dedup listing record as produced by a capture
// source (scraper, manual entry, sync import). RawPrice may hold a currency
// string, plain digits, or free text; the price normalizer decides what it
// means.
type RawRecord struct {
	URL        string          `json:"url,omitempty"`
	Title      string          `json:"title"`
	RawPrice   string          `json:"raw_price,omitempty"`
	Location   string          `json:"location,omitempty"`
	Seller     string          `json:"seller,omitempty"`
	Source     string          `json:"source,omitempty"`
	Photos     []string        `json:"photos,omitempty"`
	CapturedAt time.Time       `json:"captured_at,omitempty"`
	Make       string          `json:"make,omitempty"`
	Model      string          `json:"model,omitempty"`
	Year       *int            `json:"year,omitempty"`
	Analysis   *AnalysisResult `json:"analysis,omitempty"`

	// Extra preserves source fields this version does not understand, so a
	// round-trip through export/import never drops capture-side additions.
	Extra map[string]any `json:"-"`
}

// rawRecordKnownFields are the JSON keys this version understands; anything
// else lands in Extra.
var rawRecordKnownFields = []string{
	"url", "title", "raw_price", "location", "seller", "source",
	"photos", "captured_at", "make", "model", "year", "analysis",
}

// UnmarshalJSON decodes a raw record, stashing unrecognized fields in Extra.
// Capture sources disagree about whether raw_price is a string or a bare
// number; both decode into RawPrice.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if v, ok := fields["raw_price"]; ok {
		var n float64
		if err := json.Unmarshal(v, &n); err == nil {
			s, _ := json.Marshal(strconv.FormatFloat(n, 'f', -1, 64))
			fields["raw_price"] = s
			if patched, err := json.Marshal(fields); err == nil {
				data = patched
			}
		}
	}

	type rawRecordAlias RawRecord
	var a rawRecordAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	for _, k := range rawRecordKnownFields {
		delete(fields, k)
	}
	if len(fields) > 0 {
		a.Extra = make(map[string]any, len(fields))
		for k, v := range fields {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			a.Extra[k] = val
		}
	}

	*r = RawRecord(a)
	return nil
}

// MarshalJSON re-emits preserved Extra fields alongside the known ones.
// Known fields always win on key collision.
func (r RawRecord) MarshalJSON() ([]byte, error) {
	type rawRecordAlias RawRecord
	base, err := json.Marshal(rawRecordAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, exists := merged[k]; exists {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = b
	}

	return json.Marshal(merged)
}

// SyncBatch is a transport-delivered payload of raw records.
type SyncBatch struct {
	SourceTransport string      `json:"source_transport"`
	ReceivedAt      time.Time   `json:"received_at"`
	Records         []RawRecord `json:"records"`
}

// FieldCandidate is one competing value for a listing field.
type FieldCandidate struct {
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Origin    string    `json:"origin"`
}

// ConflictRecord captures irreconcilable candidate values for one field of
// one listing, for manual resolution.
type ConflictRecord struct {
	ID            string           `json:"id"                       db:"id"`
	ListingID     string           `json:"listing_id"               db:"listing_id"`
	Field         string           `json:"field"                    db:"field"`
	Candidates    []FieldCandidate `json:"candidates"               db:"candidates"`
	ResolvedValue string           `json:"resolved_value,omitempty" db:"resolved_value"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty"    db:"resolved_at"`
	CreatedAt     time.Time        `json:"created_at"               db:"created_at"`
}

// Resolved reports whether the conflict has been settled.
func (c *ConflictRecord) Resolved() bool {
	return c.ResolvedAt != nil
}

// ImportReport summarizes the outcome of applying one batch.
type ImportReport struct {
	Added      int `json:"added"`
	Merged     int `json:"merged"`
	Conflicted int `json:"conflicted"`
	Rejected   int `json:"rejected"`
}

// Total returns the number of records the batch contained.
func (r ImportReport) Total() int {
	return r.Added + r.Merged + r.Conflicted + r.Rejected
}

// Add folds another report into this one.
func (r *ImportReport) Add(other ImportReport) {
	r.Added += other.Added
	r.Merged += other.Merged
	r.Conflicted += other.Conflicted
	r.Rejected += other.Rejected
}

// PriceChange records a normalized-price transition observed during a merge.
type PriceChange struct {
	ID         string    `json:"id"          db:"id"`
	ListingID  string    `json:"listing_id"  db:"listing_id"`
	OldPrice   float64   `json:"old_price"   db:"old_price"`
	NewPrice   float64   `json:"new_price"   db:"new_price"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`
}

// MarketTrend is a per-make aggregate snapshot produced by the scheduled
// trend job.
type MarketTrend struct {
	ID          string  `json:"id"           db:"id"`
	Make        string  `json:"make"         db:"make"`
	SampleCount int     `json:"sample_count" db:"sample_count"`
	MedianPrice float64 `json:"median_price" db:"median_price"`
	P25         float64 `json:"p25"          db:"p25"`
	P75         float64 `json:"p75"          db:"p75"`
	// MedianDeltaPercent is the median valuation delta across the make's
	// listings that matched a reference spec (nearest-year tolerated); nil
	// when no listing matched.
	MedianDeltaPercent *float64  `json:"median_delta_percent,omitempty" db:"median_delta_percent"`
	ComputedAt         time.Time `json:"computed_at"  db:"computed_at"`
}

// JobRun records a single execution of a scheduled job.
type JobRun struct {
	ID           string     `json:"id"                      db:"id"`
	JobName      string     `json:"job_name"                db:"job_name"`
	StartedAt    time.Time  `json:"started_at"              db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"  db:"completed_at"`
	Status       string     `json:"status"                  db:"status"`
	ErrorText    string     `json:"error_text,omitempty"    db:"error_text"`
	RowsAffected *int       `json:"rows_affected,omitempty" db:"rows_affected"`
}

// SystemState holds a precomputed snapshot of aggregate dataset counts.
type SystemState struct {
	ListingsTotal      int `json:"listings_total"       db:"listings_total"`
	ListingsPending    int `json:"listings_pending"     db:"listings_pending"`
	ListingsComplete   int `json:"listings_complete"    db:"listings_complete"`
	ListingsAnalyzed   int `json:"listings_analyzed"    db:"listings_analyzed"`
	ConflictsOpen      int `json:"conflicts_open"       db:"conflicts_open"`
	DuplicatesFlagged  int `json:"duplicates_flagged"   db:"duplicates_flagged"`
	TrendSnapshotsHeld int `json:"trend_snapshots_held" db:"trend_snapshots_held"`
}

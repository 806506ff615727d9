package store

import (
	"fmt"
	"strings"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	orderByPrice   = "price"
	orderByUpdated = "updated_at"
	orderByAdded   = "added_at"
)

// validOrderBy maps allowed OrderBy values to their SQL column expressions.
var validOrderBy = map[string]string{
	orderByPrice:   "normalized_price ASC NULLS LAST",
	orderByUpdated: "updated_at DESC",
	orderByAdded:   "added_at DESC",
}

const defaultOrderBy = "added_at DESC"

const baseListingsSelect = `SELECT id, COALESCE(canonical_key, ''), COALESCE(canonical_url, ''), title,
	COALESCE(raw_price_text, ''), normalized_price, COALESCE(location, ''), COALESCE(seller, ''), COALESCE(source, ''),
	COALESCE(photos, '[]'), COALESCE(make, ''), COALESCE(model, ''), year,
	status, COALESCE(duplicate_of, ''), analysis, added_at, updated_at
FROM listings`

const countListingsSelect = "SELECT COUNT(*) FROM listings"

// ToSQL builds the WHERE clause, ORDER BY, LIMIT, and OFFSET for a listing query.
// It returns two SQL strings (one for the data query, one for the count query)
// and the positional parameters.
func (q *ListingQuery) ToSQL() (dataSQL, countSQL string, args []any) {
	var conditions []string
	paramIdx := 1

	if !q.IncludeDuplicates {
		conditions = append(conditions, "COALESCE(duplicate_of, '') = ''")
	}

	if q.Make != nil {
		conditions = append(conditions, fmt.Sprintf("LOWER(make) = LOWER($%d)", paramIdx))
		args = append(args, *q.Make)
		paramIdx++
	}

	if q.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", paramIdx))
		args = append(args, *q.Status)
		paramIdx++
	}

	if q.Recommendation != nil {
		conditions = append(conditions, fmt.Sprintf("analysis->>'recommendation' = $%d", paramIdx))
		args = append(args, *q.Recommendation)
		paramIdx++
	}

	if q.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("normalized_price >= $%d", paramIdx))
		args = append(args, *q.MinPrice)
		paramIdx++
	}

	if q.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("normalized_price <= $%d", paramIdx))
		args = append(args, *q.MaxPrice)
		paramIdx++
	}

	var whereClause string
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	// Order by
	orderClause := defaultOrderBy
	if q.OrderBy != "" {
		if col, ok := validOrderBy[q.OrderBy]; ok {
			orderClause = col
		}
	}

	// Limit
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := max(q.Offset, 0)

	dataSQL = fmt.Sprintf(
		"%s%s ORDER BY %s LIMIT %d OFFSET %d",
		baseListingsSelect, whereClause, orderClause, limit, offset,
	)

	countSQL = countListingsSelect + whereClause

	return dataSQL, countSQL, args
}

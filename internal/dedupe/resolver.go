package dedupe

import (
	"strconv"
	"time"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// Resolver arbitrates field-level merges between a stored listing and an
// incoming capture of the same item. Later observation wins per field; ties
// prefer the more complete side; unresolvable disagreements are escalated as
// conflict records for manual review instead of silently picking a value.
type Resolver struct {
	// PriceConflictWindow bounds "near-simultaneous": two different prices
	// observed within it always escalate, regardless of order.
	PriceConflictWindow time.Duration
}

// MergeOutcome reports what a merge did to the stored listing.
type MergeOutcome struct {
	Changed      bool
	PriceChanged bool
	OldPrice     float64
	NewPrice     float64
	Conflicts    []domain.ConflictRecord
}

// Merge folds incoming into existing in place. existing.UpdatedAt is the
// stored side's observation time; incomingAt is the capture time of the new
// record.
func (r *Resolver) Merge(existing, incoming *domain.Listing, incomingAt time.Time) MergeOutcome {
	out := MergeOutcome{}

	existingAt := existing.UpdatedAt
	preferIncoming := r.preferIncoming(existing, incoming, existingAt, incomingAt)

	// AddedAt is the earliest capture across all contributing sources; an
	// older capture arriving out of order pulls it back.
	if incomingAt.Before(existing.AddedAt) {
		existing.AddedAt = incomingAt
		out.Changed = true
	}

	r.mergePrice(existing, incoming, existingAt, incomingAt, &out)

	fields := []struct {
		name     string
		existing *string
		incoming string
	}{
		{"title", &existing.Title, incoming.Title},
		{"location", &existing.Location, incoming.Location},
		{"seller", &existing.Seller, incoming.Seller},
		{"source", &existing.Source, incoming.Source},
		{"make", &existing.Make, incoming.Make},
		{"model", &existing.Model, incoming.Model},
		{"canonical_url", &existing.CanonicalURL, incoming.CanonicalURL},
	}
	for _, f := range fields {
		r.mergeString(f.name, f.existing, f.incoming, existingAt, incomingAt, preferIncoming, &out)
	}

	if incoming.Year != nil {
		if existing.Year == nil {
			y := *incoming.Year
			existing.Year = &y
			out.Changed = true
		} else if *existing.Year != *incoming.Year && incomingAt.After(existingAt) {
			*existing.Year = *incoming.Year
			out.Changed = true
		}
	}

	// Photo union keeps every distinct URL ever seen.
	if added := unionPhotos(existing, incoming.Photos); added {
		out.Changed = true
	}

	// Analysis is only replaced by a newer analysis, never cleared by a
	// capture that carries none.
	if incoming.Analysis != nil {
		if existing.Analysis == nil ||
			incoming.Analysis.GeneratedAt.After(existing.Analysis.GeneratedAt) {
			a := *incoming.Analysis
			existing.Analysis = &a
			out.Changed = true
		}
	}

	// Status never regresses: an analyzed listing stays analyzed even when
	// a bare re-capture arrives.
	if merged := domain.MaxStatus(existing.Status, incoming.Status); merged != existing.Status {
		existing.Status = merged
		out.Changed = true
	}

	for i := range out.Conflicts {
		out.Conflicts[i].ListingID = existing.ID
		out.Conflicts[i].CreatedAt = incomingAt
	}

	return out
}

// preferIncoming breaks timestamp ties by completeness: photos beat no
// photos, then the side with more populated fields wins. Returns false on a
// dead tie (which escalates instead).
func (r *Resolver) preferIncoming(existing, incoming *domain.Listing, existingAt, incomingAt time.Time) *bool {
	if !incomingAt.Equal(existingAt) {
		v := incomingAt.After(existingAt)
		return &v
	}

	eHasPhotos, iHasPhotos := len(existing.Photos) > 0, len(incoming.Photos) > 0
	if eHasPhotos != iHasPhotos {
		return &iHasPhotos
	}

	ec, ic := completeness(existing), completeness(incoming)
	if ec != ic {
		v := ic > ec
		return &v
	}

	return nil // unresolvable tie
}

func (r *Resolver) mergeString(
	field string,
	existing *string,
	incoming string,
	existingAt, incomingAt time.Time,
	preferIncoming *bool,
	out *MergeOutcome,
) {
	switch {
	case incoming == "" || incoming == *existing:
		return
	case *existing == "":
		*existing = incoming
		out.Changed = true
	case preferIncoming == nil:
		out.Conflicts = append(out.Conflicts, conflictFor(field, *existing, existingAt, incoming, incomingAt))
	case *preferIncoming:
		// The later capture wins, but the overwrite leaves a pre-resolved
		// conflict so both candidate values stay on record.
		c := conflictFor(field, *existing, existingAt, incoming, incomingAt)
		c.ResolvedValue = incoming
		at := incomingAt
		c.ResolvedAt = &at
		out.Conflicts = append(out.Conflicts, c)

		*existing = incoming
		out.Changed = true
	}
}

func (r *Resolver) mergePrice(
	existing, incoming *domain.Listing,
	existingAt, incomingAt time.Time,
	out *MergeOutcome,
) {
	if incoming.NormalizedPrice == nil {
		return
	}
	if existing.NormalizedPrice == nil {
		p := *incoming.NormalizedPrice
		existing.NormalizedPrice = &p
		existing.RawPriceText = incoming.RawPriceText
		out.Changed = true
		return
	}
	if *existing.NormalizedPrice == *incoming.NormalizedPrice {
		return
	}

	// Two different prices observed near-simultaneously can't be ordered
	// with confidence; a human decides.
	gap := incomingAt.Sub(existingAt)
	if gap < 0 {
		gap = -gap
	}
	if gap <= r.PriceConflictWindow {
		out.Conflicts = append(out.Conflicts, conflictFor(
			"normalized_price",
			formatPrice(*existing.NormalizedPrice), existingAt,
			formatPrice(*incoming.NormalizedPrice), incomingAt,
		))
		return
	}

	if incomingAt.After(existingAt) {
		out.PriceChanged = true
		out.OldPrice = *existing.NormalizedPrice
		out.NewPrice = *incoming.NormalizedPrice
		*existing.NormalizedPrice = *incoming.NormalizedPrice
		if incoming.RawPriceText != "" {
			existing.RawPriceText = incoming.RawPriceText
		}
		out.Changed = true
	}
}

func conflictFor(field, existingVal string, existingAt time.Time, incomingVal string, incomingAt time.Time) domain.ConflictRecord {
	return domain.ConflictRecord{
		Field: field,
		Candidates: []domain.FieldCandidate{
			{Value: existingVal, Timestamp: existingAt, Origin: "stored"},
			{Value: incomingVal, Timestamp: incomingAt, Origin: "incoming"},
		},
	}
}

func unionPhotos(existing *domain.Listing, incoming []string) bool {
	if len(incoming) == 0 {
		return false
	}
	seen := make(map[string]bool, len(existing.Photos))
	for _, p := range existing.Photos {
		seen[p] = true
	}
	added := false
	for _, p := range incoming {
		if p != "" && !seen[p] {
			existing.Photos = append(existing.Photos, p)
			seen[p] = true
			added = true
		}
	}
	return added
}

// completeness counts populated fields; used only for tie-breaking.
func completeness(l *domain.Listing) int {
	n := 0
	for _, s := range []string{l.Title, l.Location, l.Seller, l.Source, l.Make, l.Model, l.CanonicalURL, l.RawPriceText} {
		if s != "" {
			n++
		}
	}
	if l.NormalizedPrice != nil {
		n++
	}
	if l.Year != nil {
		n++
	}
	n += len(l.Photos)
	return n
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

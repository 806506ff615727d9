// Package valuation computes expected market prices from the reference
// catalog and classifies listings into deal recommendations. All functions
// here are pure; the engine wires them to the store.
package valuation

import (
	"errors"
	"fmt"
	"math"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// ErrNoReference indicates the listing has no matching reference catalog row.
// The classifier handles this case with the statistical fallback; a fabricated
// expected price is never returned.
var ErrNoReference = errors.New("no reference spec match")

// Valuation is the output of valuing a listing against its reference spec.
type Valuation struct {
	ExpectedPrice float64
	// DeltaPercent is (actual - expected) / expected, negative when the
	// listing is priced below expectation. Nil when the listing has no
	// usable price.
	DeltaPercent *float64
}

// Valuate computes the expected price for a listing given its reference spec
// and age, and the delta against the listing's normalized price.
func Valuate(spec domain.ReferenceSpec, ageYears int, normalizedPrice *float64, curve Curve) (Valuation, error) {
	if spec.MSRP <= 0 {
		return Valuation{}, fmt.Errorf("reference spec for %s %s %d has no MSRP: %w",
			spec.Make, spec.Model, spec.Year, ErrNoReference)
	}

	expected := round2(spec.MSRP * curve.Factor(ageYears))

	v := Valuation{ExpectedPrice: expected}
	if normalizedPrice != nil && *normalizedPrice > 0 && expected > 0 {
		delta := (*normalizedPrice - expected) / expected
		v.DeltaPercent = &delta
	}

	return v, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

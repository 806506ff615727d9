// Package pricenorm turns raw price values scraped from listing pages into
// numeric amounts. Capture sources disagree wildly about formatting
// ("$12,500", "12500", "Call for price", "$10,000-$12,000"), so every path
// into the system funnels through this one normalizer.
package pricenorm

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Normalize parses a raw price string into a numeric amount.
// It returns false when the text contains no usable positive number; callers
// treat that as "price unknown", never as zero.
//
// When the text contains several numeric tokens (a price range, a price plus
// an hours figure), only the first token counts. Averaging a range was
// considered and rejected: the low end is what the seller will accept offers
// against.
func Normalize(raw string) (float64, bool) {
	token := firstNumericToken(raw)
	if token == "" {
		return 0, false
	}

	val, err := strconv.ParseFloat(token, 64)
	if err != nil || val <= 0 || math.IsInf(val, 0) {
		return 0, false
	}

	return round2(val), true
}

// NormalizeNumber passes a known-numeric value through the same rounding and
// positivity rules as Normalize.
func NormalizeNumber(val float64) (float64, bool) {
	if val <= 0 || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, false
	}
	return round2(val), true
}

// firstNumericToken extracts the first run of digits (with optional grouping
// commas and a decimal point) from the text, stripped of everything else.
func firstNumericToken(raw string) string {
	var b strings.Builder
	inToken := false

	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
			inToken = true
		case r == '.' && inToken && !strings.ContainsRune(b.String(), '.'):
			b.WriteRune(r)
		case r == ',' && inToken:
			// grouping separator inside a token, skip
		default:
			if inToken {
				return strings.TrimSuffix(b.String(), ".")
			}
		}
	}

	return strings.TrimSuffix(b.String(), ".")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Package stats provides the small set of descriptive statistics the
// classifier and trend job need: quartiles, IQR, and low-outlier detection.
package stats

import (
	"sort"
)

// Quartiles holds the 25th, 50th, and 75th percentiles of a sample.
type Quartiles struct {
	Q1     float64
	Median float64
	Q3     float64
}

// IQR returns the interquartile range.
func (q Quartiles) IQR() float64 {
	return q.Q3 - q.Q1
}

// LowerFence returns the Tukey lower fence Q1 - k*IQR.
func (q Quartiles) LowerFence(k float64) float64 {
	return q.Q1 - k*q.IQR()
}

// Compute calculates quartiles over the sample using linear interpolation
// between closest ranks. Returns false for samples smaller than 4, where
// quartiles are not meaningful.
func Compute(values []float64) (Quartiles, bool) {
	if len(values) < 4 {
		return Quartiles{}, false
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Quartiles{
		Q1:     percentile(sorted, 0.25),
		Median: percentile(sorted, 0.50),
		Q3:     percentile(sorted, 0.75),
	}, true
}

// Median returns the middle value of the sample, interpolating for even
// sizes. Returns false for an empty sample.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return percentile(sorted, 0.50), true
}

// IsLowOutlier reports whether v falls below the lower Tukey fence of the
// sample. k is the IQR multiplier (1.5 is the conventional default).
func IsLowOutlier(v float64, values []float64, k float64) bool {
	q, ok := Compute(values)
	if !ok {
		return false
	}
	return v < q.LowerFence(k)
}

// percentile interpolates the p-th percentile of a sorted sample.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}

	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

package valuation

import "sort"

// CurvePoint maps an age in years to the fraction of MSRP a comparable unit
// is expected to be worth.
type CurvePoint struct {
	AgeYears int
	Factor   float64
}

// Curve is a piecewise-linear depreciation curve over unit age. Factors are
// interpolated between points and clamped to the floor beyond the last
// point. The curve must be non-increasing; NewCurve enforces that.
type Curve struct {
	points []CurvePoint
	floor  float64
}

// DefaultCurve returns the stock depreciation curve: steep over the first
// three seasons, shallower after, never below 20% of MSRP.
func DefaultCurve() Curve {
	c, _ := NewCurve([]CurvePoint{
		{AgeYears: 0, Factor: 1.00},
		{AgeYears: 1, Factor: 0.86},
		{AgeYears: 2, Factor: 0.735},
		{AgeYears: 3, Factor: 0.625},
		{AgeYears: 5, Factor: 0.53},
		{AgeYears: 8, Factor: 0.41},
		{AgeYears: 12, Factor: 0.30},
		{AgeYears: 20, Factor: 0.20},
	}, 0.20)
	return c
}

// NewCurve builds a curve from breakpoints and a floor. Points are sorted by
// age. Returns false when the points are empty, any factor increases with
// age, or a factor falls below the floor.
func NewCurve(points []CurvePoint, floor float64) (Curve, bool) {
	if len(points) == 0 || floor < 0 {
		return Curve{}, false
	}

	sorted := make([]CurvePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AgeYears < sorted[j].AgeYears
	})

	prev := sorted[0].Factor
	for _, p := range sorted {
		if p.Factor > prev || p.Factor < floor {
			return Curve{}, false
		}
		prev = p.Factor
	}

	return Curve{points: sorted, floor: floor}, true
}

// Factor returns the depreciation factor for a unit of the given age.
func (c Curve) Factor(ageYears int) float64 {
	if len(c.points) == 0 {
		return 1.0
	}
	if ageYears <= c.points[0].AgeYears {
		return c.points[0].Factor
	}

	for i := 1; i < len(c.points); i++ {
		p := c.points[i]
		if ageYears <= p.AgeYears {
			prev := c.points[i-1]
			return lerp(
				float64(ageYears),
				float64(prev.AgeYears), float64(p.AgeYears),
				prev.Factor, p.Factor,
			)
		}
	}

	return c.floor
}

// Floor returns the minimum fraction of MSRP the curve can produce.
func (c Curve) Floor() float64 {
	return c.floor
}

// lerp linearly interpolates between two boundary values.
func lerp(val, minVal, maxVal, minOut, maxOut float64) float64 {
	if maxVal == minVal {
		return minOut
	}
	t := (val - minVal) / (maxVal - minVal)
	return minOut + t*(maxOut-minOut)
}

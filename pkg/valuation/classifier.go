package valuation

import (
	"fmt"
	"math"
	"time"

	"github.com/calebmorten/pwc-deal-tracker/pkg/stats"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// Classification thresholds, symmetric around zero. Negative delta means the
// listing is priced below expectation.
const (
	thresholdBuy      = -0.25
	thresholdConsider = -0.10
	thresholdPass     = 0.20
)

// Confidence penalties for missing inputs.
const (
	penaltyNoReference = 0.4
	penaltyNoPhotos    = 0.05

	// outlierConfidenceCap bounds the confidence of a statistical-outlier
	// verdict; without reference corroboration it never counts as a sure BUY.
	outlierConfidenceCap = 0.6
)

// ClassifierConfig carries the tunable knobs of the classifier. The outlier
// multiplier is a business calibration, not an algorithmic constant, so it
// lives in configuration.
type ClassifierConfig struct {
	OutlierIQRMultiplier float64
}

// DefaultClassifierConfig returns the stock classifier configuration
// (conventional 1.5×IQR Tukey fence).
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{OutlierIQRMultiplier: 1.5}
}

// ClassifyInput holds the listing facts the classifier needs, decoupled from
// the store model.
type ClassifyInput struct {
	// Delta is the valuation delta, nil when no reference match exists.
	Delta *float64
	// ExpectedPrice accompanies Delta for reasoning text.
	ExpectedPrice float64
	// Price is the listing's normalized price; HasPrice false means unknown.
	Price     float64
	HasPrice  bool
	HasPhotos bool
	// PeerPrices are normalized prices of analyzable listings sharing the
	// parsed make (or the whole active set when make is unknown), used for
	// the statistical fallback when Delta is nil.
	PeerPrices []float64
}

// Classify maps a valuation delta and data completeness into a
// recommendation with a confidence score. Insufficient data is never an
// error: it degrades to RESEARCH with reduced confidence.
func Classify(in ClassifyInput, cfg ClassifierConfig, now time.Time) domain.AnalysisResult {
	if !in.HasPrice {
		return domain.AnalysisResult{
			Recommendation: domain.RecommendResearch,
			Confidence:     0,
			Reasoning:      "no usable asking price; verify with seller",
			GeneratedAt:    now,
		}
	}

	confidence := 1.0
	if !in.HasPhotos {
		confidence -= penaltyNoPhotos
	}

	if in.Delta == nil {
		return classifyWithoutReference(in, cfg, confidence-penaltyNoReference, now)
	}

	delta := *in.Delta
	res := domain.AnalysisResult{
		Recommendation: recommendForDelta(delta),
		Confidence:     clamp01(confidence),
		DeltaPercent:   in.Delta,
		GeneratedAt:    now,
	}
	if in.ExpectedPrice > 0 {
		ep := in.ExpectedPrice
		res.ExpectedPrice = &ep
	}
	res.Reasoning = deltaReasoning(delta, in.Price, in.ExpectedPrice)

	return res
}

func recommendForDelta(delta float64) domain.Recommendation {
	switch {
	case delta <= thresholdBuy:
		return domain.RecommendBuy
	case delta <= thresholdConsider:
		return domain.RecommendConsider
	case delta < thresholdPass:
		return domain.RecommendResearch
	default:
		return domain.RecommendPass
	}
}

// classifyWithoutReference runs the interquartile outlier check across peer
// listings. A price below the lower fence is a candidate deal, but capped at
// CONSIDER: it lacks reference corroboration.
func classifyWithoutReference(
	in ClassifyInput,
	cfg ClassifierConfig,
	confidence float64,
	now time.Time,
) domain.AnalysisResult {
	k := cfg.OutlierIQRMultiplier
	if k <= 0 {
		k = DefaultClassifierConfig().OutlierIQRMultiplier
	}

	if stats.IsLowOutlier(in.Price, in.PeerPrices, k) {
		return domain.AnalysisResult{
			Recommendation: domain.RecommendConsider,
			Confidence:     math.Min(clamp01(confidence), outlierConfidenceCap),
			Reasoning: fmt.Sprintf(
				"no reference data, but $%.0f sits well below comparable listings (%d samples)",
				in.Price, len(in.PeerPrices),
			),
			GeneratedAt: now,
		}
	}

	return domain.AnalysisResult{
		Recommendation: domain.RecommendResearch,
		Confidence:     clamp01(confidence),
		Reasoning:      "no reference data for this make/model/year; manual comparison needed",
		GeneratedAt:    now,
	}
}

func deltaReasoning(delta, price, expected float64) string {
	pct := math.Abs(delta) * 100
	if delta < 0 {
		return fmt.Sprintf("$%.0f is %.0f%% below expected $%.0f", price, pct, expected)
	}
	if delta > 0 {
		return fmt.Sprintf("$%.0f is %.0f%% above expected $%.0f", price, pct, expected)
	}
	return fmt.Sprintf("$%.0f matches the expected price", price)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

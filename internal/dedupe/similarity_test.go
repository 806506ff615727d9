package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b    string
		atLeast float64
		below   float64
	}{
		{
			name:    "identical titles",
			a:       "2020 Yamaha VX Cruiser",
			b:       "2020 Yamaha VX Cruiser",
			atLeast: 1.0,
		},
		{
			name:    "punctuation and casing ignored",
			a:       "2020 Yamaha VX-Cruiser!!",
			b:       "2020 yamaha vx cruiser",
			atLeast: 1.0,
		},
		{
			name:    "reworded duplicate stays above review threshold",
			a:       "2020 Yamaha VX Cruiser low hours",
			b:       "2020 Yamaha VX Cruiser low hrs",
			atLeast: 0.85,
		},
		{
			name:  "different machines score low",
			a:     "2020 Yamaha VX Cruiser",
			b:     "2015 Kawasaki Ultra 310LX",
			below: 0.5,
		},
		{
			name:  "empty versus non-empty",
			a:     "",
			b:     "2020 Yamaha VX",
			below: 0.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := TitleSimilarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
			if tt.atLeast > 0 {
				assert.GreaterOrEqual(t, got, tt.atLeast)
			}
			if tt.below > 0 {
				assert.Less(t, got, tt.below)
			}
		})
	}
}

func TestLevenshteinDistance(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, levenshteinDistance("abc", "abc"))
	assert.Equal(t, 3, levenshteinDistance("", "abc"))
	assert.Equal(t, 1, levenshteinDistance("kitten", "mitten"))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}

package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips utm parameters",
			in:   "https://marketplace.example/item/123?utm_source=share&utm_medium=web",
			want: "https://marketplace.example/item/123",
		},
		{
			name: "strips click ids and referral codes",
			in:   "https://marketplace.example/item/123?fbclid=abc&ref=copy_link&id=9",
			want: "https://marketplace.example/item/123?id=9",
		},
		{
			name: "drops fragment and trailing slash",
			in:   "https://Marketplace.Example/item/123/#photos",
			want: "https://marketplace.example/item/123",
		},
		{
			name: "keeps meaningful query parameters",
			in:   "https://marketplace.example/search?q=waverunner",
			want: "https://marketplace.example/search?q=waverunner",
		},
		{
			name: "empty input",
			in:   "   ",
			want: "",
		},
		{
			name: "non-url text passes through trimmed",
			in:   " not a url ",
			want: "not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CanonicalURL(tt.in))
		})
	}
}

func TestCanonicalKey(t *testing.T) {
	t.Parallel()

	price := func(v float64) *float64 { return &v }

	t.Run("url wins when present", func(t *testing.T) {
		t.Parallel()
		got := CanonicalKey("https://m.example/item/5?utm_source=x", "2020 Yamaha VX", price(8000), "Tampa, FL")
		assert.Equal(t, "https://m.example/item/5", got)
	})

	t.Run("composite fallback is stable across cosmetic differences", func(t *testing.T) {
		t.Parallel()
		a := CanonicalKey("", "2020 Yamaha VX Cruiser!!", price(8010), "Tampa, FL")
		b := CanonicalKey("", "2020  yamaha vx cruiser", price(7990), "tampa fl")
		assert.Equal(t, a, b)
	})

	t.Run("price rounds to nearest hundred", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t,
			CanonicalKey("", "listing", price(8049), "x"),
			CanonicalKey("", "listing", price(7950), "x"),
		)
		assert.NotEqual(t,
			CanonicalKey("", "listing", price(8049), "x"),
			CanonicalKey("", "listing", price(8050), "x"),
		)
	})

	t.Run("long locations truncate", func(t *testing.T) {
		t.Parallel()
		a := CanonicalKey("", "listing", nil, "some very long location name here")
		b := CanonicalKey("", "listing", nil, "some very long locati")
		assert.Equal(t, a, b)
	})

	t.Run("missing price uses zero bucket", func(t *testing.T) {
		t.Parallel()
		assert.Contains(t, CanonicalKey("", "listing", nil, ""), "|0|")
	})
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2020 yamaha vx cruiser", normalizeText("  2020 Yamaha VX-Cruiser! "))
	assert.Equal(t, "", normalizeText("!!!"))
}

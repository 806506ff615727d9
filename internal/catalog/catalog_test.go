package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)
	assert.Positive(t, c.Len())

	spec, ok := c.Lookup("Yamaha", "VX Cruiser", 2022)
	require.True(t, ok)
	assert.Equal(t, 125, spec.Horsepower)
	assert.InDelta(t, 12049, spec.MSRP, 0.01)
}

func TestLookup_CaseInsensitive(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)

	_, ok := c.Lookup("yamaha", "vx cruiser", 2022)
	assert.True(t, ok)

	_, ok = c.Lookup("SEA-DOO", "SPARK", 2022)
	assert.True(t, ok)
}

func TestLookup_Miss(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)

	_, ok := c.Lookup("Yamaha", "VX Cruiser", 1980)
	assert.False(t, ok)

	_, ok = c.Lookup("Hondo", "Nope", 2022)
	assert.False(t, ok)
}

func TestNearestYear(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)

	spec, ok := c.NearestYear("Yamaha", "VX", 2018)
	require.True(t, ok)
	assert.Equal(t, 2020, spec.Year)

	_, ok = c.NearestYear("Unknown", "Model", 2020)
	assert.False(t, ok)
}

func TestLoadReader_BadRows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		csv  string
	}{
		{
			name: "bad year",
			csv:  "make,model,year,horsepower,engine_type,msrp\nYamaha,VX,notayear,125,NA,10000\n",
		},
		{
			name: "bad msrp",
			csv:  "make,model,year,horsepower,engine_type,msrp\nYamaha,VX,2020,125,NA,free\n",
		},
		{
			name: "short header",
			csv:  "make,model\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadReader(strings.NewReader(tt.csv))
			assert.Error(t, err)
		})
	}
}

func TestLoadReader_TrimsWhitespace(t *testing.T) {
	t.Parallel()

	c, err := LoadReader(strings.NewReader(
		"make,model,year,horsepower,engine_type,msrp\n" +
			"Yamaha, VX , 2020 , 125 , NA 3-cyl , 10199\n",
	))
	require.NoError(t, err)

	spec, ok := c.Lookup("Yamaha", "VX", 2020)
	require.True(t, ok)
	assert.Equal(t, "NA 3-cyl", spec.EngineType)
}

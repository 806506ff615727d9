// Package catalog provides the reference specification lookup: manufacturer
// specs and suggested retail prices keyed by (make, model, year). The
// catalog is loaded once at startup and immutable afterwards.
package catalog

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

//go:embed specs.csv
var defaultSpecsFS embed.FS

// Catalog is an in-memory reference spec lookup table.
type Catalog struct {
	byKey       map[string]domain.ReferenceSpec
	byMakeModel map[string][]domain.ReferenceSpec
}

// Default loads the embedded reference dataset.
func Default() (*Catalog, error) {
	f, err := defaultSpecsFS.Open("specs.csv")
	if err != nil {
		return nil, fmt.Errorf("opening embedded specs: %w", err)
	}
	defer f.Close()

	return LoadReader(f)
}

// LoadFile loads a reference catalog from a CSV file on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // catalog path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("opening catalog file: %w", err)
	}
	defer f.Close()

	c, err := LoadReader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// LoadReader parses CSV rows with the header
// make,model,year,horsepower,engine_type,msrp.
func LoadReader(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) < 6 {
		return nil, fmt.Errorf("expected 6 columns, got %d", len(header))
	}

	c := &Catalog{
		byKey:       make(map[string]domain.ReferenceSpec),
		byMakeModel: make(map[string][]domain.ReferenceSpec),
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		spec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		c.byKey[specKey(spec.Make, spec.Model, spec.Year)] = spec
		mm := makeModelKey(spec.Make, spec.Model)
		c.byMakeModel[mm] = append(c.byMakeModel[mm], spec)
	}

	return c, nil
}

func parseRow(row []string) (domain.ReferenceSpec, error) {
	if len(row) < 6 {
		return domain.ReferenceSpec{}, fmt.Errorf("expected 6 columns, got %d", len(row))
	}

	year, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return domain.ReferenceSpec{}, fmt.Errorf("bad year %q: %w", row[2], err)
	}
	hp, err := strconv.Atoi(strings.TrimSpace(row[3]))
	if err != nil {
		return domain.ReferenceSpec{}, fmt.Errorf("bad horsepower %q: %w", row[3], err)
	}
	msrp, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
	if err != nil {
		return domain.ReferenceSpec{}, fmt.Errorf("bad msrp %q: %w", row[5], err)
	}

	return domain.ReferenceSpec{
		Make:       strings.TrimSpace(row[0]),
		Model:      strings.TrimSpace(row[1]),
		Year:       year,
		Horsepower: hp,
		EngineType: strings.TrimSpace(row[4]),
		MSRP:       msrp,
	}, nil
}

// Lookup finds the reference spec for an exact (make, model, year) key.
func (c *Catalog) Lookup(make, model string, year int) (domain.ReferenceSpec, bool) {
	spec, ok := c.byKey[specKey(make, model, year)]
	return spec, ok
}

// NearestYear finds the spec for (make, model) whose year is closest to the
// requested one. Used by trend aggregation only; the valuation engine
// requires exact matches.
func (c *Catalog) NearestYear(make, model string, year int) (domain.ReferenceSpec, bool) {
	specs := c.byMakeModel[makeModelKey(make, model)]
	if len(specs) == 0 {
		return domain.ReferenceSpec{}, false
	}

	best := specs[0]
	for _, s := range specs[1:] {
		if abs(s.Year-year) < abs(best.Year-year) {
			best = s
		}
	}
	return best, true
}

// Len returns the number of catalog rows.
func (c *Catalog) Len() int {
	return len(c.byKey)
}

func specKey(make, model string, year int) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(make), strings.ToLower(model), year)
}

func makeModelKey(make, model string) string {
	return strings.ToLower(make) + "|" + strings.ToLower(model)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Package titleparse extracts make, model, and year candidates from
// free-text listing titles. Matching is deliberately conservative: a field
// that cannot be identified stays empty rather than guessed, and callers can
// distinguish a partial match from a complete one.
package titleparse

import (
	"regexp"
	"strings"
)

// Parsed holds the extraction result. Empty Make/Model and zero Year mean
// "not found"; Parse never fails.
type Parsed struct {
	Make  string
	Model string
	Year  int
}

// HasMake reports whether a manufacturer was identified.
func (p Parsed) HasMake() bool { return p.Make != "" }

// HasModel reports whether a model was identified.
func (p Parsed) HasModel() bool { return p.Model != "" }

// HasYear reports whether a model year was identified.
func (p Parsed) HasYear() bool { return p.Year != 0 }

// Complete reports whether make, model, and year were all identified.
func (p Parsed) Complete() bool {
	return p.HasMake() && p.HasModel() && p.HasYear()
}

// Unmatched reports whether nothing at all was identified.
func (p Parsed) Unmatched() bool {
	return !p.HasMake() && !p.HasModel() && !p.HasYear()
}

var yearRe = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// makeEntry maps an ordered set of title substrings to a canonical make.
// Order matters: specific brand spellings come before generic category
// terms, and the first matching entry wins.
type makeEntry struct {
	canonical string
	aliases   []string
}

// makes is ordered by specificity. "waverunner" and "jet ski" are brand
// trademarks that sellers use without naming the manufacturer, so they sit
// after the explicit brand names.
var makes = []makeEntry{
	{canonical: "Sea-Doo", aliases: []string{"sea-doo", "seadoo", "sea doo"}},
	{canonical: "Kawasaki", aliases: []string{"kawasaki"}},
	{canonical: "Yamaha", aliases: []string{"yamaha"}},
	{canonical: "Polaris", aliases: []string{"polaris"}},
	{canonical: "Honda", aliases: []string{"honda aquatrax", "aquatrax"}},
	{canonical: "Yamaha", aliases: []string{"waverunner", "wave runner"}},
	{canonical: "Kawasaki", aliases: []string{"jet ski", "jetski"}},
}

// models lists known model tokens per canonical make. Longest match wins so
// that "rxp" cannot shadow "rxp-x 300" and "fx" cannot shadow "fx svho".
var models = map[string][]string{
	"Yamaha": {
		"fx cruiser svho", "fx cruiser ho", "fx svho", "fx ho", "fx",
		"vx cruiser ho", "vx cruiser", "vx deluxe", "vx limited", "vx",
		"ex sport", "ex deluxe", "ex limited", "ex",
		"gp1800r svho", "gp1800r", "gp1800", "gp1300r",
		"superjet", "waverunner",
	},
	"Sea-Doo": {
		"rxp-x 300", "rxp-x", "rxp x", "rxp",
		"rxt-x 300", "rxt-x", "rxt x", "rxt",
		"gtx limited 300", "gtx limited", "gtx 300", "gtx 230", "gtx 170", "gtx",
		"gti se 170", "gti se 130", "gti se", "gti 130", "gti 90", "gti",
		"gtr-x 230", "gtr 230", "gtr",
		"spark trixx", "spark",
		"wake pro 230", "wake pro", "wake",
		"fish pro trophy", "fish pro sport", "fish pro",
		"explorer pro",
	},
	"Kawasaki": {
		"ultra 310lx-s", "ultra 310lx", "ultra 310x", "ultra 310r", "ultra 310",
		"ultra 300x", "ultra lx", "ultra",
		"stx 160lx", "stx 160x", "stx 160", "stx-15f", "stx 15f", "stx",
		"sx-r 160", "sx-r", "sxr",
	},
	"Polaris": {
		"msx 150", "msx 140", "msx",
		"virage txi", "virage tx", "virage i", "virage",
		"genesis i", "genesis",
		"slt 780", "sltx", "slt",
	},
	"Honda": {
		"aquatrax f-15x", "aquatrax f-15", "aquatrax f-12x", "aquatrax f-12",
		"aquatrax r-12x", "aquatrax r-12", "aquatrax",
	},
}

// Parse extracts make, model, and year from a listing title.
// Model lookup only runs when a make matched; an unrecognized title yields
// the zero Parsed, never an error.
func Parse(title string) Parsed {
	var p Parsed
	lower := strings.ToLower(title)

	if m := yearRe.FindString(lower); m != "" {
		p.Year = parseYear(m)
	}

	for _, entry := range makes {
		if containsAny(lower, entry.aliases) {
			p.Make = entry.canonical
			break
		}
	}

	if p.Make != "" {
		p.Model = longestModelMatch(lower, models[p.Make])
	}

	return p
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// longestModelMatch returns the canonical casing of the longest model token
// present in the title, or "" when none match.
func longestModelMatch(lower string, candidates []string) string {
	best := ""
	for _, c := range candidates {
		if len(c) > len(best) && strings.Contains(lower, c) {
			best = c
		}
	}
	return canonicalModel(best)
}

// canonicalModel restores display casing for a matched lowercase token.
func canonicalModel(token string) string {
	if token == "" {
		return ""
	}

	special := map[string]string{
		"waverunner":      "WaveRunner",
		"superjet":        "SuperJet",
		"spark":           "Spark",
		"spark trixx":     "Spark Trixx",
		"wake":            "Wake",
		"wake pro":        "Wake Pro",
		"wake pro 230":    "Wake Pro 230",
		"fish pro":        "Fish Pro",
		"fish pro sport":  "Fish Pro Sport",
		"fish pro trophy": "Fish Pro Trophy",
		"explorer pro":    "Explorer Pro",
		"ultra":           "Ultra",
		"virage":          "Virage",
		"virage i":        "Virage i",
		"virage tx":       "Virage TX",
		"virage txi":      "Virage TXi",
		"genesis":         "Genesis",
		"genesis i":       "Genesis i",
	}
	if v, ok := special[token]; ok {
		return v
	}

	// Everything else is an alphanumeric designation; uppercase it.
	upper := strings.ToUpper(token)
	// Brand words inside designations keep their display casing.
	replacements := map[string]string{
		"LIMITED":  "Limited",
		"CRUISER":  "Cruiser",
		"DELUXE":   "Deluxe",
		"SPORT":    "Sport",
		"ULTRA":    "Ultra",
		"AQUATRAX": "AquaTrax",
	}
	for from, to := range replacements {
		upper = strings.ReplaceAll(upper, from, to)
	}
	return upper
}

func parseYear(s string) int {
	y := 0
	for _, r := range s {
		y = y*10 + int(r-'0')
	}
	return y
}

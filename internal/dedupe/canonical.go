package dedupe

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

// Tracking query parameters stripped during URL canonicalization. Two
// captures of the same listing routinely differ only in these.
var trackingParams = map[string]bool{
	"fbclid":       true,
	"gclid":        true,
	"msclkid":      true,
	"ref":          true,
	"referral":     true,
	"referralcode": true,
	"tracking":     true,
	"tracking_id":  true,
}

// CanonicalURL normalizes a listing URL for identity comparison: lowercases
// scheme and host, drops the fragment, strips tracking parameters, and trims
// a trailing slash. Unparseable input is returned trimmed as-is.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[param] || strings.HasPrefix(param, "utm_") {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// CanonicalKey computes the dedup identity for a captured listing: the
// canonical URL when one exists, else a composite fingerprint of normalized
// title, price rounded to the nearest hundred, and truncated location.
func CanonicalKey(rawURL, title string, price *float64, location string) string {
	if u := CanonicalURL(rawURL); u != "" {
		return u
	}

	rounded := 0
	if price != nil {
		rounded = int(math.Round(*price/100) * 100)
	}

	loc := normalizeText(location)
	if len(loc) > 20 {
		loc = loc[:20]
	}

	return fmt.Sprintf("%s|%d|%s", normalizeText(title), rounded, loc)
}

// normalizeText lowercases and collapses whitespace and punctuation so
// cosmetic edits don't produce distinct keys.
func normalizeText(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

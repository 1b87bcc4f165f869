// Package dedup provides the fingerprint ledger that keeps re-ingested
// articles out of the store. Fingerprints are normalized hashes of
// title+url; the ledger offers atomic check-and-set membership so
// concurrent ingestion cannot double-insert.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Fingerprint returns a stable sha256 hash of the normalized title and
// URL. Normalization (lowercasing, whitespace collapsing, tracking-param
// removal) only affects the hash; display text is never altered.
func Fingerprint(title, rawURL string) string {
	combined := normalizeURL(rawURL) + "|" + normalizeTitle(title)
	h := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(h[:])
}

func normalizeTitle(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(t)), " ")
}

// normalizeURL lowercases scheme and host, drops the fragment, and strips
// common tracking query parameters so syndicated copies of the same link
// hash identically.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || lower == "fbclid" || lower == "gclid" || lower == "ref" {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	return strings.TrimSuffix(u.String(), "/")
}

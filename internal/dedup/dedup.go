// Package dedup keeps the persisted set of already-published articles.
// The set is the only state shared across runs; everything else is
// recomputed from the feeds.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// DefaultCapacity bounds the persisted set. On overflow the oldest
// fingerprints are evicted in insertion order.
const DefaultCapacity = 1000

// Store is a persisted membership set of article fingerprints. Has and
// MarkSeen operate on the in-memory set; Load and Save move it across the
// process boundary. MarkSeen is idempotent.
type Store interface {
	Has(key string) bool
	MarkSeen(key string) error
	Load() error
	Save() error
}

// Fingerprint derives the stable dedup key of an article URL. The URL is
// canonicalized first so tracking parameters and scheme changes do not
// produce distinct keys across runs, while real query parameters keep
// distinct articles distinct.
func Fingerprint(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(canonicalizeURL(rawURL)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func canonicalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}

	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	path := strings.TrimSuffix(u.Path, "/")

	// The query stays: CMS URLs routinely differ only in query parameters.
	// Tracking parameters are dropped and the rest sorted so reordered or
	// decorated links still map to one article.
	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") || param == "fbclid" || param == "gclid" {
			q.Del(param)
		}
	}
	canonical := host + path
	if enc := q.Encode(); enc != "" {
		canonical += "?" + enc
	}
	return canonical
}

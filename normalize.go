// URL normalization and product ID derivation for the tracked set.
package pricewatch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// NormalizeProductURL canonicalizes a product URL for dedup comparison:
// mobile host rewritten to www, scheme defaulted to https, host forced to
// the canonical www form, query string and fragment stripped, trailing
// slash ensured. Returns ErrInvalidInput for URLs that cannot be a product
// detail page on the target site.
func NormalizeProductURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty URL", ErrInvalidInput)
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	host := strings.ToLower(parsed.Host)
	switch host {
	case "ozon.ru", "m.ozon.ru", "www.ozon.ru":
		host = "www.ozon.ru"
	default:
		return "", fmt.Errorf("%w: not an ozon.ru URL: %s", ErrInvalidInput, parsed.Host)
	}

	parsed.Scheme = "https"
	parsed.Host = host
	parsed.RawQuery = ""
	parsed.Fragment = ""

	if !strings.Contains(parsed.Path, "/product/") {
		return "", fmt.Errorf("%w: not a product page: %s", ErrInvalidInput, parsed.Path)
	}

	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	return parsed.String(), nil
}

// ProductID derives a deterministic identifier from a product URL: the last
// all-digit path segment longer than six digits, or the first 10 hex chars
// of the URL's SHA-256 when no such segment exists.
func ProductID(rawURL string) string {
	parts := strings.Split(strings.TrimRight(rawURL, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if isNumericID(parts[i]) {
			return parts[i]
		}
		// Slugs end in "-<id>" on product detail pages.
		if idx := strings.LastIndex(parts[i], "-"); idx >= 0 && isNumericID(parts[i][idx+1:]) {
			return parts[i][idx+1:]
		}
	}
	h := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(h[:])[:10]
}

func isNumericID(s string) bool {
	if len(s) <= 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

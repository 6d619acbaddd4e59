package feed

import (
	"fmt"
	"net/url"
	"strings"
)

// Query parameters stripped during normalization. Feeds frequently embed
// campaign trackers that vary per subscriber without changing the feed.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"mc_cid": true,
	"mc_eid": true,
	"ref":    true,
}

// NormalizeFeedURL produces the canonical form of a feed URL used as show
// identity: lowercased scheme and host, default port stripped, trailing
// slash stripped, tracking query parameters removed, fragment dropped.
func NormalizeFeedURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse feed URL: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported feed URL scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("feed URL has no host: %q", raw)
	}

	host := strings.ToLower(u.Host)
	switch u.Scheme {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host

	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""

	if u.RawQuery != "" {
		// Rebuild the query preserving parameter order, minus trackers.
		var kept []string
		for _, pair := range strings.Split(u.RawQuery, "&") {
			key := pair
			if i := strings.Index(pair, "="); i >= 0 {
				key = pair[:i]
			}
			key = strings.ToLower(key)
			if trackingParams[key] || strings.HasPrefix(key, "utm_") {
				continue
			}
			kept = append(kept, pair)
		}
		u.RawQuery = strings.Join(kept, "&")
	}

	return u.String(), nil
}

// Package origin derives and compares URL origins (scheme + host + port),
// the natural key for deduplicating login records.
package origin

import (
	"fmt"
	"net/url"
	"strings"
)

// FromURL derives the origin of a full URL. The origin is the scheme and
// host, plus the port when it is explicit in the URL. Returns an error for
// URLs that cannot be parsed or carry no scheme/host.
func FromURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Same reports whether two URLs share an origin. Either URL failing to
// parse counts as a mismatch, never an error, so callers can scan stored
// collections without guarding against malformed entries.
func Same(a, b string) bool {
	oa, err := FromURL(a)
	if err != nil {
		return false
	}
	ob, err := FromURL(b)
	if err != nil {
		return false
	}
	return oa == ob
}

// Matches reports whether rawURL belongs to the given origin. Unparsable
// URLs never match.
func Matches(rawURL, origin string) bool {
	o, err := FromURL(rawURL)
	if err != nil {
		return false
	}
	return o == origin
}

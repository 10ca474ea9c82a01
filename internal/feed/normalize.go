package feed

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL canonicalises an entry URL for deduplication: surrounding
// whitespace, query and fragment are dropped and scheme and host are
// lower-cased. Only absolute http(s) URLs are accepted.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("URL is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", errors.New("URL has no host")
	}

	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

package helpers

import (
	"net/url"
	"strings"
)

// ValidURL is the minimal well-formedness check a product URL must pass before it is fetched:
// an absolute http(s) URL whose host has at least one dot.
func ValidURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" || !strings.Contains(host, ".") {
		return false
	}
	return !strings.HasPrefix(host, ".") && !strings.HasSuffix(host, ".")
}

package helpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"syscall"
	"time"

	apperrors "sjsage522/pricewatcher/pkg/errors"

	"golang.org/x/net/html/charset"
)

// DefaultClient is used when callers do not bring their own http.Client
var DefaultClient = &http.Client{
	Timeout: 30 * time.Second,
}

// networkChangeErrnos are the socket errors a host sees when its active interface goes away mid-request.
var networkChangeErrnos = []syscall.Errno{syscall.ENETDOWN, syscall.ENETUNREACH, syscall.ENETRESET}

// FetchPage sends an HTTP GET request with browser-like headers and the configured user agent,
// converts the response body to UTF-8 (if needed), and returns it as an io.Reader.
func FetchPage(ctx context.Context, client *http.Client, url, userAgent string) (io.Reader, error) {
	if client == nil {
		client = DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		if isNetworkChange(err) {
			return nil, fmt.Errorf("failed to fetch %s: %w: %w", url, apperrors.ErrNetworkChanged, err)
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		retryAfter := resp.Header.Get("Retry-After")
		return nil, fmt.Errorf("%w; retry after %q", apperrors.ErrRateLimited, retryAfter)
	}

	// Check for other error status codes
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s unexpected status code: %d", url, resp.StatusCode)
	}

	// Read the entire response body
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Determine the encoding from Content-Type header and body content
	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))

	// If already UTF-8, return as is
	if name == "utf-8" || name == "UTF-8" {
		return bytes.NewReader(bodyBytes), nil
	}

	// Convert to UTF-8 if necessary
	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}

	return &buf, nil
}

func isNetworkChange(err error) bool {
	for _, errno := range networkChangeErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

package scraper

import (
	"context"
	"net/http"

	"sjsage522/pricewatcher/helpers"
	"sjsage522/pricewatcher/logger"
)

// HTTPFetcher fetches pages with a plain GET; no script execution
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	log       *logger.Logger
}

// NewHTTPFetcher creates a new plain HTTP fetcher
func NewHTTPFetcher(userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{},
		UserAgent: userAgent,
		log:       logger.ForFetcher("http"),
	}
}

// Goto implements Fetcher
func (f *HTTPFetcher) Goto(ctx context.Context, url string, opts GotoOptions) (Document, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	f.log.Debug().Str("url", url).Msg("GET")

	body, err := helpers.FetchPage(ctx, f.Client, url, f.UserAgent)
	if err != nil {
		return nil, err
	}
	return NewDocument(url, body)
}

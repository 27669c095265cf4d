package scraper

import (
	"context"
	"time"
)

// WaitPolicy tells a fetcher when a navigation counts as finished
type WaitPolicy string

const (
	// WaitLoad waits for the load event
	WaitLoad WaitPolicy = "load"
	// WaitDOMContentLoaded waits for the DOMContentLoaded event
	WaitDOMContentLoaded WaitPolicy = "domcontentloaded"
	// WaitNetworkIdle waits until the page stops issuing requests
	WaitNetworkIdle WaitPolicy = "networkidle"
)

// GotoOptions carries per-navigation settings
type GotoOptions struct {
	Timeout    time.Duration
	WaitPolicy WaitPolicy
}

// Element is a located node in a fetched page
type Element interface {
	Text() string
	Attr(name string) (string, bool)
}

// Document is a fetched, parsed product page
type Document interface {
	// Locate returns the first element matching selector, or nil when nothing matches
	Locate(selector string) Element
	// BodyText returns the visible text of the page body
	BodyText() string
	URL() string
}

// Fetcher navigates to a URL and returns the rendered document
type Fetcher interface {
	Goto(ctx context.Context, url string, opts GotoOptions) (Document, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, url string, opts GotoOptions) (Document, error)

// Goto implements Fetcher
func (f FetcherFunc) Goto(ctx context.Context, url string, opts GotoOptions) (Document, error) {
	return f(ctx, url, opts)
}

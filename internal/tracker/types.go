package tracker

import (
	"time"

	"sjsage522/pricewatcher/helpers"
	"sjsage522/pricewatcher/internal/metrics"
	"sjsage522/pricewatcher/internal/notify"
	"sjsage522/pricewatcher/internal/scraper"
	"sjsage522/pricewatcher/internal/store"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Store    *store.ProductStore
	Fetcher  scraper.Fetcher
	Notifier notify.Notifier
	Metrics  *metrics.Registry
	Journal  helpers.LoggerInterface
}

// Options tunes navigation and pacing
type Options struct {
	Retry       scraper.RetryOptions
	PacingDelay time.Duration
	Now         func() time.Time
}

// DefaultOptions returns the retry policy and pacing used by the background loop
func DefaultOptions() Options {
	return Options{
		Retry:       scraper.DefaultRetryOptions(),
		PacingDelay: 2 * time.Second,
		Now:         time.Now,
	}
}

// Report summarizes one pass over the store
type Report struct {
	Attempted      int `json:"attempted"`
	Updated        int `json:"updated"`
	Failed         int `json:"failed"`
	SkippedInvalid int `json:"skipped_invalid"`
}

// State is where a single product's scrape attempt is
type State string

const (
	StatePending    State = "pending"
	StateFetching   State = "fetching"
	StateExtracting State = "extracting"
	StateRecorded   State = "recorded"
	StateUnchanged  State = "unchanged"
	StateFailed     State = "failed"
)

// Terminal reports whether s ends an attempt
func (s State) Terminal() bool {
	return s == StateRecorded || s == StateUnchanged || s == StateFailed
}

package scraper

import (
	"context"
	"fmt"
	"time"

	"sjsage522/pricewatcher/internal/site"
	"sjsage522/pricewatcher/logger"
	apperrors "sjsage522/pricewatcher/pkg/errors"
)

// RetryOptions controls navigation retries
type RetryOptions struct {
	// MaxAttempts is the total number of navigations, including the first. Default: 3.
	MaxAttempts int

	// BaseDelay is multiplied by the attempt number before each retry. Default: 2s.
	BaseDelay time.Duration

	Goto GotoOptions

	// OnRetry is called before each retry sleep with the attempt that just failed.
	OnRetry func(attempt int, err error)
}

// DefaultRetryOptions returns the navigation retry policy used by the tracker
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Goto: GotoOptions{
			Timeout:    30 * time.Second,
			WaitPolicy: WaitLoad,
		},
	}
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay < 0 {
		o.BaseDelay = 0
	}
	return o
}

// FetchWithRetry navigates to url, retrying only the transient network-change failure
// with a linearly growing delay. Every other failure, and exhaustion, is returned as a
// navigation error wrapping the last cause.
func FetchWithRetry(ctx context.Context, fetcher Fetcher, url string, opts RetryOptions) (Document, error) {
	opts = opts.withDefaults()
	siteName := string(site.Classify(url))
	log := logger.ForScraper(siteName)

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		doc, err := fetcher.Goto(ctx, url, opts.Goto)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, apperrors.NewNavigation(siteName, "navigation cancelled", ctx.Err())
		}

		if !apperrors.IsNetworkChanged(err) {
			return nil, apperrors.NewNavigation(siteName, fmt.Sprintf("navigation to %s failed", url), err)
		}

		if attempt == opts.MaxAttempts {
			break
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}

		delay := opts.BaseDelay * time.Duration(attempt)
		log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Str("url", url).
			Msg("Network changed during navigation, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, apperrors.NewNavigation(siteName, "navigation cancelled", ctx.Err())
		case <-timer.C:
		}
	}

	return nil, apperrors.NewNavigation(siteName,
		fmt.Sprintf("navigation to %s failed after %d attempts", url, opts.MaxAttempts), lastErr)
}

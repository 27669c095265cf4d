package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sjsage522/pricewatcher/helpers"
	"sjsage522/pricewatcher/internal/metrics"
	"sjsage522/pricewatcher/internal/notify"
	"sjsage522/pricewatcher/internal/scraper"
	"sjsage522/pricewatcher/internal/site"
	"sjsage522/pricewatcher/internal/store"
	"sjsage522/pricewatcher/logger"
	apperrors "sjsage522/pricewatcher/pkg/errors"
)

// Orchestrator drives scraping, change detection and notification. Calls are
// serialized: at most one ScrapeOne, ScrapeAll or Track runs at a time.
type Orchestrator struct {
	mu    sync.Mutex
	deps  Dependencies
	opts  Options
	pacer *Pacer
	log   *logger.Logger
}

// New creates an orchestrator. Missing optional dependencies get defaults.
func New(deps Dependencies, opts Options) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}
	if deps.Journal == nil {
		deps.Journal = helpers.NewLogger("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Orchestrator{
		deps:  deps,
		opts:  opts,
		pacer: NewPacer(opts.PacingDelay),
		log:   logger.ForTracker(),
	}
}

// ScrapeOne fetches url and extracts its price without recording anything.
// hint selects the site when known; otherwise the URL is classified.
func (o *Orchestrator) ScrapeOne(ctx context.Context, url string, hint site.ID) (scraper.ExtractionResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.scrapeOne(ctx, url, hint, func(State) {})
}

// ScrapeAll runs one pass over every tracked product. Per-product failures are
// counted and logged; the error is non-nil only when ctx ends the pass early.
func (o *Orchestrator) ScrapeAll(ctx context.Context) (Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	if err := o.deps.Store.Refresh(ctx); err != nil {
		o.log.Warn().Err(err).Msg("Failed to reload record store, using the last known products")
	}
	products := o.deps.Store.List()
	o.deps.Metrics.TrackedProducts.Set(float64(len(products)))

	var report Report
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if !helpers.ValidURL(p.URL) {
			report.SkippedInvalid++
			o.deps.Metrics.SkippedInvalid.Inc()
			o.log.Warn().Str("url", p.URL).Msg("Skipping product with invalid URL")
			continue
		}

		state, err := o.attempt(ctx, p)
		if err != nil && ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Attempted++
		switch state {
		case StateRecorded:
			report.Updated++
		case StateFailed:
			report.Failed++
		}
	}

	elapsed := time.Since(start)
	o.deps.Metrics.PassDuration.Observe(elapsed.Seconds())
	o.log.Info().
		Int("attempted", report.Attempted).
		Int("updated", report.Updated).
		Int("failed", report.Failed).
		Int("skipped_invalid", report.SkippedInvalid).
		Dur("elapsed", elapsed).
		Msg("Scrape pass finished")

	return report, nil
}

// Track starts tracking url and scrapes it right away. The product stays tracked
// when that first scrape fails; the failure is returned alongside it.
func (o *Orchestrator) Track(ctx context.Context, url string, hint site.ID) (store.Product, error) {
	url = strings.TrimSpace(url)
	if !helpers.ValidURL(url) {
		return store.Product{}, apperrors.NewValidation(string(hint), "invalid product url: "+url)
	}
	id := resolveSite(url, hint)
	if !site.Known(id) {
		return store.Product{}, apperrors.NewUnsupportedSite(url)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	p, err := o.deps.Store.Add(ctx, url, id)
	if err != nil {
		return store.Product{}, err
	}

	_, err = o.attempt(ctx, p)
	if updated, ok := o.deps.Store.Get(url); ok {
		p = updated
	}
	return p, err
}

// Untrack stops tracking url
func (o *Orchestrator) Untrack(ctx context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.deps.Store.Remove(ctx, url)
}

// Products returns the tracked products in insertion order
func (o *Orchestrator) Products() []store.Product {
	return o.deps.Store.List()
}

func resolveSite(url string, hint site.ID) site.ID {
	if site.Known(hint) {
		return hint
	}
	return site.Classify(url)
}

func (o *Orchestrator) scrapeOne(ctx context.Context, url string, hint site.ID, setState func(State)) (scraper.ExtractionResult, error) {
	id := resolveSite(url, hint)
	strategy, err := scraper.StrategyFor(id)
	if err != nil {
		return scraper.ExtractionResult{}, apperrors.NewUnsupportedSite(url)
	}

	if err := o.pacer.Wait(ctx); err != nil {
		return scraper.ExtractionResult{}, err
	}

	retry := o.opts.Retry
	if strategy.Config.WaitPolicy != "" {
		retry.Goto.WaitPolicy = strategy.Config.WaitPolicy
	}
	next := retry.OnRetry
	retry.OnRetry = func(attempt int, err error) {
		o.deps.Metrics.NavRetries.Inc()
		if next != nil {
			next(attempt, err)
		}
	}

	setState(StateFetching)
	doc, err := scraper.FetchWithRetry(ctx, o.deps.Fetcher, url, retry)
	o.pacer.Done()
	if err != nil {
		return scraper.ExtractionResult{}, err
	}

	setState(StateExtracting)
	return strategy.Extract(doc)
}

// attempt runs one product through fetch, extract, record and notify and returns
// the terminal state. err is the cause of StateFailed, or ctx's error when the
// attempt was cut short by cancellation.
func (o *Orchestrator) attempt(ctx context.Context, p store.Product) (State, error) {
	siteName := string(p.Site)
	log := o.log.WithFields(logger.Fields{"url": p.URL, "site": siteName})
	o.deps.Metrics.Attempted.WithLabelValues(siteName).Inc()

	state := StatePending
	setState := func(s State) {
		log.Debug().Str("from", string(state)).Str("to", string(s)).Msg("Scrape state")
		state = s
	}

	fail := func(err error) (State, error) {
		setState(StateFailed)
		o.deps.Metrics.Failed.WithLabelValues(siteName, failureReason(err)).Inc()
		o.deps.Journal.LogError(p.URL, err)
		log.Warn().Err(err).Msg("Scrape failed")
		return state, err
	}

	result, err := o.scrapeOne(ctx, p.URL, p.Site, setState)
	if err != nil {
		if ctx.Err() != nil {
			return StateFailed, ctx.Err()
		}
		return fail(err)
	}

	outcome, err := o.deps.Store.RecordObservation(ctx, p.URL, result, o.opts.Now())
	if err != nil {
		return fail(err)
	}

	if !outcome.Appended {
		setState(StateUnchanged)
		log.Info().Str("price", result.Price).Msg("Price unchanged")
		return state, nil
	}

	setState(StateRecorded)
	o.deps.Metrics.Updated.WithLabelValues(siteName).Inc()

	if outcome.Previous == nil {
		log.Info().Str("price", result.Price).Msg("First price recorded")
		return state, nil
	}

	log.Info().
		Str("old_price", outcome.Previous.Price).
		Str("new_price", result.Price).
		Msg("Price changed")

	latest := outcome.Product.Last()
	event := notify.NewEvent(p.Site, outcome.Product.DisplayName(), p.URL, outcome.Previous.Price, result.Price, latest.Timestamp)
	event.CouponAvailable = latest.CouponAvailable
	event.CouponText = latest.CouponText

	if err := o.deps.Notifier.Notify(ctx, event); err != nil {
		o.deps.Metrics.NotifyFailed.Inc()
		log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to send price change notification")
	}
	return state, nil
}

func failureReason(err error) string {
	var se *apperrors.ScrapeError
	if errors.As(err, &se) {
		return string(se.Type)
	}
	if errors.Is(err, store.ErrProductNotFound) {
		return "store"
	}
	return "unknown"
}

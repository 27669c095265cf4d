package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"sjsage522/pricewatcher/helpers"
	"sjsage522/pricewatcher/internal/tracker"
)

// Scraper runs one pass over every tracked product
type Scraper interface {
	ScrapeAll(ctx context.Context) (tracker.Report, error)
}

// StreamTrimmer caps notification streams after each pass
type StreamTrimmer interface {
	TrimStreams(ctx context.Context) error
}

// Alerter delivers a preformatted operator message
type Alerter interface {
	SendText(ctx context.Context, text string) error
}

// Worker runs scrape passes on a fixed interval until its context ends
type Worker struct {
	ctx      context.Context
	scraper  Scraper
	trimmer  StreamTrimmer
	alerter  Alerter
	failing  bool
	logger   helpers.LoggerInterface
	interval time.Duration
	trigger  chan struct{}
	onPass   func(tracker.Report)
}

// NewWorker creates a new worker
func NewWorker(
	ctx context.Context,
	scraper Scraper,
	logger helpers.LoggerInterface,
	interval time.Duration,
) *Worker {
	return &Worker{
		ctx:      ctx,
		scraper:  scraper,
		logger:   logger,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// WithTrimmer sets the streams trimmed after every pass
func (w *Worker) WithTrimmer(t StreamTrimmer) *Worker {
	w.trimmer = t
	return w
}

// WithAlerter sets where outage and recovery messages are sent. An outage is a
// pass in which every attempted product failed.
func (w *Worker) WithAlerter(a Alerter) *Worker {
	w.alerter = a
	return w
}

// OnPass registers a callback invoked with each completed pass report
func (w *Worker) OnPass(fn func(tracker.Report)) *Worker {
	w.onPass = fn
	return w
}

// Trigger requests an extra pass. Requests made while one is already pending are coalesced.
func (w *Worker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Start runs a pass immediately and then once per interval. It returns when the
// worker's context is done.
func (w *Worker) Start() error {
	if w.interval <= 0 {
		return fmt.Errorf("worker interval must be positive, got %s", w.interval)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runPass()

		select {
		case <-w.ctx.Done():
			return nil
		case <-ticker.C:
		case <-w.trigger:
		}
	}
}

// runPass runs one scrape pass and then trims the streams. A panic inside the
// pass is logged and the loop keeps going.
func (w *Worker) runPass() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.LogError("ScrapePass", fmt.Errorf("panic during scrape pass: %v", r))
		}
	}()

	if w.ctx.Err() != nil {
		return
	}

	start := time.Now()
	report, err := w.scraper.ScrapeAll(w.ctx)
	if err != nil {
		if w.ctx.Err() == nil {
			w.logger.LogError("ScrapePass", err)
		}
		return
	}

	if w.trimmer != nil {
		if err := w.trimmer.TrimStreams(w.ctx); err != nil {
			w.logger.LogError("StreamTrimming", err)
		}
	}

	w.checkOutage(report)

	if w.onPass != nil {
		w.onPass(report)
	}

	if os.Getenv("PRICEWATCH_ENVIRONMENT") != "production" {
		w.logger.LogInfo("Scrape pass took %s (attempted=%d updated=%d failed=%d skipped=%d)",
			time.Since(start), report.Attempted, report.Updated, report.Failed, report.SkippedInvalid)
	}
}

// checkOutage sends one alert when passes start failing for every product and
// one when a pass succeeds again.
func (w *Worker) checkOutage(report tracker.Report) {
	if report.Attempted == 0 {
		return
	}
	failing := report.Failed == report.Attempted
	if failing == w.failing {
		return
	}
	w.failing = failing
	if w.alerter == nil {
		return
	}

	var text string
	if failing {
		text = fmt.Sprintf("⚠️ Price watcher: all %d tracked products failed to scrape", report.Attempted)
	} else {
		text = fmt.Sprintf("✅ Price watcher: scraping recovered (%d of %d products updated)", report.Updated, report.Attempted)
	}
	if err := w.alerter.SendText(w.ctx, text); err != nil {
		w.logger.LogError("OutageAlert", err)
	}
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg             *prometheus.Registry
	Attempted       *prometheus.CounterVec
	Updated         *prometheus.CounterVec
	Failed          *prometheus.CounterVec
	SkippedInvalid  prometheus.Counter
	NotifyFailed    prometheus.Counter
	NavRetries      prometheus.Counter
	PassDuration    prometheus.Histogram
	TrackedProducts prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	attempted := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pricewatch_scrape_attempted_total"}, []string{"site"})
	updated := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pricewatch_scrape_updated_total"}, []string{"site"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pricewatch_scrape_failed_total"}, []string{"site", "reason"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "pricewatch_scrape_skipped_invalid_total"})
	notifyFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "pricewatch_notify_failed_total"})
	navRetries := prometheus.NewCounter(prometheus.CounterOpts{Name: "pricewatch_navigation_retries_total"})
	passDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricewatch_pass_duration_seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
	tracked := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pricewatch_tracked_products"})

	r.MustRegister(attempted, updated, failed, skipped, notifyFailed, navRetries, passDuration, tracked)
	return &Registry{
		reg:             r,
		Attempted:       attempted,
		Updated:         updated,
		Failed:          failed,
		SkippedInvalid:  skipped,
		NotifyFailed:    notifyFailed,
		NavRetries:      navRetries,
		PassDuration:    passDuration,
		TrackedProducts: tracked,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

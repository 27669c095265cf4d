package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"sjsage522/pricewatcher/internal/site"
	"sjsage522/pricewatcher/logger"
	apperrors "sjsage522/pricewatcher/pkg/errors"

	"github.com/google/uuid"
)

// Event describes a price change for one product
type Event struct {
	ID              string    `json:"id"`
	Site            site.ID   `json:"site"`
	Product         string    `json:"product"`
	URL             string    `json:"url"`
	PreviousPrice   string    `json:"previous_price"`
	NewPrice        string    `json:"new_price"`
	CouponAvailable *bool     `json:"coupon_available,omitempty"`
	CouponText      string    `json:"coupon_text,omitempty"`
	At              time.Time `json:"at"`
}

// NewEvent creates a change event with a fresh ID
func NewEvent(id site.ID, product, url, previousPrice, newPrice string, at time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Site:          id,
		Product:       product,
		URL:           url,
		PreviousPrice: previousPrice,
		NewPrice:      newPrice,
		At:            at,
	}
}

// Notifier delivers change events; failures are returned as notify errors
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// TextSender delivers a preformatted message
type TextSender interface {
	SendText(ctx context.Context, text string) error
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatMessage renders an event as a Markdown alert, skipping empty fields
func FormatMessage(e Event) string {
	lines := []string{"🔥 *Price Alert*"}
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+escapeMarkdown(value))
		}
	}

	add("Site", string(e.Site))
	if e.Product != e.URL {
		add("Product", e.Product)
	}
	add("Old Price", e.PreviousPrice)
	add("New Price", e.NewPrice)
	if e.CouponAvailable != nil {
		switch {
		case *e.CouponAvailable && e.CouponText != "":
			add("Coupon", e.CouponText)
		case *e.CouponAvailable:
			add("Coupon", "available")
		default:
			add("Coupon", "none")
		}
	}
	add("URL", e.URL)

	return strings.Join(lines, "\n")
}

// Multi fans an event out to every notifier and joins their errors
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendText implements TextSender by forwarding to every member that can take a
// preformatted message. Members that cannot are skipped.
func (m Multi) SendText(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		ts, ok := n.(TextSender)
		if !ok {
			continue
		}
		if err := ts.SendText(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier only logs events; used when no delivery channel is configured
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier that writes events to the structured log
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.ForNotifier("log")}
}

// Notify implements Notifier
func (l *LogNotifier) Notify(ctx context.Context, e Event) error {
	l.log.Info().
		Str("event_id", e.ID).
		Str("site", string(e.Site)).
		Str("product", e.Product).
		Str("old_price", e.PreviousPrice).
		Str("new_price", e.NewPrice).
		Str("url", e.URL).
		Msg("Price changed")
	return nil
}

// SendText implements TextSender
func (l *LogNotifier) SendText(ctx context.Context, text string) error {
	l.log.Info().Str("message", text).Msg("Alert")
	return nil
}

func notifyError(provider, message string, err error) error {
	return apperrors.NewNotify(provider, message, err)
}

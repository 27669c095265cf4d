package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNavigation represents page fetch failures
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypePriceNotFound represents pages where no locator or text pattern yielded a price
	ErrorTypePriceNotFound ErrorType = "price_not_found"
	// ErrorTypeUnsupportedSite represents URLs that resolve to no known site
	ErrorTypeUnsupportedSite ErrorType = "unsupported_site"
	// ErrorTypeNotify represents alert delivery failures
	ErrorTypeNotify ErrorType = "notify"
	// ErrorTypeStore represents record store failures
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

var (
	// ErrNetworkChanged marks the one transient navigation failure worth retrying.
	ErrNetworkChanged = stderrors.New("network changed")
	// ErrRateLimited is returned by fetchers when the target answered 429/430.
	ErrRateLimited = stderrors.New("rate limited")
)

// networkChangedSignature is what Chromium reports when the active interface flips mid-navigation.
const networkChangedSignature = "ERR_NETWORK_CHANGED"

// ScrapeError represents a scraper-specific error
type ScrapeError struct {
	Type    ErrorType
	Site    string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Site, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Site, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable.
// Only navigation failures caused by a network change qualify.
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNavigation:
		return IsNetworkChanged(e.Err)
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, site, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Site:    site,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNavigation creates a new navigation error
func NewNavigation(site, message string, err error) *ScrapeError {
	return New(ErrorTypeNavigation, site, message, err)
}

// NewPriceNotFound creates a new price-not-found error
func NewPriceNotFound(site, pageURL string) *ScrapeError {
	return New(ErrorTypePriceNotFound, site, "price not found on "+pageURL, nil)
}

// NewUnsupportedSite creates a new unsupported-site error
func NewUnsupportedSite(pageURL string) *ScrapeError {
	return New(ErrorTypeUnsupportedSite, "unknown", "no supported site for "+pageURL, nil)
}

// NewNotify creates a new notify error
func NewNotify(provider, message string, err error) *ScrapeError {
	return New(ErrorTypeNotify, provider, message, err)
}

// NewStore creates a new store error
func NewStore(message string, err error) *ScrapeError {
	return New(ErrorTypeStore, "", message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(site string, duration time.Duration) *ScrapeError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, site, message, ErrRateLimited)
}

// NewValidation creates a new validation error
func NewValidation(site, message string) *ScrapeError {
	return New(ErrorTypeValidation, site, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether the outermost ScrapeError in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	var se *ScrapeError
	if !stderrors.As(err, &se) {
		return false
	}
	return se.Type == errType
}

// IsNetworkChanged reports whether err carries the transient network-change signature.
func IsNetworkChanged(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrNetworkChanged) {
		return true
	}
	return strings.Contains(err.Error(), networkChangedSignature)
}

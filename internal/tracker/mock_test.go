package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sjsage522/pricewatcher/helpers"
	"sjsage522/pricewatcher/internal/notify"
	"sjsage522/pricewatcher/internal/scraper"
)

// MockFetcher serves a product page per URL with a configurable price
type MockFetcher struct {
	mu       sync.Mutex
	prices   map[string]string
	errs     map[string]error
	calls    []string
	inFlight int
	maxSeen  int
	delay    time.Duration
}

var _ scraper.Fetcher = (*MockFetcher)(nil)

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		prices: make(map[string]string),
		errs:   make(map[string]error),
	}
}

func (m *MockFetcher) SetPrice(url, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[url] = price
}

func (m *MockFetcher) SetError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[url] = err
}

func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockFetcher) Goto(ctx context.Context, url string, opts scraper.GotoOptions) (scraper.Document, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	price, err := m.prices[url], m.errs[url]
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	html := fmt.Sprintf(`<html><body>
		<h1 class="product__title">Apple iPhone 15</h1>
		<div class="product__price--price">%s</div>
	</body></html>`, price)
	return scraper.NewDocumentFromString(url, html)
}

// MockNotifier records every event
type MockNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

var _ notify.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, e notify.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *MockNotifier) Events() []notify.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Event(nil), m.events...)
}

// MockLogger implements the helpers.LoggerInterface for testing
type MockLogger struct {
	mu     sync.Mutex
	errors map[string]error
}

var _ helpers.LoggerInterface = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{errors: make(map[string]error)}
}

func (m *MockLogger) LogError(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[name] = err
}

func (m *MockLogger) LogInfo(format string, args ...interface{}) {}

func (m *MockLogger) Errors() map[string]error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]error, len(m.errors))
	for k, v := range m.errors {
		out[k] = v
	}
	return out
}

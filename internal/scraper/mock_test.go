package scraper

import (
	"context"
	"sync"
)

// MockFetcher serves canned HTML per URL and can fail the first N calls with an error
type MockFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  []error
	calls int
	urls  []string
	opts  []GotoOptions
}

var _ Fetcher = (*MockFetcher)(nil)

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{pages: make(map[string]string)}
}

// WithPage registers html to be returned for url
func (m *MockFetcher) WithPage(url, html string) *MockFetcher {
	m.pages[url] = html
	return m
}

// FailWith queues errors returned by the next calls, in order
func (m *MockFetcher) FailWith(errs ...error) *MockFetcher {
	m.errs = append(m.errs, errs...)
	return m
}

func (m *MockFetcher) Goto(ctx context.Context, url string, opts GotoOptions) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.urls = append(m.urls, url)
	m.opts = append(m.opts, opts)

	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	return NewDocumentFromString(url, m.pages[url])
}

func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

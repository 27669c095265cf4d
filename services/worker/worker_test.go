package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sjsage522/pricewatcher/helpers"
	"sjsage522/pricewatcher/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockScraper implements the Scraper interface for testing
type MockScraper struct {
	mu     sync.Mutex
	passes int
	report tracker.Report
	err    error
	panics bool
	block  bool
}

// Ensure MockScraper implements Scraper
var _ Scraper = (*MockScraper)(nil)

func (m *MockScraper) ScrapeAll(ctx context.Context) (tracker.Report, error) {
	m.mu.Lock()
	m.passes++
	panics, block := m.panics, m.block
	report, err := m.report, m.err
	m.mu.Unlock()

	if panics {
		panic("boom")
	}
	if block {
		<-ctx.Done()
		return tracker.Report{}, ctx.Err()
	}
	return report, err
}

func (m *MockScraper) SetReport(r tracker.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.report = r
}

func (m *MockScraper) Passes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passes
}

// MockTrimmer implements the StreamTrimmer interface for testing
type MockTrimmer struct {
	mu    sync.Mutex
	trims int
	err   error
}

var _ StreamTrimmer = (*MockTrimmer)(nil)

func (m *MockTrimmer) TrimStreams(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return m.err
}

func (m *MockTrimmer) Trims() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trims
}

// MockAlerter implements the Alerter interface for testing
type MockAlerter struct {
	mu       sync.Mutex
	messages []string
	err      error
}

var _ Alerter = (*MockAlerter)(nil)

func (m *MockAlerter) SendText(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
	return m.err
}

func (m *MockAlerter) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

// MockLogger implements the helpers.LoggerInterface for testing
type MockLogger struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

// Ensure MockLogger implements helpers.LoggerInterface
var _ helpers.LoggerInterface = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{
		errors: make([]string, 0),
		infos:  make([]string, 0),
	}
}

func (m *MockLogger) LogError(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, name+": "+err.Error())
}

func (m *MockLogger) LogInfo(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errors...)
}

func startWorker(t *testing.T, w *Worker, cancel context.CancelFunc) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- w.Start() }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return done
}

// TestWorkerRunsImmediately tests that the first pass does not wait for the interval
func TestWorkerRunsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scraper := &MockScraper{report: tracker.Report{Attempted: 2, Updated: 1}}
	trimmer := &MockTrimmer{}
	mockLogger := NewMockLogger()

	var reports []tracker.Report
	var mu sync.Mutex
	w := NewWorker(ctx, scraper, mockLogger, time.Hour).
		WithTrimmer(trimmer).
		OnPass(func(r tracker.Report) {
			mu.Lock()
			defer mu.Unlock()
			reports = append(reports, r)
		})
	startWorker(t, w, cancel)

	assert.Eventually(t, func() bool { return scraper.Passes() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return trimmer.Trims() == 1 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].Attempted)
	assert.Empty(t, mockLogger.Errors())
}

// TestWorkerInterval tests that passes repeat on the interval
func TestWorkerInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scraper := &MockScraper{}
	w := NewWorker(ctx, scraper, NewMockLogger(), 10*time.Millisecond)
	startWorker(t, w, cancel)

	assert.Eventually(t, func() bool { return scraper.Passes() >= 3 }, time.Second, 5*time.Millisecond)
}

// TestWorkerTrigger tests that Trigger runs an extra pass before the interval elapses
func TestWorkerTrigger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scraper := &MockScraper{}
	w := NewWorker(ctx, scraper, NewMockLogger(), time.Hour)
	startWorker(t, w, cancel)

	assert.Eventually(t, func() bool { return scraper.Passes() == 1 }, time.Second, 5*time.Millisecond)
	w.Trigger()
	w.Trigger()
	w.Trigger()
	assert.Eventually(t, func() bool { return scraper.Passes() >= 2 }, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, scraper.Passes(), 3)
}

// TestWorkerWithError tests that pass failures are logged and the loop continues
func TestWorkerWithError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scraper := &MockScraper{err: errors.New("store unavailable")}
	trimmer := &MockTrimmer{}
	mockLogger := NewMockLogger()
	w := NewWorker(ctx, scraper, mockLogger, 10*time.Millisecond).WithTrimmer(trimmer)
	startWorker(t, w, cancel)

	assert.Eventually(t, func() bool { return scraper.Passes() >= 2 }, time.Second, 5*time.Millisecond)
	errs := mockLogger.Errors()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "ScrapePass")
	assert.Contains(t, errs[0], "store unavailable")
	assert.Zero(t, trimmer.Trims())
}

// TestWorkerTrimError tests that trim failures are logged
func TestWorkerTrimError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mockLogger := NewMockLogger()
	w := NewWorker(ctx, &MockScraper{}, mockLogger, time.Hour).
		WithTrimmer(&MockTrimmer{err: errors.New("redis down")})
	startWorker(t, w, cancel)

	assert.Eventually(t, func() bool { return len(mockLogger.Errors()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, mockLogger.Errors()[0], "StreamTrimming")
}

// TestWorkerRecoversPanic tests that a panicking pass does not stop the loop
func TestWorkerRecoversPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scraper := &MockScraper{panics: true}
	mockLogger := NewMockLogger()
	w := NewWorker(ctx, scraper, mockLogger, 10*time.Millisecond)
	startWorker(t, w, cancel)

	assert.Eventually(t, func() bool { return scraper.Passes() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, mockLogger.Errors()[0], "panic during scrape pass: boom")
}

// TestWorkerStopsOnCancel tests that Start returns once its context is cancelled
func TestWorkerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scraper := &MockScraper{block: true}
	mockLogger := NewMockLogger()
	w := NewWorker(ctx, scraper, mockLogger, time.Hour)

	done := make(chan error, 1)
	go func() { done <- w.Start() }()

	assert.Eventually(t, func() bool { return scraper.Passes() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Empty(t, mockLogger.Errors())
}

// TestWorkerInvalidInterval tests that a non-positive interval is rejected
func TestWorkerInvalidInterval(t *testing.T) {
	w := NewWorker(context.Background(), &MockScraper{}, NewMockLogger(), 0)
	assert.Error(t, w.Start())
}

// TestWorkerOutageAlerts tests that a run of all-failed passes alerts once and
// the next successful pass alerts recovery
func TestWorkerOutageAlerts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scraper := &MockScraper{report: tracker.Report{Attempted: 3, Failed: 3}}
	alerter := &MockAlerter{}
	w := NewWorker(ctx, scraper, NewMockLogger(), 5*time.Millisecond).WithAlerter(alerter)
	startWorker(t, w, cancel)

	assert.Eventually(t, func() bool { return scraper.Passes() >= 3 }, time.Second, 5*time.Millisecond)
	msgs := alerter.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "all 3 tracked products failed")

	scraper.SetReport(tracker.Report{Attempted: 3, Updated: 2, Failed: 1})
	assert.Eventually(t, func() bool { return len(alerter.Messages()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, alerter.Messages()[1], "recovered (2 of 3 products updated)")

	passes := scraper.Passes()
	assert.Eventually(t, func() bool { return scraper.Passes() >= passes+2 }, time.Second, 5*time.Millisecond)
	assert.Len(t, alerter.Messages(), 2)
}

// TestWorkerNoAlertWithoutOutage tests that partial failures and empty passes send nothing
func TestWorkerNoAlertWithoutOutage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scraper := &MockScraper{report: tracker.Report{Attempted: 2, Updated: 1, Failed: 1}}
	alerter := &MockAlerter{}
	w := NewWorker(ctx, scraper, NewMockLogger(), 5*time.Millisecond).WithAlerter(alerter)
	startWorker(t, w, cancel)

	assert.Eventually(t, func() bool { return scraper.Passes() >= 2 }, time.Second, 5*time.Millisecond)
	scraper.SetReport(tracker.Report{})
	passes := scraper.Passes()
	assert.Eventually(t, func() bool { return scraper.Passes() >= passes+2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, alerter.Messages())
}

// TestWorkerAlertError tests that a failed alert is logged
func TestWorkerAlertError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scraper := &MockScraper{report: tracker.Report{Attempted: 1, Failed: 1}}
	mockLogger := NewMockLogger()
	w := NewWorker(ctx, scraper, mockLogger, time.Hour).
		WithAlerter(&MockAlerter{err: errors.New("telegram down")})
	startWorker(t, w, cancel)

	assert.Eventually(t, func() bool { return len(mockLogger.Errors()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, mockLogger.Errors()[0], "OutageAlert: telegram down")
}

package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sjsage522/pricewatcher/internal/scraper"
	"sjsage522/pricewatcher/internal/site"
	"sjsage522/pricewatcher/internal/store"
	apperrors "sjsage522/pricewatcher/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	iphoneURL = "https://www.vijaysales.com/p/P220946/220946/apple-iphone-15-128-gb-storage-black"
	tvURL     = "https://www.vijaysales.com/p/P111111/111111/samsung-tv"
	fridgeURL = "https://www.vijaysales.com/p/P222222/222222/lg-fridge"
)

type memoryRecords struct {
	mu    sync.Mutex
	snap  store.Snapshot
	saves int
}

func (m *memoryRecords) Load(ctx context.Context) (store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func (m *memoryRecords) Save(ctx context.Context, s store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.snap = s
	return nil
}

type fixture struct {
	store    *store.ProductStore
	records  *memoryRecords
	fetcher  *MockFetcher
	notifier *MockNotifier
	journal  *MockLogger
	orch     *Orchestrator
}

func newFixture(t *testing.T, urls ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	records := &memoryRecords{}
	ps, err := store.Open(ctx, records)
	require.NoError(t, err)
	for _, u := range urls {
		_, err := ps.Add(ctx, u, site.Unknown)
		require.NoError(t, err)
	}

	f := &fixture{
		store:    ps,
		records:  records,
		fetcher:  NewMockFetcher(),
		notifier: &MockNotifier{},
		journal:  NewMockLogger(),
	}
	f.orch = New(Dependencies{
		Store:    ps,
		Fetcher:  f.fetcher,
		Notifier: f.notifier,
		Journal:  f.journal,
	}, Options{
		Retry: scraper.RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})
	return f
}

func TestScrapeAllFirstObservationDoesNotNotify(t *testing.T) {
	f := newFixture(t, iphoneURL)
	f.fetcher.SetPrice(iphoneURL, "₹54999")

	report, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 1, Updated: 1}, report)

	p, _ := f.store.Get(iphoneURL)
	require.Len(t, p.History, 1)
	assert.Equal(t, "₹54999", p.History[0].Price)
	assert.Equal(t, "Apple iPhone 15", p.Title)
	assert.Empty(t, f.notifier.Events())
}

func TestScrapeAllUnchangedPrice(t *testing.T) {
	f := newFixture(t, iphoneURL)
	f.fetcher.SetPrice(iphoneURL, "₹54999")
	_, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	saves := f.records.saves

	report, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 1}, report)

	p, _ := f.store.Get(iphoneURL)
	assert.Len(t, p.History, 1)
	assert.Equal(t, saves, f.records.saves)
	assert.Empty(t, f.notifier.Events())
}

func TestScrapeAllPriceChangeNotifies(t *testing.T) {
	f := newFixture(t, iphoneURL)
	f.fetcher.SetPrice(iphoneURL, "₹54999")
	_, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)

	f.fetcher.SetPrice(iphoneURL, "₹52999")
	report, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 1, Updated: 1}, report)

	events := f.notifier.Events()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, site.VijaySales, e.Site)
	assert.Equal(t, "Apple iPhone 15", e.Product)
	assert.Equal(t, iphoneURL, e.URL)
	assert.Equal(t, "₹54999", e.PreviousPrice)
	assert.Equal(t, "₹52999", e.NewPrice)
	assert.NotEmpty(t, e.ID)

	p, _ := f.store.Get(iphoneURL)
	require.Len(t, p.History, 2)
}

func TestScrapeAllContinuesPastFailures(t *testing.T) {
	f := newFixture(t, iphoneURL, tvURL, fridgeURL)
	f.fetcher.SetPrice(iphoneURL, "₹54999")
	f.fetcher.SetError(tvURL, errors.New("net::ERR_NAME_NOT_RESOLVED"))
	f.fetcher.SetPrice(fridgeURL, "₹32,990")

	report, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, []string{iphoneURL, tvURL, fridgeURL}, f.fetcher.Calls())

	p1, _ := f.store.Get(iphoneURL)
	p3, _ := f.store.Get(fridgeURL)
	assert.Len(t, p1.History, 1)
	assert.Len(t, p3.History, 1)

	journal := f.journal.Errors()
	require.Contains(t, journal, tvURL)
	assert.True(t, apperrors.IsType(journal[tvURL], apperrors.ErrorTypeNavigation))
}

func TestScrapeAllSkipsInvalidURLs(t *testing.T) {
	f := newFixture(t, "http://x", iphoneURL)
	f.fetcher.SetPrice(iphoneURL, "₹54999")

	report, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 1, Updated: 1, SkippedInvalid: 1}, report)
	assert.Equal(t, []string{iphoneURL}, f.fetcher.Calls())
}

func TestScrapeAllPriceNotFoundIsAFailure(t *testing.T) {
	f := newFixture(t, iphoneURL)
	f.fetcher.SetPrice(iphoneURL, "out of stock")

	report, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 1, Failed: 1}, report)
	assert.True(t, apperrors.IsType(f.journal.Errors()[iphoneURL], apperrors.ErrorTypePriceNotFound))
}

func TestScrapeAllUnsupportedSiteIsAFailure(t *testing.T) {
	f := newFixture(t, "https://shop.example.com/item/1")

	report, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 1, Failed: 1}, report)
	assert.Empty(t, f.fetcher.Calls())
}

func TestScrapeAllNotifyFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, iphoneURL)
	f.notifier.err = apperrors.NewNotify("telegram", "down", nil)
	f.fetcher.SetPrice(iphoneURL, "₹54999")
	_, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)

	f.fetcher.SetPrice(iphoneURL, "₹49999")
	report, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 1, Updated: 1}, report)
	assert.Len(t, f.notifier.Events(), 1)
}

func TestScrapeAllRetriesNetworkChange(t *testing.T) {
	f := newFixture(t, iphoneURL)
	calls := 0
	f.orch.deps.Fetcher = scraper.FetcherFunc(func(ctx context.Context, url string, opts scraper.GotoOptions) (scraper.Document, error) {
		calls++
		assert.Equal(t, scraper.WaitNetworkIdle, opts.WaitPolicy)
		if calls == 1 {
			return nil, errors.New("net::ERR_NETWORK_CHANGED")
		}
		return f.fetcher.Goto(ctx, url, opts)
	})
	f.fetcher.SetPrice(iphoneURL, "₹54999")

	report, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 1, Updated: 1}, report)
	assert.Equal(t, 2, calls)
}

func TestScrapeAllCancelled(t *testing.T) {
	f := newFixture(t, iphoneURL, tvURL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.orch.ScrapeAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Report{}, report)
	assert.Empty(t, f.fetcher.Calls())
}

func TestScrapeAllPacing(t *testing.T) {
	f := newFixture(t, iphoneURL, tvURL, fridgeURL)
	f.orch.pacer = NewPacer(30 * time.Millisecond)
	for _, u := range []string{iphoneURL, tvURL, fridgeURL} {
		f.fetcher.SetPrice(u, "₹1")
	}

	start := time.Now()
	_, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestScrapeAllPacingCountsFromFetchEnd(t *testing.T) {
	f := newFixture(t, iphoneURL, tvURL)
	f.orch.pacer = NewPacer(30 * time.Millisecond)
	f.fetcher.delay = 40 * time.Millisecond
	f.fetcher.SetPrice(iphoneURL, "₹1")
	f.fetcher.SetPrice(tvURL, "₹2")

	start := time.Now()
	report, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Updated)
	// fetch, pause, fetch
	assert.GreaterOrEqual(t, time.Since(start), 105*time.Millisecond)
}

func TestScrapeAllDeadlineDuringPacing(t *testing.T) {
	f := newFixture(t, iphoneURL, tvURL)
	f.orch.pacer = NewPacer(time.Hour)
	f.fetcher.SetPrice(iphoneURL, "₹1")
	f.fetcher.SetPrice(tvURL, "₹2")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	report, err := f.orch.ScrapeAll(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	assert.Equal(t, Report{Attempted: 1, Updated: 1}, report)
	assert.Equal(t, []string{iphoneURL}, f.fetcher.Calls())
	assert.Empty(t, f.journal.Errors())
}

func TestOrchestratorSerializesCalls(t *testing.T) {
	f := newFixture(t, iphoneURL, tvURL)
	f.fetcher.delay = 10 * time.Millisecond
	f.fetcher.SetPrice(iphoneURL, "₹1")
	f.fetcher.SetPrice(tvURL, "₹2")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.orch.ScrapeAll(context.Background())
			_, _ = f.orch.ScrapeOne(context.Background(), iphoneURL, site.Unknown)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.fetcher.maxSeen)
	p, _ := f.store.Get(iphoneURL)
	assert.Len(t, p.History, 1)
}

func TestScrapeOne(t *testing.T) {
	f := newFixture(t)
	f.fetcher.SetPrice(iphoneURL, "₹ 69,900")

	result, err := f.orch.ScrapeOne(context.Background(), iphoneURL, site.Unknown)
	require.NoError(t, err)
	assert.Equal(t, "₹69,900", result.Price)
	assert.Equal(t, "Apple iPhone 15", result.Title)
	assert.Equal(t, 0, f.records.saves)

	// The hint wins over the URL
	f.fetcher.SetPrice("https://mirror.example.com/p/1", "Rs. 1,299")
	result, err = f.orch.ScrapeOne(context.Background(), "https://mirror.example.com/p/1", site.VijaySales)
	require.NoError(t, err)
	assert.Equal(t, "₹1,299", result.Price)

	_, err = f.orch.ScrapeOne(context.Background(), "https://shop.example.com/p/1", site.Unknown)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnsupportedSite))

	f.fetcher.SetError(tvURL, errors.New("timeout"))
	_, err = f.orch.ScrapeOne(context.Background(), tvURL, site.Unknown)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNavigation))
}

func TestTrack(t *testing.T) {
	f := newFixture(t)
	f.fetcher.SetPrice(iphoneURL, "₹54999")

	p, err := f.orch.Track(context.Background(), iphoneURL, site.Unknown)
	require.NoError(t, err)
	assert.Equal(t, site.VijaySales, p.Site)
	require.Len(t, p.History, 1)
	assert.Equal(t, "Apple iPhone 15", p.Title)
	assert.Empty(t, f.notifier.Events())

	_, err = f.orch.Track(context.Background(), iphoneURL, site.Unknown)
	assert.ErrorIs(t, err, store.ErrDuplicateProduct)

	_, err = f.orch.Track(context.Background(), "http://x", site.Unknown)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = f.orch.Track(context.Background(), "https://shop.example.com/p/1", site.Unknown)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnsupportedSite))

	// A failed first scrape keeps the product tracked
	f.fetcher.SetError(tvURL, errors.New("timeout"))
	p, err = f.orch.Track(context.Background(), tvURL, site.Unknown)
	assert.Error(t, err)
	assert.Equal(t, tvURL, p.URL)
	assert.Len(t, f.orch.Products(), 2)

	require.NoError(t, f.orch.Untrack(context.Background(), tvURL))
	assert.Len(t, f.orch.Products(), 1)
	assert.ErrorIs(t, f.orch.Untrack(context.Background(), tvURL), store.ErrProductNotFound)
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateFetching.Terminal())
	assert.False(t, StateExtracting.Terminal())
	assert.True(t, StateRecorded.Terminal())
	assert.True(t, StateUnchanged.Terminal())
	assert.True(t, StateFailed.Terminal())
}

func TestScrapeAllPicksUpProductsTrackedElsewhere(t *testing.T) {
	f := newFixture(t, iphoneURL)
	f.fetcher.SetPrice(iphoneURL, "₹54999")
	f.fetcher.SetPrice(tvURL, "₹39,990")

	other, err := store.Open(context.Background(), f.records)
	require.NoError(t, err)
	_, err = other.Add(context.Background(), tvURL, site.Unknown)
	require.NoError(t, err)

	report, err := f.orch.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 2, Updated: 2}, report)
	assert.Equal(t, []string{iphoneURL, tvURL}, f.fetcher.Calls())
}

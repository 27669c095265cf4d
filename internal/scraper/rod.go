package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sjsage522/pricewatcher/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodFetcher renders pages in headless Chromium driven over CDP
type RodFetcher struct {
	controlURL string
	userAgent  string

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	log      *logger.Logger
}

// NewRodFetcher creates a fetcher that connects to controlURL, or launches a local
// headless browser on first use when controlURL is empty
func NewRodFetcher(controlURL, userAgent string) *RodFetcher {
	return &RodFetcher{
		controlURL: controlURL,
		userAgent:  userAgent,
		log:        logger.ForFetcher("rod"),
	}
}

func (f *RodFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	u := f.controlURL
	if u == "" {
		l := launcher.New().
			Headless(true).
			NoSandbox(true)
		launched, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		f.launcher = l
		u = launched
		f.log.Info().Str("control_url", u).Msg("Launched headless browser")
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser at %s: %w", u, err)
	}
	f.browser = browser
	return browser, nil
}

// Goto implements Fetcher
func (f *RodFetcher) Goto(ctx context.Context, url string, opts GotoOptions) (Document, error) {
	browser, err := f.connect()
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if f.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.userAgent}); err != nil {
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	p := page.Context(ctx).Timeout(timeout)

	f.log.Debug().Str("url", url).Str("wait", string(opts.WaitPolicy)).Msg("navigate")

	// Subscribe before navigating so the lifecycle event cannot be missed
	wait := p.WaitNavigation(lifecycleEvent(opts.WaitPolicy))
	if err := p.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	wait()
	if err := p.GetContext().Err(); err != nil {
		return nil, fmt.Errorf("waiting for %s on %s: %w", waitName(opts.WaitPolicy), url, err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page HTML: %w", err)
	}

	return NewDocument(url, strings.NewReader(html))
}

// lifecycleEvent maps a wait policy to the CDP page lifecycle event that ends navigation
func lifecycleEvent(p WaitPolicy) proto.PageLifecycleEventName {
	switch p {
	case WaitDOMContentLoaded:
		return proto.PageLifecycleEventNameDOMContentLoaded
	case WaitNetworkIdle:
		return proto.PageLifecycleEventNameNetworkIdle
	default:
		return proto.PageLifecycleEventNameLoad
	}
}

func waitName(p WaitPolicy) string {
	if p == "" {
		return string(WaitLoad)
	}
	return string(p)
}

// Close shuts down the browser and any launched process
func (f *RodFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}
	if f.launcher != nil {
		f.launcher.Kill()
		f.launcher = nil
	}
	return err
}

package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sjsage522/pricewatcher/logger"
	apperrors "sjsage522/pricewatcher/pkg/errors"
)

// BrowserlessFetcher renders pages through a browserless /content endpoint
type BrowserlessFetcher struct {
	Addr      string
	UserAgent string
	Client    *http.Client
	log       *logger.Logger
}

type browserlessGoto struct {
	WaitUntil string `json:"waitUntil"`
	Timeout   int64  `json:"timeout"`
}

type browserlessRequest struct {
	URL         string          `json:"url"`
	UserAgent   string          `json:"userAgent,omitempty"`
	GotoOptions browserlessGoto `json:"gotoOptions"`
}

// NewBrowserlessFetcher creates a fetcher for the browserless instance at addr
func NewBrowserlessFetcher(addr, userAgent string) *BrowserlessFetcher {
	return &BrowserlessFetcher{
		Addr:      strings.TrimRight(addr, "/"),
		UserAgent: userAgent,
		Client:    &http.Client{},
		log:       logger.ForFetcher("browserless"),
	}
}

// puppeteerWaitUntil maps a WaitPolicy onto the puppeteer lifecycle event names browserless expects
func puppeteerWaitUntil(p WaitPolicy) string {
	switch p {
	case WaitNetworkIdle:
		return "networkidle0"
	case WaitDOMContentLoaded:
		return "domcontentloaded"
	default:
		return "load"
	}
}

// Goto implements Fetcher
func (f *BrowserlessFetcher) Goto(ctx context.Context, url string, opts GotoOptions) (Document, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	payload := browserlessRequest{
		URL:       url,
		UserAgent: f.UserAgent,
		GotoOptions: browserlessGoto{
			WaitUntil: puppeteerWaitUntil(opts.WaitPolicy),
			Timeout:   timeout.Milliseconds(),
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	// Leave browserless room to report its own navigation timeout
	reqCtx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, f.Addr+"/content", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	f.log.Debug().Str("url", url).Str("wait_until", payload.GotoOptions.WaitUntil).Msg("POST /content")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browserless request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 500 {
			msg = msg[:500]
		}
		if strings.Contains(msg, "ERR_NETWORK_CHANGED") {
			return nil, fmt.Errorf("browserless HTTP %d: %w: %s", resp.StatusCode, apperrors.ErrNetworkChanged, msg)
		}
		return nil, fmt.Errorf("browserless HTTP %d: %s", resp.StatusCode, msg)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response from browserless")
	}

	return NewDocument(url, bytes.NewReader(body))
}

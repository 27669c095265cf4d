package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sjsage522/pricewatcher/logger"

	"golang.org/x/time/rate"
)

// DefaultTelegramAPI is the public Bot API endpoint
const DefaultTelegramAPI = "https://api.telegram.org"

// Bot API allows about one message per second in a chat, with short bursts
const (
	telegramRate  = rate.Limit(1)
	telegramBurst = 3
)

// TelegramNotifier sends alerts through the Telegram Bot API
type TelegramNotifier struct {
	apiURL  string
	token   string
	chatID  string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(apiURL, token, chatID string) *TelegramNotifier {
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	return &TelegramNotifier{
		apiURL:  strings.TrimRight(apiURL, "/"),
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(telegramRate, telegramBurst),
		log:     logger.ForNotifier("telegram"),
	}
}

// WithRateLimit replaces the per-chat send rate
func (t *TelegramNotifier) WithRateLimit(limit rate.Limit, burst int) *TelegramNotifier {
	t.limiter = rate.NewLimiter(limit, burst)
	return t
}

// Notify implements Notifier
func (t *TelegramNotifier) Notify(ctx context.Context, e Event) error {
	return t.SendText(ctx, FormatMessage(e))
}

// SendText posts a preformatted Markdown message to the configured chat
func (t *TelegramNotifier) SendText(ctx context.Context, text string) error {
	if t.token == "" || t.chatID == "" {
		return notifyError("telegram", "BOT_TOKEN or CHAT_ID not set", nil)
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return notifyError("telegram", "send rate wait aborted", err)
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return notifyError("telegram", "failed to encode message", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return notifyError("telegram", "failed to create request", redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return notifyError("telegram", "request failed", redact(err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var result sendMessageResponse
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK || !result.OK {
		desc := result.Description
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		return notifyError("telegram", fmt.Sprintf("HTTP %d: %s", resp.StatusCode, desc), nil)
	}

	t.log.Info().Str("chat_id", t.chatID).Msg("Telegram alert sent")
	return nil
}

// redact drops the request URL, which carries the bot token, from transport errors
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

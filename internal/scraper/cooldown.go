package scraper

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sjsage522/pricewatcher/internal/site"
	"sjsage522/pricewatcher/logger"
	apperrors "sjsage522/pricewatcher/pkg/errors"
	"sjsage522/pricewatcher/services/cache"
)

// CooldownFetcher stops sending requests to a site for BlockTime after it answers with a rate limit
type CooldownFetcher struct {
	Next      Fetcher
	Cache     cache.CacheService
	BlockTime time.Duration
	log       *logger.Logger
}

// NewCooldownFetcher wraps next with per-site rate limit cooldowns stored in c
func NewCooldownFetcher(next Fetcher, c cache.CacheService, blockTime time.Duration) *CooldownFetcher {
	return &CooldownFetcher{
		Next:      next,
		Cache:     c,
		BlockTime: blockTime,
		log:       logger.ForCache(),
	}
}

// CooldownKey is the cache key marking site as blocked
func CooldownKey(id site.ID) string {
	return string(id) + "_rate_limited"
}

// Goto implements Fetcher
func (f *CooldownFetcher) Goto(ctx context.Context, url string, opts GotoOptions) (Document, error) {
	id := site.Classify(url)
	key := CooldownKey(id)

	if f.Cache != nil {
		if _, err := f.Cache.Get(key); err == nil {
			return nil, apperrors.NewRateLimit(string(id), f.BlockTime)
		}
	}

	doc, err := f.Next.Goto(ctx, url, opts)
	if err != nil {
		if f.Cache != nil && errors.Is(err, apperrors.ErrRateLimited) {
			value := []byte(strconv.FormatInt(int64(f.BlockTime/time.Second), 10))
			if setErr := f.Cache.Set(key, value, f.BlockTime); setErr != nil {
				f.log.Warn().Err(setErr).Str("key", key).Msg("Failed to set cooldown")
			} else {
				f.log.Warn().Str("site", string(id)).Dur("block", f.BlockTime).Msg("Site rate limited, cooling down")
			}
		}
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return doc, nil
}

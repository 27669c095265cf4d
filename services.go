package main

import (
	"context"
	"fmt"

	"sjsage522/pricewatcher/config"
	"sjsage522/pricewatcher/helpers"
	"sjsage522/pricewatcher/internal/metrics"
	"sjsage522/pricewatcher/internal/notify"
	"sjsage522/pricewatcher/internal/scraper"
	"sjsage522/pricewatcher/internal/store"
	"sjsage522/pricewatcher/internal/tracker"
	"sjsage522/pricewatcher/logger"
	"sjsage522/pricewatcher/services/cache"

	"github.com/redis/go-redis/v9"
)

// Services holds all the initialized services
type Services struct {
	Redis       *redis.Client
	Cache       cache.CacheService
	Fetcher     scraper.Fetcher
	Store       *store.ProductStore
	Notifier    notify.Notifier
	Streams     *notify.RedisStreamNotifier
	Metrics     *metrics.Registry
	Journal     *helpers.Logger
	Tracker     *tracker.Orchestrator
	closeBrowse func() error
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.closeBrowse != nil {
		if err := s.closeBrowse(); err != nil {
			logger.Warn("Failed to close browser: %v", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn("Failed to close redis client: %v", err)
		}
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{
		Metrics: metrics.NewRegistry(),
		Journal: helpers.NewLogger(cfg.ErrorLogFile),
	}

	if cfg.StoreBackend == config.StoreRedis || cfg.NotifyRedis {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		services.Redis = client
		logger.Info("Connected to Redis at %s (DB: %d)", cfg.RedisAddr, cfg.RedisDB)
	}

	// Initialize cache service
	if cfg.MemcacheAddr != "" {
		memcache := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := memcache.Ping(); err != nil {
			logger.Warn("Memcache at %s unreachable, using in-process cooldowns: %v", cfg.MemcacheAddr, err)
			services.Cache = cache.NewMemoryCache()
		} else {
			services.Cache = memcache
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	} else {
		services.Cache = cache.NewMemoryCache()
	}

	fetcher, err := newFetcher(cfg, services)
	if err != nil {
		services.Cleanup()
		return nil, err
	}
	services.Fetcher = scraper.NewCooldownFetcher(fetcher, services.Cache, cfg.RateLimitBlock)

	var records store.RecordStore
	switch cfg.StoreBackend {
	case config.StoreRedis:
		records = store.NewRedisRecordStore(services.Redis, cfg.RedisStoreKey)
	default:
		records = store.NewFileRecordStore(cfg.StorePath)
	}
	services.Store, err = store.Open(ctx, records)
	if err != nil {
		services.Cleanup()
		return nil, fmt.Errorf("failed to open product store: %w", err)
	}
	logger.Info("Loaded %d tracked products from %s store", services.Store.Len(), cfg.StoreBackend)

	services.Notifier = newNotifier(cfg, services)

	opts := tracker.DefaultOptions()
	opts.PacingDelay = cfg.PacingDelay
	opts.Retry.MaxAttempts = cfg.NavMaxAttempts
	opts.Retry.BaseDelay = cfg.NavBaseDelay
	opts.Retry.Goto.Timeout = cfg.NavTimeout

	services.Tracker = tracker.New(tracker.Dependencies{
		Store:    services.Store,
		Fetcher:  services.Fetcher,
		Notifier: services.Notifier,
		Metrics:  services.Metrics,
		Journal:  services.Journal,
	}, opts)

	return services, nil
}

func newFetcher(cfg *config.Config, services *Services) (scraper.Fetcher, error) {
	switch cfg.Fetcher {
	case config.FetcherBrowserless:
		logger.Info("Using browserless fetcher at %s", cfg.BrowserlessAddr)
		return scraper.NewBrowserlessFetcher(cfg.BrowserlessAddr, cfg.UserAgent), nil
	case config.FetcherRod:
		rodFetcher := scraper.NewRodFetcher(cfg.RodControlURL, cfg.UserAgent)
		services.closeBrowse = rodFetcher.Close
		logger.Info("Using rod fetcher")
		return rodFetcher, nil
	case config.FetcherHTTP, "":
		return scraper.NewHTTPFetcher(cfg.UserAgent), nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q", cfg.Fetcher)
	}
}

func newNotifier(cfg *config.Config, services *Services) notify.Notifier {
	var notifiers notify.Multi

	if cfg.TelegramEnabled() {
		notifiers = append(notifiers, notify.NewTelegramNotifier(cfg.TelegramAPIURL, cfg.BotToken, cfg.ChatID))
		logger.Info("Telegram alerts enabled")
	} else {
		logger.Warn("BOT_TOKEN or CHAT_ID not set, price alerts go to the log only")
	}

	if cfg.NotifyRedis && services.Redis != nil {
		services.Streams = notify.NewRedisStreamNotifier(services.Redis, cfg.RedisStream, cfg.RedisStreamCount, cfg.RedisStreamMaxLength)
		notifiers = append(notifiers, services.Streams)
		logger.Info("Publishing price changes to redis stream %s", cfg.RedisStream)
	}

	if len(notifiers) == 0 {
		return notify.NewLogNotifier()
	}
	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return notifiers
}

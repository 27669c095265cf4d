package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	apperrors "sjsage522/pricewatcher/pkg/errors"
)

// Fetcher kinds
const (
	FetcherHTTP        = "http"
	FetcherBrowserless = "browserless"
	FetcherRod         = "rod"
)

// Store backends
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Config represents the application configuration
type Config struct {
	// Scheduling
	ScrapeInterval time.Duration
	PacingDelay    time.Duration

	// Navigation
	NavTimeout     time.Duration
	NavMaxAttempts int
	NavBaseDelay   time.Duration
	UserAgent      string

	// Page fetcher
	Fetcher         string
	BrowserlessAddr string
	RodControlURL   string

	// Record store
	StoreBackend  string
	StorePath     string
	RedisAddr     string
	RedisDB       int
	RedisStoreKey string

	// Redis stream notifications
	NotifyRedis          bool
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Telegram notifications
	BotToken       string
	ChatID         string
	TelegramAPIURL string

	// Memcache configuration, empty disables per-site cooldowns
	MemcacheAddr   string
	RateLimitBlock time.Duration

	// Observability
	MetricsAddr  string
	ErrorLogFile string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		ScrapeInterval:       time.Duration(getEnvInt("SCRAPE_INTERVAL_SECONDS", 10)) * time.Second,
		PacingDelay:          time.Duration(getEnvInt("PACING_DELAY_MS", 2000)) * time.Millisecond,
		NavTimeout:           time.Duration(getEnvInt("NAV_TIMEOUT_SECONDS", 30)) * time.Second,
		NavMaxAttempts:       getEnvInt("NAV_MAX_ATTEMPTS", 3),
		NavBaseDelay:         time.Duration(getEnvInt("NAV_BASE_DELAY_MS", 2000)) * time.Millisecond,
		UserAgent:            getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"),
		Fetcher:              getEnv("FETCHER", FetcherHTTP),
		BrowserlessAddr:      getEnv("BROWSERLESS_ADDR", ""),
		RodControlURL:        getEnv("ROD_CONTROL_URL", ""),
		StoreBackend:         getEnv("STORE_BACKEND", StoreFile),
		StorePath:            getEnv("STORE_PATH", "db.json"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStoreKey:        getEnv("REDIS_STORE_KEY", "pricewatch:db"),
		NotifyRedis:          getEnvBool("NOTIFY_REDIS", false),
		RedisStream:          getEnv("REDIS_STREAM", "price_changes"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		BotToken:             getEnv("BOT_TOKEN", ""),
		ChatID:               getEnv("CHAT_ID", ""),
		TelegramAPIURL:       getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RateLimitBlock:       time.Duration(getEnvInt("RATE_LIMIT_BLOCK_SECONDS", 500)) * time.Second,
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		ErrorLogFile:         getEnv("ERROR_LOG_FILE", ""),
		Environment:          getEnv("PRICEWATCH_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the services cannot start with
func (c *Config) Validate() error {
	if c.ScrapeInterval <= 0 {
		return apperrors.NewConfiguration("SCRAPE_INTERVAL_SECONDS must be positive", nil)
	}
	if c.PacingDelay < 0 {
		return apperrors.NewConfiguration("PACING_DELAY_MS must not be negative", nil)
	}
	if c.NavTimeout <= 0 {
		return apperrors.NewConfiguration("NAV_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.NavMaxAttempts < 1 {
		return apperrors.NewConfiguration("NAV_MAX_ATTEMPTS must be at least 1", nil)
	}

	switch c.Fetcher {
	case FetcherHTTP, FetcherRod:
	case FetcherBrowserless:
		if c.BrowserlessAddr == "" {
			return apperrors.NewConfiguration("BROWSERLESS_ADDR is required for the browserless fetcher", nil)
		}
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unknown FETCHER %q", c.Fetcher), nil)
	}

	switch c.StoreBackend {
	case StoreFile:
		if c.StorePath == "" {
			return apperrors.NewConfiguration("STORE_PATH is required for the file store", nil)
		}
	case StoreRedis:
		if c.RedisAddr == "" || c.RedisStoreKey == "" {
			return apperrors.NewConfiguration("REDIS_ADDR and REDIS_STORE_KEY are required for the redis store", nil)
		}
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unknown STORE_BACKEND %q", c.StoreBackend), nil)
	}

	if c.NotifyRedis && c.RedisStreamCount < 1 {
		return apperrors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	if (c.BotToken == "") != (c.ChatID == "") {
		return apperrors.NewConfiguration("BOT_TOKEN and CHAT_ID must be set together", nil)
	}
	return nil
}

// TelegramEnabled reports whether Telegram credentials are configured
func (c *Config) TelegramEnabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

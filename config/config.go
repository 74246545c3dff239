package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Crawl     CrawlConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
	Export    ExportConfig
	Archive   ArchiveConfig
	Webhook   WebhookConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// DefaultProxy is the proxy URL used for all browser traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// UserAgents is the pool a user agent is picked from at launch.
	UserAgents []string

	// AcceptLanguage is sent as an extra header on every tab.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// SearchURL is the results page; %s receives the escaped search phrase.
	SearchURL string // default: "https://www.google.com/maps/search/%s"

	// BlockedResourceTypes lists resource types blocked in detail and website tabs.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockTrackers drops requests to known ad and analytics hosts in tabs.
	BlockTrackers bool // default: true
}

// CrawlConfig controls the crawl loop timings and policies.
type CrawlConfig struct {
	// NavigationTimeout bounds the initial search navigation.
	NavigationTimeout time.Duration // default: 20s

	// SettleDelay is waited after the initial search navigation.
	SettleDelay time.Duration // default: 5s

	// RetryBackoff is waited after a browser failure before recreating it.
	RetryBackoff time.Duration // default: 5s

	// MaxScrollRetries is the number of consecutive empty views before giving up.
	MaxScrollRetries int // default: 20

	// ScrollPause is waited after each scroll.
	ScrollPause time.Duration // default: 2s

	// DetailTimeout bounds the wait for a detail page heading.
	DetailTimeout time.Duration // default: 15s

	// WebsiteTimeout bounds the wait for a website body.
	WebsiteTimeout time.Duration // default: 10s

	// WebsiteSettle is waited after a website body appears.
	WebsiteSettle time.Duration // default: 2s

	// MinDelay and MaxDelay bound the randomized pacing delay per detail page.
	MinDelay time.Duration // default: 2s
	MaxDelay time.Duration // default: 5s

	// MaxBrowserRestarts caps browser recreations per run; 0 means unbounded.
	MaxBrowserRestarts int // default: 0

	// WebsiteFetchMode is "browser", "http" or "auto".
	WebsiteFetchMode string // default: "browser"

	// HTTPTimeout bounds the HTTP website fetch.
	HTTPTimeout time.Duration // default: 10s

	// WebsiteCacheTTL is how long website contacts are reused. 0 disables caching.
	WebsiteCacheTTL time.Duration // default: 1h

	// WebsiteCacheEntries caps the website contact cache.
	WebsiteCacheEntries int // default: 1000

	// CheckpointDir is where recovery files are written.
	CheckpointDir string // default: "output"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication on the crawl routes.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key or client IP.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key or client IP.
	Burst int // default: 10
}

// CORSConfig controls cross-origin access for the dashboard and extension.
type CORSConfig struct {
	// AllowedOrigins lists permitted origins; "*" allows any.
	AllowedOrigins []string // default: ["*"]
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// ExportConfig controls workbook output.
type ExportConfig struct {
	// OutputDir receives exported workbooks.
	OutputDir string // default: "output"
}

// ArchiveConfig controls the SQLite run archive.
type ArchiveConfig struct {
	// DBPath is the SQLite file; empty disables archiving.
	DBPath string
}

// WebhookConfig controls completion notifications.
type WebhookConfig struct {
	// URL receives a POST when a run completes; empty disables delivery.
	URL string

	// Secret signs payloads with HMAC-SHA256 when set.
	Secret string
}

// DefaultUserAgents is the launch user agent pool.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/120.0.0.0 Safari/537.36",
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	outputDir := envOr("LEADSCOUT_OUTPUT_DIR", "output")
	return &Config{
		Server: ServerConfig{
			Host: envOr("LEADSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("LEADSCOUT_PORT", 8000),
			Mode: envOr("LEADSCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("LEADSCOUT_HEADLESS", true),
			DefaultProxy:   os.Getenv("LEADSCOUT_PROXY"),
			NoSandbox:      envBoolOr("LEADSCOUT_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("LEADSCOUT_BROWSER_BIN"),
			UserAgents:     envSliceOr("LEADSCOUT_USER_AGENTS", DefaultUserAgents),
			AcceptLanguage: envOr("LEADSCOUT_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			SearchURL:      envOr("LEADSCOUT_SEARCH_URL", "https://www.google.com/maps/search/%s"),
			BlockedResourceTypes: envSliceOr("LEADSCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockTrackers: envBoolOr("LEADSCOUT_BLOCK_TRACKERS", true),
		},
		Crawl: CrawlConfig{
			NavigationTimeout:   envDurationOr("LEADSCOUT_NAV_TIMEOUT", 20*time.Second),
			SettleDelay:         envDurationOr("LEADSCOUT_SETTLE_DELAY", 5*time.Second),
			RetryBackoff:        envDurationOr("LEADSCOUT_RETRY_BACKOFF", 5*time.Second),
			MaxScrollRetries:    envIntOr("LEADSCOUT_MAX_SCROLL_RETRIES", 20),
			ScrollPause:         envDurationOr("LEADSCOUT_SCROLL_PAUSE", 2*time.Second),
			DetailTimeout:       envDurationOr("LEADSCOUT_DETAIL_TIMEOUT", 15*time.Second),
			WebsiteTimeout:      envDurationOr("LEADSCOUT_WEBSITE_TIMEOUT", 10*time.Second),
			WebsiteSettle:       envDurationOr("LEADSCOUT_WEBSITE_SETTLE", 2*time.Second),
			MinDelay:            envDurationOr("LEADSCOUT_MIN_DELAY", 2*time.Second),
			MaxDelay:            envDurationOr("LEADSCOUT_MAX_DELAY", 5*time.Second),
			MaxBrowserRestarts:  envIntOr("LEADSCOUT_MAX_BROWSER_RESTARTS", 0),
			WebsiteFetchMode:    envOr("LEADSCOUT_WEBSITE_FETCH_MODE", "browser"),
			HTTPTimeout:         envDurationOr("LEADSCOUT_HTTP_TIMEOUT", 10*time.Second),
			WebsiteCacheTTL:     envDurationOr("LEADSCOUT_WEBSITE_CACHE_TTL", time.Hour),
			WebsiteCacheEntries: envIntOr("LEADSCOUT_WEBSITE_CACHE_ENTRIES", 1000),
			CheckpointDir:       envOr("LEADSCOUT_CHECKPOINT_DIR", outputDir),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("LEADSCOUT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("LEADSCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("LEADSCOUT_RATE_RPS", 5.0),
			Burst:             envIntOr("LEADSCOUT_RATE_BURST", 10),
		},
		CORS: CORSConfig{
			AllowedOrigins: envSliceOr("LEADSCOUT_CORS_ORIGINS", []string{"*"}),
		},
		Log: LogConfig{
			Level:  envOr("LEADSCOUT_LOG_LEVEL", "info"),
			Format: envOr("LEADSCOUT_LOG_FORMAT", "json"),
		},
		Export: ExportConfig{
			OutputDir: outputDir,
		},
		Archive: ArchiveConfig{
			DBPath: os.Getenv("LEADSCOUT_ARCHIVE_DB"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("LEADSCOUT_WEBHOOK_URL"),
			Secret: os.Getenv("LEADSCOUT_WEBHOOK_SECRET"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

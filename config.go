package bird

import (
	"log/slog"
	"time"

	"github.com/anatolykoptev/go-bird/features"
	"github.com/anatolykoptev/go-bird/queryids"
	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// ClientConfig holds all configuration for the client.
type ClientConfig struct {
	// AuthToken and CT0 are the session cookies. Both are required.
	AuthToken string
	CT0       string

	// CookieHeader overrides the cookie header built from AuthToken and CT0.
	CookieHeader string

	// UserAgent defaults to a desktop Chrome string.
	UserAgent string

	// Timeout bounds each HTTP request. Zero or negative means no timeout.
	Timeout time.Duration

	// QuoteDepth is how many levels of quoted tweets are resolved.
	// Nil means 1, negative values mean 0.
	QuoteDepth *int

	// QueryIDs is the shared query id cache. When nil a store is created from
	// QueryIDCachePath and QueryIDTTL.
	QueryIDs         *queryids.Store
	QueryIDCachePath string
	QueryIDTTL       time.Duration

	// Features resolves feature flag sets. When nil a resolver is created from
	// FeaturesCachePath and FeaturesJSON.
	Features          *features.Resolver
	FeaturesCachePath string
	FeaturesJSON      string

	// Transport overrides the go-stealth browser client.
	Transport Doer

	// Proxy is passed to the default transport.
	Proxy string

	// RateLimit configures per-operation rate limit tracking.
	RateLimit ratelimit.Config

	// Jitter adds a short random pause before each request.
	Jitter bool

	// MetricsHook is called on each API request for external metrics collection.
	// endpoint is the operation name, success and rateLimited indicate the outcome.
	MetricsHook func(endpoint string, success, rateLimited bool)

	Logger *slog.Logger

	// test hooks
	sleep func(time.Duration)
	rand  func() float64
}

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *ClientConfig) defaults() {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.CookieHeader == "" {
		cfg.CookieHeader = "auth_token=" + cfg.AuthToken + "; ct0=" + cfg.CT0
	}
	if cfg.RateLimit.RequestsPerWindow == 0 {
		cfg.RateLimit = ratelimit.DefaultConfig
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueryIDs == nil {
		cfg.QueryIDs = queryids.New(queryids.Options{
			CachePath: cfg.QueryIDCachePath,
			TTL:       cfg.QueryIDTTL,
			Logger:    cfg.Logger,
		})
	}
	if cfg.Features == nil {
		cfg.Features = features.NewResolver(features.Options{
			CachePath: cfg.FeaturesCachePath,
			EnvJSON:   cfg.FeaturesJSON,
			Logger:    cfg.Logger,
		})
	}
}

// quoteDepth normalizes QuoteDepth.
func (cfg *ClientConfig) quoteDepth() int {
	if cfg.QuoteDepth == nil {
		return 1
	}
	return max(0, *cfg.QuoteDepth)
}

// IntPtr is a helper for optional integer fields such as QuoteDepth.
func IntPtr(v int) *int { return &v }

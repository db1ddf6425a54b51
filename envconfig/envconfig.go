// Package envconfig builds a client configuration from BIRD_* environment
// variables and optional .env files.
package envconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	bird "github.com/anatolykoptev/go-bird"
)

// Env mirrors the recognised environment variables.
type Env struct {
	AuthToken string `env:"AUTH_TOKEN"`
	CT0       string `env:"CT0"`

	QueryIDsCache string `env:"BIRD_QUERY_IDS_CACHE"`
	QueryIDsTTLMs int64  `env:"BIRD_QUERY_IDS_TTL_MS"`

	// FeaturesCache wins over FeaturesPath when both are set.
	FeaturesCache string `env:"BIRD_FEATURES_CACHE"`
	FeaturesPath  string `env:"BIRD_FEATURES_PATH"`
	FeaturesJSON  string `env:"BIRD_FEATURES_JSON"`

	TimeoutMs  int64  `env:"BIRD_TIMEOUT_MS"`
	QuoteDepth *int   `env:"BIRD_QUOTE_DEPTH"`
	Proxy      string `env:"BIRD_PROXY"`
}

// Load reads the given .env files, skipping ones that are missing, and then
// parses the process environment. Variables already set are not overridden.
// A malformed file is an error.
func Load(files ...string) (Env, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}

// Parse reads the variables from environ instead of the process environment.
func Parse(environ map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}

// ClientConfig converts e into a bird.ClientConfig. Unset values are left
// zero so the client applies its own defaults.
func (e Env) ClientConfig() bird.ClientConfig {
	cfg := bird.ClientConfig{
		AuthToken:         strings.TrimSpace(e.AuthToken),
		CT0:               strings.TrimSpace(e.CT0),
		QueryIDCachePath:  expandPath(e.QueryIDsCache),
		FeaturesCachePath: expandPath(firstSet(e.FeaturesCache, e.FeaturesPath)),
		FeaturesJSON:      strings.TrimSpace(e.FeaturesJSON),
		Proxy:             strings.TrimSpace(e.Proxy),
		QuoteDepth:        e.QuoteDepth,
	}
	if e.QueryIDsTTLMs > 0 {
		cfg.QueryIDTTL = time.Duration(e.QueryIDsTTLMs) * time.Millisecond
	}
	if e.TimeoutMs > 0 {
		cfg.Timeout = time.Duration(e.TimeoutMs) * time.Millisecond
	}
	return cfg
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// expandPath resolves a leading ~ and makes p absolute. Empty stays empty.
func expandPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

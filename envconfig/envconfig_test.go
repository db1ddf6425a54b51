package envconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ClientConfig(t *testing.T) {
	e, err := Parse(map[string]string{
		"AUTH_TOKEN":            " tok ",
		"CT0":                   "csrf",
		"BIRD_QUERY_IDS_CACHE":  "/tmp/ids.json",
		"BIRD_QUERY_IDS_TTL_MS": "60000",
		"BIRD_FEATURES_PATH":    "/tmp/path.json",
		"BIRD_FEATURES_CACHE":   "/tmp/cache.json",
		"BIRD_FEATURES_JSON":    `{"global":{"a":true}}`,
		"BIRD_TIMEOUT_MS":       "1500",
		"BIRD_QUOTE_DEPTH":      "2",
		"BIRD_PROXY":            "socks5://127.0.0.1:1080",
	})
	require.NoError(t, err)

	cfg := e.ClientConfig()
	assert.Equal(t, "tok", cfg.AuthToken)
	assert.Equal(t, "csrf", cfg.CT0)
	assert.Equal(t, "/tmp/ids.json", cfg.QueryIDCachePath)
	assert.Equal(t, time.Minute, cfg.QueryIDTTL)
	assert.Equal(t, "/tmp/cache.json", cfg.FeaturesCachePath)
	assert.Equal(t, `{"global":{"a":true}}`, cfg.FeaturesJSON)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
	require.NotNil(t, cfg.QuoteDepth)
	assert.Equal(t, 2, *cfg.QuoteDepth)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Proxy)
}

func TestParse_FeaturesPathFallback(t *testing.T) {
	e, err := Parse(map[string]string{"BIRD_FEATURES_PATH": "/tmp/path.json"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/path.json", e.ClientConfig().FeaturesCachePath)
}

func TestParse_EmptyLeavesDefaults(t *testing.T) {
	e, err := Parse(map[string]string{})
	require.NoError(t, err)

	cfg := e.ClientConfig()
	assert.Empty(t, cfg.QueryIDCachePath)
	assert.Empty(t, cfg.FeaturesCachePath)
	assert.Zero(t, cfg.Timeout)
	assert.Zero(t, cfg.QueryIDTTL)
}

func TestParse_InvalidNumber(t *testing.T) {
	_, err := Parse(map[string]string{"BIRD_TIMEOUT_MS": "soon"})
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "bird", "ids.json"), expandPath(" ~/bird/ids.json "))
	assert.Equal(t, "", expandPath("  "))

	abs, err := filepath.Abs("ids.json")
	require.NoError(t, err)
	assert.Equal(t, abs, expandPath("ids.json"))
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BIRD_PROXY=http://proxy.local:8080\n"), 0o600))

	t.Setenv("BIRD_PROXY", "")
	require.NoError(t, os.Unsetenv("BIRD_PROXY"))

	e, err := Load(filepath.Join(dir, "missing.env"), path)
	require.NoError(t, err)
	assert.Equal(t, "http://proxy.local:8080", e.Proxy)
}

func TestLoad_MalformedDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BIRD_PROXY=\"http://unterminated\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestManager_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	cfg := Default()
	require.NoError(t, NewManager("").Load(cfg, nil))

	assert.Equal(t, "wallhaven", cfg.Source)
	assert.Equal(t, 10, cfg.Limit)
	assert.Equal(t, "./wallpapers", cfg.OutputDir)
	assert.Equal(t, 1.0, cfg.RateLimit)
	assert.Equal(t, 3, cfg.MaxConcurrent)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "landscape", cfg.Orientation)
}

func TestManager_Precedence(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "config.yaml", `
source: unsplash
limit: 20
rate_limit: 2.5
output_dir: /tmp/from-file
backoff_base: 2s
api_keys:
  unsplash: file-key
  pixabay: file-pixabay
provider_limits:
  wallhaven:
    rate_limit: 0.5
    max_in_flight: 1
events:
  kafka:
    brokers: [a:9092, b:9092]
`)

	t.Setenv("UNSPLASH_API_KEY", "plain-env-key")
	t.Setenv("WALLPAPER_LIMIT", "30")
	t.Setenv("WALLPAPER_EVENTS__NATS__URL", "nats://events:4222")
	t.Setenv("WALLPAPER_OUTPUT_DIR", "/tmp/from-env")

	cfg := Default()
	err := NewManager(path).Load(cfg, map[string]any{
		"limit":   5,
		"verbose": true,
	})
	require.NoError(t, err)

	assert.Equal(t, "unsplash", cfg.Source)
	assert.Equal(t, 5, cfg.Limit, "flags beat the environment")
	assert.Equal(t, "/tmp/from-env", cfg.OutputDir, "environment beats the file")
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 2*time.Second, cfg.BackoffBase)
	assert.Equal(t, "plain-env-key", cfg.APIKey(download.ProviderUnsplash))
	assert.Equal(t, "file-pixabay", cfg.APIKey(download.ProviderPixabay))
	assert.Equal(t, "nats://events:4222", cfg.Events.NATS.URL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level, "verbose forces debug")

	defaults, overrides := cfg.RateLimits()
	assert.Equal(t, 2500*time.Millisecond, defaults.Interval)
	assert.Equal(t, 500*time.Millisecond, overrides[download.ProviderWallhaven].Interval)
	assert.Equal(t, 1, overrides[download.ProviderWallhaven].MaxInFlight)
}

func TestManager_PrefixedKeyBeatsPlainKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PIXABAY_API_KEY", "plain")
	t.Setenv("WALLPAPER_API_KEYS__PIXABAY", "prefixed")

	cfg := Default()
	require.NoError(t, NewManager("").Load(cfg, nil))
	assert.Equal(t, "prefixed", cfg.APIKey(download.ProviderPixabay))
}

func TestManager_DotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	envFile := writeFile(t, ".env", "WALLHAVEN_API_KEY=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("WALLHAVEN_API_KEY") })

	m := NewManager("")
	m.envFiles = []string{envFile, filepath.Join(t.TempDir(), "missing.env")}

	cfg := Default()
	require.NoError(t, m.Load(cfg, nil))
	assert.Equal(t, "from-dotenv", cfg.APIKey(download.ProviderWallhaven))
}

func TestManager_ExplicitFileMustExist(t *testing.T) {
	err := NewManager(filepath.Join(t.TempDir(), "nope.yaml")).Load(Default(), nil)
	assert.True(t, apperrors.IsConfig(err))
}

func TestManager_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "config.toml", "limit = 3")
	err := NewManager(path).Load(Default(), nil)
	assert.True(t, apperrors.IsConfig(err))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		check  func(error) bool
	}{
		{"unknown source", func(c *Config) { c.Source = "flickr" }, apperrors.IsConfig},
		{"zero limit", func(c *Config) { c.Limit = 0 }, apperrors.IsConfig},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, apperrors.IsRateLimitConfig},
		{"no workers", func(c *Config) { c.MaxConcurrent = 0 }, apperrors.IsConfig},
		{"bad orientation", func(c *Config) { c.Orientation = "diagonal" }, apperrors.IsConfig},
		{"bad resolution", func(c *Config) { c.Resolution = "big" }, apperrors.IsConfig},
		{"bad driver", func(c *Config) { c.Events.Driver = "redis" }, apperrors.IsConfig},
		{"unknown api key provider", func(c *Config) { c.APIKeys = map[string]string{"flickr": "x"} }, apperrors.IsConfig},
		{"negative provider rate", func(c *Config) {
			r := -0.5
			c.ProviderLimits = map[string]ProviderLimit{"pixabay": {RateLimit: &r}}
		}, apperrors.IsRateLimitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestConfig_SearchQueries(t *testing.T) {
	cfg := Default()
	cfg.Source = "all"
	cfg.Query = "mountain, lake"
	cfg.Queries = []string{"forest", " "}
	cfg.Category = "nature"
	cfg.Orientation = "Landscape"

	queries := cfg.SearchQueries()
	require.Len(t, queries, 6)
	assert.Equal(t, download.ProviderUnsplash, queries[0].Provider)
	assert.Equal(t, []string{"mountain", "lake"}, queries[0].Keywords)
	assert.Equal(t, []string{"forest"}, queries[1].Keywords)
	assert.Equal(t, "landscape", queries[0].Orientation)
	assert.Equal(t, "nature", queries[5].Category)

	cfg.Source = "pixabay"
	cfg.Query = ""
	cfg.Queries = nil
	queries = cfg.SearchQueries()
	require.Len(t, queries, 1)
	assert.Empty(t, queries[0].Keywords)
}

func TestConfig_EngineOptions(t *testing.T) {
	cfg := Default()
	cfg.MaxConcurrent = 7
	cfg.Force = true

	opts := cfg.EngineOptions()
	assert.Equal(t, 7, opts.Workers)
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, time.Second, opts.Backoff.Base)
	assert.True(t, opts.Force)
}

func TestConfig_OrientationAny(t *testing.T) {
	cfg := Default()
	require.Equal(t, "landscape", cfg.SearchQueries()[0].Orientation)

	cfg.Orientation = "Any"
	require.NoError(t, cfg.Validate())
	queries := cfg.SearchQueries()
	require.Len(t, queries, 1)
	assert.Empty(t, queries[0].Orientation)
}

package config

import (
	"strings"
	"time"

	"github.com/GaseousIce/wallpaper-scraper/internal/backoff"
	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	"github.com/GaseousIce/wallpaper-scraper/internal/engine"
	"github.com/GaseousIce/wallpaper-scraper/internal/ratelimit"
)

// Providers returns the providers selected by Source
func (c *Config) Providers() []download.Provider {
	providers, err := download.ParseSource(c.Source)
	if err != nil {
		return nil
	}
	return providers
}

// SearchQueries expands the configured queries for every selected provider.
// Keywords are split on whitespace and commas; no query at all searches the
// provider's latest wallpapers.
func (c *Config) SearchQueries() []download.SearchQuery {
	texts := make([]string, 0, len(c.Queries)+1)
	if strings.TrimSpace(c.Query) != "" {
		texts = append(texts, c.Query)
	}
	for _, q := range c.Queries {
		if strings.TrimSpace(q) != "" {
			texts = append(texts, q)
		}
	}
	if len(texts) == 0 {
		texts = append(texts, "")
	}

	var queries []download.SearchQuery
	for _, p := range c.Providers() {
		for _, text := range texts {
			queries = append(queries, download.SearchQuery{
				Provider:    p,
				Keywords:    splitKeywords(text),
				Category:    c.Category,
				Limit:       c.Limit,
				Orientation: c.orientation(),
				Resolution:  c.Resolution,
			})
		}
	}
	return queries
}

func splitKeywords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// APIKey returns the key configured for p
func (c *Config) APIKey(p download.Provider) string {
	return strings.TrimSpace(c.APIKeys[string(p)])
}

// Endpoint returns the base URL override for p, if any
func (c *Config) Endpoint(p download.Provider) string {
	return c.Endpoints[string(p)]
}

// RateLimits returns the default limiter configuration and the per provider
// overrides.
func (c *Config) RateLimits() (ratelimit.Config, map[download.Provider]ratelimit.Config) {
	defaults := ratelimit.Config{
		Interval:    seconds(c.RateLimit),
		MaxInFlight: c.MaxInFlight,
	}

	overrides := make(map[download.Provider]ratelimit.Config, len(c.ProviderLimits))
	for name, limit := range c.ProviderLimits {
		p, err := download.ParseProvider(name)
		if err != nil {
			continue
		}
		cfg := defaults
		if limit.RateLimit != nil {
			cfg.Interval = seconds(*limit.RateLimit)
		}
		if limit.MaxInFlight > 0 {
			cfg.MaxInFlight = limit.MaxInFlight
		}
		overrides[p] = cfg
	}
	return defaults, overrides
}

// EngineOptions converts the run settings into engine options
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Workers:     c.MaxConcurrent,
		MaxAttempts: c.MaxAttempts,
		Backoff:     backoff.Policy{Base: c.BackoffBase, Max: c.BackoffMax},
		RunTimeout:  c.RunTimeout,
		GracePeriod: c.GracePeriod,
		Force:       c.Force,
	}
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Log.Environment == "development" || c.Log.Environment == "dev"
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// orientation returns the orientation filter of the queries. "any" turns
// the filter off.
func (c *Config) orientation() string {
	o := strings.ToLower(strings.TrimSpace(c.Orientation))
	if o == OrientationAny {
		return ""
	}
	return o
}

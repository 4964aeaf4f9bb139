package ratelimit

import (
	"sync"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
)

// Registry hands out one independent limiter per provider
type Registry struct {
	defaults  Config
	overrides map[download.Provider]Config

	mu       sync.Mutex
	limiters map[download.Provider]*Limiter
}

// NewRegistry validates the defaults and every override up front so that
// For never fails.
func NewRegistry(defaults Config, overrides map[download.Provider]Config) (*Registry, error) {
	if err := defaults.Validate("default"); err != nil {
		return nil, err
	}
	for p, cfg := range overrides {
		if err := cfg.Validate(string(p)); err != nil {
			return nil, err
		}
	}

	return &Registry{
		defaults:  defaults,
		overrides: overrides,
		limiters:  make(map[download.Provider]*Limiter),
	}, nil
}

// ConfigFor returns the effective configuration for p
func (r *Registry) ConfigFor(p download.Provider) Config {
	if cfg, ok := r.overrides[p]; ok {
		return cfg
	}
	return r.defaults
}

// For returns the limiter of p, creating it on first use
func (r *Registry) For(p download.Provider) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[p]; ok {
		return l
	}

	// Configs were validated in NewRegistry.
	l, _ := New(string(p), r.ConfigFor(p))
	r.limiters[p] = l
	return l
}

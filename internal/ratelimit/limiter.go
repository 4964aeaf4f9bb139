// Package ratelimit paces outbound requests per provider.
//
// A Limiter combines a FIFO in-flight cap with a minimum interval between
// request starts. Callers hold the granted slot until the response body has
// been consumed and closed.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// Defaults used when no provider specific limits are configured
const (
	DefaultInterval    = time.Second
	DefaultMaxInFlight = 3
)

// Config is the immutable configuration of one limiter
type Config struct {
	// Interval is the minimum time between two request starts; 0 disables pacing.
	Interval time.Duration
	// MaxInFlight caps concurrently held slots.
	MaxInFlight int
}

// DefaultConfig returns the default limits
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, MaxInFlight: DefaultMaxInFlight}
}

// Validate returns a rate limit configuration error for invalid values
func (c Config) Validate(provider string) error {
	if c.Interval < 0 {
		return apperrors.RateLimitConfig(provider, fmt.Sprintf("interval must not be negative, got %s", c.Interval))
	}
	if c.MaxInFlight < 1 {
		return apperrors.RateLimitConfig(provider, fmt.Sprintf("max in-flight must be at least 1, got %d", c.MaxInFlight))
	}
	return nil
}

// Limiter grants permission to issue one request at a time
type Limiter struct {
	provider string
	cfg      Config
	slots    *semaphore.Weighted
	pace     *rate.Limiter

	inFlight    atomic.Int64
	maxObserved atomic.Int64
}

// New creates a limiter after validating cfg
func New(provider string, cfg Config) (*Limiter, error) {
	if err := cfg.Validate(provider); err != nil {
		return nil, err
	}

	l := &Limiter{
		provider: provider,
		cfg:      cfg,
		slots:    semaphore.NewWeighted(int64(cfg.MaxInFlight)),
	}
	if cfg.Interval > 0 {
		l.pace = rate.NewLimiter(rate.Every(cfg.Interval), 1)
	}
	return l, nil
}

// Provider returns the provider the limiter paces
func (l *Limiter) Provider() string { return l.provider }

// Config returns the limiter configuration
func (l *Limiter) Config() Config { return l.cfg }

// InFlight returns the number of currently held slots
func (l *Limiter) InFlight() int { return int(l.inFlight.Load()) }

// MaxObserved returns the highest number of slots held at once
func (l *Limiter) MaxObserved() int { return int(l.maxObserved.Load()) }

// Acquire blocks until a request may start. Waiters are served in arrival
// order. The only failure is ctx ending before the grant. The returned
// release func is safe to call more than once.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	if l.pace != nil {
		if err := l.pace.Wait(ctx); err != nil {
			l.slots.Release(1)
			// rate.Limiter reports a deadline that is too close before it
			// expires; surface the context error either way.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
	}

	n := l.inFlight.Add(1)
	for {
		peak := l.maxObserved.Load()
		if n <= peak || l.maxObserved.CompareAndSwap(peak, n) {
			break
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.inFlight.Add(-1)
			l.slots.Release(1)
		})
	}, nil
}

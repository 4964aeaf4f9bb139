// Package provider implements download.Source for the supported wallpaper APIs.
//
// Every request, searches and image downloads alike, passes through the
// provider's ratelimit.Limiter. A slot granted for a download is held until
// the returned body is closed.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/backoff"
	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	"github.com/GaseousIce/wallpaper-scraper/internal/ratelimit"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "wallpaper-scraper/1.0"

// Options configures a provider client
type Options struct {
	// APIKey authenticates against the provider API.
	APIKey string
	// BaseURL overrides the production API endpoint.
	BaseURL string
	// HTTPClient is shared by every provider of a process.
	HTTPClient *http.Client
	// Limiter paces every request; a default limiter is created when nil.
	Limiter   *ratelimit.Limiter
	Logger    *zap.Logger
	UserAgent string
	// SearchAttempts bounds retries of one result page.
	SearchAttempts int
	Backoff        backoff.Policy
}

// client is the transport shared by the provider variants
type client struct {
	provider  download.Provider
	http      *http.Client
	limiter   *ratelimit.Limiter
	logger    *zap.Logger
	userAgent string
	attempts  int
	backoff   backoff.Policy
	wait      func(ctx context.Context, d time.Duration) error
}

func newClient(p download.Provider, opts Options) (*client, error) {
	c := &client{
		provider:  p,
		http:      opts.HTTPClient,
		limiter:   opts.Limiter,
		logger:    opts.Logger,
		userAgent: opts.UserAgent,
		attempts:  opts.SearchAttempts,
		backoff:   opts.Backoff,
		wait:      backoff.Sleep,
	}

	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named(string(p))
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.attempts <= 0 {
		c.attempts = 3
	}
	if c.limiter == nil {
		l, err := ratelimit.New(string(p), ratelimit.DefaultConfig())
		if err != nil {
			return nil, err
		}
		c.limiter = l
	}
	return c, nil
}

// Provider returns the provider served by the client
func (c *client) Provider() download.Provider {
	return c.provider
}

// do issues one request holding a limiter slot. On success the caller owns
// resp.Body and must call release after closing it.
func (c *client) do(ctx context.Context, rawURL string, header http.Header) (*http.Response, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrorTypeInternal, "create request", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", c.userAgent)

	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		release()
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, apperrors.Network(string(c.provider), "request failed", err)
	}

	if err := statusError(c.provider, resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		release()
		return nil, nil, err
	}

	return resp, release, nil
}

// getJSON decodes one API response into out, retrying transient failures
// with exponential backoff.
func (c *client) getJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff.Delay(attempt - 1)
			if ra := retryAfter(lastErr); ra > delay {
				delay = ra
			}
			c.logger.Debug("retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := c.wait(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = c.getJSONOnce(ctx, rawURL, header, out)
		if lastErr == nil || !apperrors.IsRetryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func (c *client) getJSONOnce(ctx context.Context, rawURL string, header http.Header, out any) error {
	resp, release, err := c.do(ctx, rawURL, header)
	if err != nil {
		return err
	}
	defer release()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Network(string(c.provider), "decode response", err)
	}
	return nil
}

// open starts a download. The limiter slot is released when the body is closed.
func (c *client) open(ctx context.Context, rawURL string, header http.Header) (io.ReadCloser, error) {
	resp, release, err := c.do(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}
	return &releasingBody{ReadCloser: resp.Body, release: release}, nil
}

type releasingBody struct {
	io.ReadCloser
	release func()
	once    sync.Once
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}

// statusError maps a non-2xx response to an error kind.
func statusError(p download.Provider, resp *http.Response) error {
	code := resp.StatusCode
	msg := fmt.Sprintf("unexpected status %d", code)

	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.Auth(string(p), fmt.Sprintf("rejected credentials (status %d)", code))
	case code == http.StatusNotFound:
		return apperrors.NotFound(string(p), msg)
	case code == http.StatusTooManyRequests:
		return &throttledError{
			err:   apperrors.Network(string(p), msg, nil),
			after: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case code == http.StatusRequestTimeout || code >= 500:
		return apperrors.Network(string(p), msg, nil)
	default:
		return apperrors.PermanentNetwork(string(p), msg)
	}
}

// throttledError carries the server supplied Retry-After delay.
type throttledError struct {
	err   error
	after time.Duration
}

func (e *throttledError) Error() string { return e.err.Error() }
func (e *throttledError) Unwrap() error { return e.err }

func retryAfter(err error) time.Duration {
	var te *throttledError
	if errors.As(err, &te) {
		return te.after
	}
	return 0
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// redact strips credentials from a URL before it is logged.
func redact(rawURL string, params ...string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, p := range params {
		if q.Has(p) {
			q.Set(p, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

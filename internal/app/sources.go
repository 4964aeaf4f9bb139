package app

import (
	"fmt"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/config"
	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	"github.com/GaseousIce/wallpaper-scraper/internal/provider"
	"github.com/GaseousIce/wallpaper-scraper/internal/ratelimit"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// Sources are the provider clients of a run and the queries routed to them
type Sources struct {
	List    []download.Source
	Queries []download.SearchQuery
	// Unavailable lists providers left out of an "all" run, with the reason.
	Unavailable map[download.Provider]error
}

// BuildSources creates a client per selected provider. A provider that
// needs an API key and has none is fatal when it was asked for by name and
// is left out when the source is "all", as long as one provider remains.
func BuildSources(cfg *config.Config, httpClient *http.Client, limits *ratelimit.Registry, logger *zap.Logger) (*Sources, error) {
	selected := cfg.Providers()
	if len(selected) == 0 {
		return nil, apperrors.Config(fmt.Sprintf("unknown source %q", cfg.Source))
	}
	named := len(selected) == 1

	out := &Sources{Unavailable: make(map[download.Provider]error)}
	for _, p := range selected {
		key := cfg.APIKey(p)
		if provider.RequiresAPIKey(p) && key == "" {
			err := apperrors.Auth(string(p), "API key required")
			if named {
				return nil, err
			}
			logger.Warn("skipping provider without API key", zap.String("provider", string(p)))
			out.Unavailable[p] = err
			continue
		}

		src, err := provider.New(p, provider.Options{
			APIKey:     key,
			BaseURL:    cfg.Endpoint(p),
			HTTPClient: httpClient,
			Limiter:    limits.For(p),
			Logger:     logger,
			UserAgent:  cfg.UserAgent,
			Backoff:    cfg.EngineOptions().Backoff,
		})
		if err != nil {
			if named || !apperrors.IsAuth(err) {
				return nil, err
			}
			out.Unavailable[p] = err
			continue
		}
		out.List = append(out.List, src)
	}

	if len(out.List) == 0 {
		return nil, apperrors.Auth("", "no provider is usable: configure at least one API key")
	}

	for _, q := range cfg.SearchQueries() {
		if slices.ContainsFunc(out.List, func(s download.Source) bool { return s.Provider() == q.Provider }) {
			out.Queries = append(out.Queries, q)
		}
	}
	return out, nil
}

// NewHTTPClient returns the client shared by every provider. The cleanup
// closes idle connections.
func NewHTTPClient(cfg *config.Config) (*http.Client, func()) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = max(cfg.MaxConcurrent, cfg.MaxInFlight)

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
	return client, client.CloseIdleConnections
}

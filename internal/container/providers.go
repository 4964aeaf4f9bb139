// Package container assembles the application graph with wire.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/app"
	"github.com/GaseousIce/wallpaper-scraper/internal/config"
	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	domainevents "github.com/GaseousIce/wallpaper-scraper/internal/domain/events"
	"github.com/GaseousIce/wallpaper-scraper/internal/engine"
	infraevents "github.com/GaseousIce/wallpaper-scraper/internal/infrastructure/events"
	"github.com/GaseousIce/wallpaper-scraper/internal/infrastructure/events/kafka"
	"github.com/GaseousIce/wallpaper-scraper/internal/infrastructure/events/nats"
	"github.com/GaseousIce/wallpaper-scraper/internal/infrastructure/storage"
	"github.com/GaseousIce/wallpaper-scraper/internal/progress"
	"github.com/GaseousIce/wallpaper-scraper/internal/ratelimit"
)

const connectTimeout = 10 * time.Second

// ProvideLimiters builds the per provider limiters
func ProvideLimiters(cfg *config.Config) (*ratelimit.Registry, error) {
	defaults, overrides := cfg.RateLimits()
	return ratelimit.NewRegistry(defaults, overrides)
}

// ProvideReporter creates the console progress reporter
func ProvideReporter(cfg *config.Config) *progress.Reporter {
	return progress.NewReporter(progress.Options{
		NoColor: color.NoColor,
	})
}

// ProvideEventObserver connects the configured event sink. It returns nil
// when events are disabled.
func ProvideEventObserver(cfg *config.Config, logger *zap.Logger) (*infraevents.Observer, func(), error) {
	var (
		publisher domainevents.Publisher
		cleanup   = func() {}
	)

	switch cfg.Events.Driver {
	case config.EventsNATS:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		client, natsCleanup, err := nats.NewClient(ctx, cfg.Events.NATS, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("events: %w", err)
		}
		publisher = nats.NewPublisher(client, logger)
		cleanup = natsCleanup
	case config.EventsKafka:
		p, err := kafka.NewPublisher(cfg.Events.Kafka, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("events: %w", err)
		}
		publisher = p
	default:
		return nil, cleanup, nil
	}

	return infraevents.NewObserver(publisher, cfg.Events.BufferSize, logger), cleanup, nil
}

// ProvideObserver fans engine notifications out to the reporter and the
// event sink.
func ProvideObserver(reporter *progress.Reporter, events *infraevents.Observer) download.Observer {
	observers := download.Observers{reporter}
	if events != nil {
		observers = append(observers, events)
	}
	return observers
}

// ProvideEngine creates the download engine for the built sources
func ProvideEngine(cfg *config.Config, sources *app.Sources, observer download.Observer, logger *zap.Logger) *engine.Engine {
	return engine.New(sources.List, observer, cfg.EngineOptions(), logger)
}

// ProvideMirror creates the S3 mirror, or nil when no bucket is configured
func ProvideMirror(cfg *config.Config, logger *zap.Logger) (*storage.S3Mirror, error) {
	if !cfg.Mirror.S3.Enabled() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return storage.NewS3Mirror(ctx, cfg.Mirror.S3, logger)
}

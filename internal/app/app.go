// Package app runs one wallpaper download session end to end: search,
// download, report, publish and mirror.
package app

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/config"
	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	"github.com/GaseousIce/wallpaper-scraper/internal/engine"
	infraevents "github.com/GaseousIce/wallpaper-scraper/internal/infrastructure/events"
	"github.com/GaseousIce/wallpaper-scraper/internal/infrastructure/storage"
	"github.com/GaseousIce/wallpaper-scraper/internal/logger"
	"github.com/GaseousIce/wallpaper-scraper/internal/progress"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// Process exit codes
const (
	ExitOK          = 0
	ExitFailures    = 1
	ExitSetup       = 2
	ExitInterrupted = 130
)

// flushTimeout bounds event flushing and the RunCompleted publish
const flushTimeout = 10 * time.Second

// App wires the engine to its reporters and sinks
type App struct {
	cfg      *config.Config
	engine   *engine.Engine
	sources  *Sources
	reporter *progress.Reporter
	events   *infraevents.Observer
	mirror   *storage.S3Mirror
	logger   *zap.Logger

	// Out receives the final summary.
	Out     io.Writer
	NoColor bool
}

// New creates an App. events and mirror may be nil when disabled.
func New(
	cfg *config.Config,
	eng *engine.Engine,
	sources *Sources,
	reporter *progress.Reporter,
	events *infraevents.Observer,
	mirror *storage.S3Mirror,
	logger *zap.Logger,
) *App {
	return &App{
		cfg:      cfg,
		engine:   eng,
		sources:  sources,
		reporter: reporter,
		events:   events,
		mirror:   mirror,
		logger:   logger.Named("app"),
		Out:      os.Stdout,
	}
}

// Run executes the configured queries. Per-item failures are in the
// summary. The error is non-nil for setup failures, and is an AUTH error
// when every provider of the run rejected its API key; the summary is
// returned with it then.
func (a *App) Run(ctx context.Context) (*download.RunSummary, error) {
	for p, err := range a.sources.Unavailable {
		a.logger.Warn("provider unavailable", zap.String("provider", string(p)), zap.Error(err))
	}

	a.reporter.Start()
	summary, err := a.engine.Run(ctx, a.sources.Queries, a.cfg.OutputDir)
	a.reporter.Stop()
	if err != nil {
		a.closeEvents()
		return nil, err
	}

	log := logger.WithRun(a.logger, summary.RunID)

	if a.events != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		if err := a.events.PublishRunCompleted(pubCtx, summary); err != nil {
			log.Warn("failed to queue run completed event", zap.Error(err))
		}
		cancel()
		a.closeEvents()
	}

	if a.mirror != nil {
		if summary.Interrupted {
			log.Info("skipping mirror of interrupted run")
		} else {
			a.mirror.MirrorRun(ctx, summary)
		}
	}

	progress.PrintSummary(a.Out, summary, a.NoColor)

	if summary.AllUnauthenticated(a.providers()) {
		return summary, apperrors.Auth("", "every provider rejected its API key")
	}
	return summary, nil
}

func (a *App) providers() []download.Provider {
	out := make([]download.Provider, 0, len(a.sources.List))
	for _, src := range a.sources.List {
		out = append(out, src.Provider())
	}
	return out
}

func (a *App) closeEvents() {
	if a.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := a.events.Close(ctx); err != nil {
		a.logger.Warn("failed to close event publisher", zap.Error(err))
	}
}

// ExitCode maps the outcome of Run to the process exit code
func ExitCode(summary *download.RunSummary, err error) int {
	switch {
	case err != nil && apperrors.IsCancelled(err):
		return ExitInterrupted
	case err != nil:
		return ExitSetup
	case summary == nil:
		return ExitSetup
	case summary.Interrupted:
		return ExitInterrupted
	case summary.HasFailures():
		return ExitFailures
	}
	return ExitOK
}

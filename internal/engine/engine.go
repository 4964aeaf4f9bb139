// Package engine turns provider search results into verified files on disk.
//
// A run admits items from every query concurrently, deduplicates them,
// claims a unique destination path per item and drives each task through
// its state machine on a fixed pool of workers. Items are pulled from the
// searches only when a worker is ready to take them.
package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GaseousIce/wallpaper-scraper/internal/backoff"
	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// Options configures the engine
type Options struct {
	// Workers is the number of concurrent downloads.
	Workers int
	// MaxAttempts bounds how often one item is tried.
	MaxAttempts int
	Backoff     backoff.Policy
	// RunTimeout ends the whole run; 0 disables it.
	RunTimeout time.Duration
	// GracePeriod lets in-flight downloads finish after cancellation.
	GracePeriod time.Duration
	// Force downloads items even when a matching file already exists.
	Force bool
}

// DefaultOptions returns the default engine options
func DefaultOptions() Options {
	return Options{
		Workers:     3,
		MaxAttempts: download.DefaultMaxAttempts,
		Backoff:     backoff.Policy{Base: time.Second, Max: 30 * time.Second},
		GracePeriod: 5 * time.Second,
	}
}

// Engine runs downloads for a set of sources
type Engine struct {
	sources   map[download.Provider]download.Source
	observer  download.Observer
	validator *FileValidator
	opts      Options
	logger    *zap.Logger

	// wait sleeps before a retry; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// New creates an engine. A nil observer is replaced by download.NopObserver.
func New(sources []download.Source, observer download.Observer, opts Options, logger *zap.Logger) *Engine {
	if observer == nil {
		observer = download.NopObserver{}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = download.DefaultMaxAttempts
	}

	bySource := make(map[download.Provider]download.Source, len(sources))
	for _, src := range sources {
		bySource[src.Provider()] = src
	}

	return &Engine{
		sources:   bySource,
		observer:  observer,
		validator: NewFileValidator(logger),
		opts:      opts,
		logger:    logger.Named("engine"),
		wait:      backoff.Sleep,
	}
}

// Run downloads the results of queries into destDir and blocks until every
// admitted task is terminal, the run times out or ctx is cancelled.
//
// Per-item failures are reported in the summary. An error is returned only
// when the run could not start: an unknown provider, an invalid query or a
// destination that cannot be written.
func (e *Engine) Run(ctx context.Context, queries []download.SearchQuery, destDir string) (*download.RunSummary, error) {
	for _, q := range queries {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, ok := e.sources[q.Provider]; !ok {
			return nil, apperrors.Config(fmt.Sprintf("no source configured for provider %q", q.Provider))
		}
	}

	if err := prepareDir(destDir); err != nil {
		return nil, err
	}

	parent := ctx
	if e.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RunTimeout)
		defer cancel()
	}

	r := newRun(e, destDir)
	e.logger.Info("run started",
		zap.String("run_id", r.summary.RunID.String()),
		zap.Int("queries", len(queries)),
		zap.Int("workers", e.opts.Workers),
		zap.String("dest", destDir),
	)

	r.execute(ctx, queries)

	switch {
	case parent.Err() != nil:
		r.summary.Interrupted = true
	case ctx.Err() != nil:
		r.summary.TimedOut = true
	}
	r.summary.Finish()

	e.logger.Info("run finished",
		zap.String("run_id", r.summary.RunID.String()),
		zap.Int("requested", r.summary.Requested),
		zap.Int("succeeded", r.summary.Succeeded),
		zap.Int("failed", r.summary.Failed),
		zap.Int("skipped", r.summary.Skipped),
		zap.Int64("bytes", r.summary.TotalBytes),
		zap.Bool("interrupted", r.summary.Interrupted),
		zap.Bool("timed_out", r.summary.TimedOut),
		zap.Duration("duration", r.summary.Duration),
	)
	return r.summary, nil
}

// prepareDir creates dir and proves it is writable
func prepareDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Filesystem(fmt.Sprintf("create destination %s", dir), err)
	}

	check, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return apperrors.Filesystem(fmt.Sprintf("destination %s is not writable", dir), err)
	}
	name := check.Name()
	check.Close()
	if err := os.Remove(name); err != nil {
		return apperrors.Filesystem("remove write check file", err)
	}
	return nil
}

// execute wires producers, workers and the retry loop together
func (r *run) execute(ctx context.Context, queries []download.SearchQuery) {
	ioCtx, ioCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer ioCancel()
	stopGrace := context.AfterFunc(ctx, func() {
		if r.e.opts.GracePeriod <= 0 {
			ioCancel()
			return
		}
		time.AfterFunc(r.e.opts.GracePeriod, ioCancel)
	})
	defer stopGrace()

	var workers sync.WaitGroup
	for i := 0; i < r.e.opts.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			r.worker(ctx, ioCtx)
		}()
	}

	var producers errgroup.Group
	for _, q := range queries {
		producers.Go(func() error {
			r.produce(ctx, q)
			return nil
		})
	}

	_ = producers.Wait()
	r.pending.Wait()
	close(r.work)
	workers.Wait()
}

// produce admits the results of one query
func (r *run) produce(ctx context.Context, q download.SearchQuery) {
	src := r.e.sources[q.Provider]
	logger := r.e.logger.With(zap.String("provider", string(q.Provider)), zap.String("query", q.Text()))

	for item, err := range src.Search(ctx, q) {
		if err != nil {
			if ctx.Err() == nil {
				if apperrors.IsAuth(err) {
					logger.Warn("provider rejected its API key, skipping", zap.Error(err))
				} else {
					logger.Error("search failed", zap.Error(err))
				}
				r.mu.Lock()
				r.summary.AddProviderError(q.Provider, q.Text(), err)
				r.mu.Unlock()
			}
			return
		}

		task := r.admit(item)
		if task == nil {
			continue
		}

		select {
		case r.work <- task:
		case <-ctx.Done():
			r.abort(task, apperrors.Cancelled(ctx.Err()))
			return
		}
	}
}

// worker executes tasks until the work channel closes
func (r *run) worker(ctx, ioCtx context.Context) {
	for task := range r.work {
		if ctx.Err() != nil {
			r.abort(task, apperrors.Cancelled(ctx.Err()))
			continue
		}
		r.process(ctx, ioCtx, task)
	}
}

// process runs one attempt of task and decides what happens next
func (r *run) process(ctx, ioCtx context.Context, task *download.Task) {
	if err := task.Start(); err != nil {
		r.e.logger.Error("invalid task transition", zap.Error(err))
		r.abort(task, apperrors.Internal(err.Error()))
		return
	}
	r.e.observer.TaskStarted(task.Snapshot())

	n, err := r.fetch(ioCtx, task)
	if err == nil {
		_ = task.Succeed(n)
		r.e.logger.Debug("download succeeded",
			zap.String("item", task.Item().Key().String()),
			zap.String("path", task.Path()),
			zap.Int64("bytes", n),
			zap.Int("attempts", task.Attempts()),
		)
		r.finish(task)
		return
	}

	if ioCtx.Err() != nil && !apperrors.IsCancelled(err) {
		err = apperrors.Cancelled(err)
	}
	_ = task.Fail(err)

	if task.CanRetry() && ctx.Err() == nil {
		r.retry(ctx, task)
		return
	}

	r.e.logger.Warn("download failed",
		zap.String("item", task.Item().Key().String()),
		zap.Int("attempts", task.Attempts()),
		zap.String("kind", string(task.ErrKind())),
		zap.Error(err),
	)
	r.finish(task)
}

// retry parks task for its backoff delay off the worker, then hands it back
// to the pool.
func (r *run) retry(ctx context.Context, task *download.Task) {
	delay := r.e.opts.Backoff.Delay(task.Attempts())
	_ = task.Retry()
	r.e.observer.TaskRetrying(task.Snapshot(), delay)
	r.e.logger.Debug("retry scheduled",
		zap.String("item", task.Item().Key().String()),
		zap.Int("attempt", task.Attempts()),
		zap.Duration("delay", delay),
		zap.Error(task.Err()),
	)

	go func() {
		if err := r.e.wait(ctx, delay); err != nil {
			r.abort(task, apperrors.Cancelled(err))
			return
		}
		select {
		case r.work <- task:
		case <-ctx.Done():
			r.abort(task, apperrors.Cancelled(ctx.Err()))
		}
	}()
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// run holds the state of one Engine.Run call. mu guards the dedup set, the
// path claims and the summary; tasks themselves are never shared.
type run struct {
	e   *Engine
	dir string

	mu      sync.Mutex
	seen    map[download.Key]string
	claimed map[string]struct{}
	summary *download.RunSummary

	work    chan *download.Task
	pending sync.WaitGroup
}

func newRun(e *Engine, dir string) *run {
	return &run{
		e:       e,
		dir:     dir,
		seen:    make(map[download.Key]string),
		claimed: make(map[string]struct{}),
		summary: download.NewRunSummary(),
		// unbuffered: producers only pull the next item when a worker is free
		work: make(chan *download.Task),
	}
}

// admit turns a search result into a task. It returns nil when the item was
// resolved without a download.
func (r *run) admit(item download.Item) *download.Task {
	if item.Filename == "" {
		item.Filename = download.ItemFilename(item.Provider, item.ID, item.URL)
	}

	r.mu.Lock()
	r.summary.Requested++
	key := item.Key()
	path, duplicate := r.seen[key]
	if !duplicate {
		path = r.claimPath(item.Filename)
		r.seen[key] = path
	}
	r.mu.Unlock()

	task, err := download.NewTask(item, path, r.e.opts.MaxAttempts)
	if err != nil {
		r.e.logger.Warn("dropping invalid search result",
			zap.String("item", key.String()),
			zap.Error(err),
		)
		r.mu.Lock()
		r.summary.Requested--
		r.mu.Unlock()
		return nil
	}

	r.pending.Add(1)
	r.e.observer.TaskAdmitted(task.Snapshot())

	if duplicate {
		r.skip(task, "duplicate")
		return nil
	}
	if !r.e.opts.Force {
		if reason, ok := r.alreadyStored(task); ok {
			r.skip(task, reason)
			return nil
		}
	}
	return task
}

// claimPath reserves a unique destination inside the run directory,
// appending _1, _2, ... before the extension on collision. Callers hold mu.
func (r *run) claimPath(filename string) string {
	name := download.SanitizeFilename(filename)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; ; i++ {
		key := strings.ToLower(candidate)
		if _, taken := r.claimed[key]; !taken {
			r.claimed[key] = struct{}{}
			return filepath.Join(r.dir, candidate)
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}

// alreadyStored reports whether a previous run left a matching file at the
// task's destination: checksum when known, else size hint, else any
// non-empty file.
func (r *run) alreadyStored(task *download.Task) (string, bool) {
	info, err := os.Stat(task.Path())
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return "", false
	}

	item := task.Item()
	switch {
	case r.e.validator.Supports(item.Checksum):
		if err := r.e.validator.ValidateFile(task.Path(), item.Checksum); err != nil {
			r.e.logger.Debug("existing file does not match",
				zap.String("path", task.Path()),
				zap.Error(err),
			)
			return "", false
		}
		return "checksum match", true
	case item.SizeHint > 0:
		return "size match", info.Size() == item.SizeHint
	default:
		return "exists", true
	}
}

func (r *run) skip(task *download.Task, reason string) {
	_ = task.Skip(reason)
	r.e.logger.Debug("skipped",
		zap.String("item", task.Item().Key().String()),
		zap.String("reason", reason),
	)
	r.finish(task)
}

// abort fails a task that will not run again
func (r *run) abort(task *download.Task, err error) {
	_ = task.Abort(err)
	r.finish(task)
}

// finish records a terminal task
func (r *run) finish(task *download.Task) {
	snap := task.Snapshot()

	r.mu.Lock()
	r.summary.Record(snap)
	r.mu.Unlock()

	r.e.observer.TaskFinished(snap)
	r.pending.Done()
}

// fetch streams the item into a temporary file next to its destination and
// renames it into place once size and checksum are verified. A failed
// attempt never leaves anything at the destination path.
func (r *run) fetch(ctx context.Context, task *download.Task) (int64, error) {
	item := task.Item()
	src := r.e.sources[item.Provider]

	body, err := src.Fetch(ctx, item)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(r.dir, "."+filepath.Base(task.Path())+".*.part")
	if err != nil {
		return 0, apperrors.Filesystem("create temporary file", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	sum := r.e.validator.newDigest(item.Checksum)
	w := &progressWriter{
		writer:   tmp,
		digest:   sum,
		snapshot: task.Snapshot(),
		observer: r.e.observer,
	}

	n, err := io.CopyBuffer(w, body, make([]byte, 32*1024))
	if err != nil {
		switch {
		case w.err != nil:
			return n, apperrors.Filesystem("write temporary file", w.err)
		case ctx.Err() != nil:
			return n, apperrors.Cancelled(ctx.Err())
		case errors.As(err, new(*apperrors.AppError)):
			return n, err
		default:
			return n, apperrors.Network(string(item.Provider), fmt.Sprintf("read body after %d bytes", n), err)
		}
	}

	if item.SizeHint > 0 && n != item.SizeHint {
		return n, apperrors.ChecksumMismatch(fmt.Sprintf("size mismatch: expected %d bytes, got %d", item.SizeHint, n))
	}
	if err := sum.Verify(); err != nil {
		return n, err
	}

	if err := tmp.Sync(); err != nil {
		return n, apperrors.Filesystem("sync temporary file", err)
	}
	if err := tmp.Close(); err != nil {
		return n, apperrors.Filesystem("close temporary file", err)
	}
	if err := os.Rename(tmpName, task.Path()); err != nil {
		return n, apperrors.Filesystem("move file into place", err)
	}
	committed = true
	return n, nil
}

// progressWriter counts, hashes and reports bytes as they are written
type progressWriter struct {
	writer   io.Writer
	digest   *digest
	snapshot download.Snapshot
	observer download.Observer
	err      error
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	if err != nil {
		pw.err = err
		return n, err
	}
	if pw.digest != nil {
		pw.digest.Write(p[:n])
	}
	pw.observer.TaskProgress(pw.snapshot, int64(n))
	return n, nil
}

// Package progress renders live download progress and the final run summary.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
)

const prefix = "[wallpaper]"

// Options configures the progress reporter.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// NoColor disables ANSI colours in the summary.
	NoColor bool

	// Quiet suppresses the live progress line; the summary is still printed.
	Quiet bool
}

// Reporter is a download.Observer that prints human-readable progress. It
// only counts what it is told and never influences the run.
type Reporter struct {
	opts Options

	admitted  atomic.Int64
	inFlight  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	retries   atomic.Int64
	bytes     atomic.Int64

	// stored and busy sum the bytes and the in-flight time of succeeded
	// tasks
	stored atomic.Int64
	busy   atomic.Int64

	// running maps the ID of each task with an attempt in progress to the
	// bytes that attempt has written so far
	running sync.Map

	mu         sync.Mutex
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	stopped    bool
}

var _ download.Observer = (*Reporter)(nil)

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime

	if r.opts.Quiet {
		close(r.doneCh)
		return
	}
	go r.updateLoop()
}

// Stop stops the live display and prints the final progress line.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

func (r *Reporter) TaskAdmitted(download.Snapshot) {
	r.admitted.Add(1)
}

func (r *Reporter) TaskStarted(s download.Snapshot) {
	r.running.Store(s.ID, new(atomic.Int64))
	r.inFlight.Add(1)
}

func (r *Reporter) TaskProgress(s download.Snapshot, n int64) {
	if written, ok := r.running.Load(s.ID); ok {
		written.(*atomic.Int64).Add(n)
	}
	r.bytes.Add(n)
}

func (r *Reporter) TaskRetrying(s download.Snapshot, _ time.Duration) {
	r.settle(s)
	r.retries.Add(1)
}

func (r *Reporter) TaskFinished(s download.Snapshot) {
	r.settle(s)
	switch s.State {
	case download.StateSucceeded:
		r.succeeded.Add(1)
		r.stored.Add(s.Bytes)
		r.busy.Add(int64(s.Elapsed))
	case download.StateFailed:
		r.failed.Add(1)
	case download.StateSkipped:
		r.skipped.Add(1)
	}
}

// settle ends the running attempt of s, if any. Bytes of an attempt that
// did not succeed were never stored and are taken back.
func (r *Reporter) settle(s download.Snapshot) {
	written, ok := r.running.LoadAndDelete(s.ID)
	if !ok {
		return
	}
	r.inFlight.Add(-1)
	if s.State != download.StateSucceeded {
		r.bytes.Add(-written.(*atomic.Int64).Load())
	}
}

// Bytes returns the bytes stored so far
func (r *Reporter) Bytes() int64 {
	return r.bytes.Load()
}

// InFlight returns the number of attempts in progress
func (r *Reporter) InFlight() int64 {
	return r.inFlight.Load()
}

// Retries returns how many retries were scheduled
func (r *Reporter) Retries() int64 {
	return r.retries.Load()
}

// Throughput returns the bytes per second of a single download, averaged
// over the time succeeded tasks spent in flight.
func (r *Reporter) Throughput() float64 {
	return rate(r.stored.Load(), time.Duration(r.busy.Load()))
}

func rate(n int64, busy time.Duration) float64 {
	if n <= 0 || busy <= 0 {
		return 0
	}
	return float64(n) / busy.Seconds()
}

// Counts returns the admitted and completed task numbers
func (r *Reporter) Counts() (admitted, completed int64) {
	return r.admitted.Load(), r.succeeded.Load() + r.failed.Load() + r.skipped.Load()
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printProgress(true)
			return
		case <-ticker.C:
			r.printProgress(false)
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress(final bool) {
	now := time.Now()
	admitted, completed := r.Counts()
	stored := r.bytes.Load()

	r.mu.Lock()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(stored-r.lastBytes) / elapsed
	if speed < 0 {
		speed = 0
	}
	r.lastUpdate = now
	r.lastBytes = stored
	total := now.Sub(r.startTime)
	r.mu.Unlock()

	if final {
		avg := float64(0)
		if total > 0 {
			avg = float64(stored) / total.Seconds()
		}
		fmt.Fprintf(r.opts.Output, "\r%s %d/%d done | %s | %s/s avg | %s/s per download | %s    \n",
			prefix, completed, admitted,
			humanize.Bytes(uint64(max(stored, 0))),
			humanize.Bytes(uint64(avg)),
			humanize.Bytes(uint64(r.Throughput())),
			formatDuration(total),
		)
		return
	}

	eta := "calculating..."
	if completed > 0 && admitted > completed {
		perTask := total / time.Duration(completed)
		eta = formatDuration(perTask * time.Duration(admitted-completed))
	} else if admitted == completed {
		eta = "0s"
	}

	fmt.Fprintf(r.opts.Output, "\r%s %d/%d done | %d in flight | %s | %s/s | ETA %s    ",
		prefix, completed, admitted,
		max(r.inFlight.Load(), 0),
		humanize.Bytes(uint64(max(stored, 0))),
		humanize.Bytes(uint64(speed)),
		eta,
	)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// palette holds the summary colours
type palette struct {
	ok, bad, warn, dim *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		ok:   color.New(color.FgGreen, color.Bold),
		bad:  color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow),
		dim:  color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.ok, p.bad, p.warn, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

// PrintSummary writes the final totals, then every failed item, failed
// search and skipped provider with its reason.
func PrintSummary(w io.Writer, s *download.RunSummary, noColor bool) {
	p := newPalette(noColor)

	status := p.ok.Sprint("done")
	switch {
	case s.Interrupted:
		status = p.warn.Sprint("interrupted")
	case s.TimedOut:
		status = p.bad.Sprint("timed out")
	case s.HasFailures():
		status = p.bad.Sprint("finished with failures")
	}

	var busy time.Duration
	for _, r := range s.Successful() {
		busy += r.Elapsed
	}
	perDownload := ""
	if speed := rate(s.TotalBytes, busy); speed > 0 {
		perDownload = p.dim.Sprintf(" (%s/s per download)", humanize.Bytes(uint64(speed)))
	}

	fmt.Fprintf(w, "%s %s: %s succeeded, %s failed, %s skipped, %s in %s%s\n",
		prefix, status,
		p.ok.Sprint(s.Succeeded),
		failedCount(p, s.Failed),
		p.warn.Sprint(s.Skipped),
		humanize.Bytes(uint64(s.TotalBytes)),
		formatDuration(s.Duration),
		perDownload,
	)

	for _, r := range s.Results {
		if r.State != download.StateFailed {
			continue
		}
		fmt.Fprintf(w, "  %s %s/%s %s %s\n",
			p.bad.Sprint("x"),
			r.Provider, r.RemoteID,
			p.dim.Sprintf("(%d/%d attempts)", r.Attempts, r.MaxAttempts),
			r.Err,
		)
	}

	for _, pe := range s.ProviderErrors {
		query := pe.Query
		if query == "" {
			query = "<latest>"
		}
		fmt.Fprintf(w, "  %s search %s %q: %s\n", p.bad.Sprint("x"), pe.Provider, query, pe.Err)
	}

	skipped := make(map[download.Provider]bool)
	for _, pe := range s.Unauthenticated {
		if skipped[pe.Provider] {
			continue
		}
		skipped[pe.Provider] = true
		fmt.Fprintf(w, "  %s skipped %s: %s\n", p.warn.Sprint("!"), pe.Provider, pe.Err)
	}
}

func failedCount(p palette, n int) string {
	if n == 0 {
		return p.ok.Sprint(n)
	}
	return p.bad.Sprint(n)
}

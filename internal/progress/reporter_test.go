package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

func snap(id uuid.UUID, state download.State) download.Snapshot {
	return download.Snapshot{ID: id, Provider: download.ProviderWallhaven, RemoteID: id.String()[:6], State: state}
}

func TestReporter_Counts(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(Options{Output: &out, UpdateInterval: time.Hour})
	r.Start()

	ok, flaky, dup := uuid.New(), uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{ok, flaky, dup} {
		r.TaskAdmitted(snap(id, download.StatePending))
	}

	r.TaskFinished(snap(dup, download.StateSkipped))

	r.TaskStarted(snap(ok, download.StateInFlight))
	r.TaskStarted(snap(flaky, download.StateInFlight))
	assert.Equal(t, int64(2), r.InFlight())

	r.TaskProgress(snap(ok, download.StateInFlight), 1000)
	r.TaskProgress(snap(flaky, download.StateInFlight), 400)
	assert.Equal(t, int64(1400), r.Bytes())

	r.TaskRetrying(snap(flaky, download.StatePending), time.Second)
	assert.Equal(t, int64(1), r.InFlight())
	assert.Equal(t, int64(1000), r.Bytes(), "bytes of the failed attempt are taken back")

	r.TaskFinished(snap(ok, download.StateSucceeded))

	// aborted while waiting for its retry
	r.TaskFinished(snap(flaky, download.StateFailed))

	admitted, completed := r.Counts()
	assert.Equal(t, int64(3), admitted)
	assert.Equal(t, int64(3), completed)
	assert.Equal(t, int64(0), r.InFlight())
	assert.Equal(t, int64(1), r.Retries())
	assert.Equal(t, int64(1000), r.Bytes())

	r.Stop()
	r.Stop()
	assert.Contains(t, out.String(), "3/3 done")
	assert.Contains(t, out.String(), "1.0 kB")
}

func TestReporter_QuietPrintsNothing(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(Options{Output: &out, Quiet: true})
	r.Start()
	r.TaskAdmitted(snap(uuid.New(), download.StatePending))
	r.Stop()

	assert.Empty(t, out.String())
}

func TestPrintSummary(t *testing.T) {
	s := download.NewRunSummary()
	s.Requested = 3
	s.Record(download.Snapshot{State: download.StateSucceeded, Bytes: 2048})
	s.Record(download.Snapshot{State: download.StateSkipped, SkipReason: "duplicate"})
	s.Record(download.Snapshot{
		State:       download.StateFailed,
		Provider:    download.ProviderUnsplash,
		RemoteID:    "abc",
		Attempts:    3,
		MaxAttempts: 3,
		Err:         "NETWORK [unsplash]: server error: 503",
	})
	s.AddProviderError(download.ProviderPixabay, "", apperrors.Network("pixabay", "unexpected status 502", nil))
	s.Finish()

	var out bytes.Buffer
	PrintSummary(&out, s, true)

	text := out.String()
	assert.Contains(t, text, "finished with failures: 1 succeeded, 1 failed, 1 skipped, 2.0 kB")
	assert.Contains(t, text, "unsplash/abc (3/3 attempts) NETWORK [unsplash]: server error: 503")
	assert.Contains(t, text, `search pixabay "<latest>"`)
	assert.NotContains(t, text, "\x1b[")
}

func TestPrintSummary_SkippedProvidersAndRate(t *testing.T) {
	s := download.NewRunSummary()
	s.Requested = 1
	s.Record(download.Snapshot{State: download.StateSucceeded, Bytes: 2000, Elapsed: time.Second})
	s.AddProviderError(download.ProviderUnsplash, "forest", apperrors.Auth("unsplash", "rejected credentials (status 401)"))
	s.AddProviderError(download.ProviderUnsplash, "sea", apperrors.Auth("unsplash", "rejected credentials (status 401)"))

	var out bytes.Buffer
	PrintSummary(&out, s, true)

	text := out.String()
	assert.Contains(t, text, "done: 1 succeeded, 0 failed, 0 skipped")
	assert.Contains(t, text, "(2.0 kB/s per download)")
	assert.Equal(t, 1, strings.Count(text, "! skipped unsplash: AUTH"))
}

func TestPrintSummary_TimedOut(t *testing.T) {
	s := download.NewRunSummary()
	s.TimedOut = true

	var out bytes.Buffer
	PrintSummary(&out, s, true)
	assert.Contains(t, out.String(), "timed out: 0 succeeded")
}

func TestReporter_ThroughputUsesTaskElapsed(t *testing.T) {
	r := NewReporter(Options{Output: &bytes.Buffer{}, Quiet: true})
	assert.Zero(t, r.Throughput())

	fast, slow, broken := uuid.New(), uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{fast, slow, broken} {
		r.TaskStarted(snap(id, download.StateInFlight))
	}

	done := snap(fast, download.StateSucceeded)
	done.Bytes, done.Elapsed = 3000, time.Second
	r.TaskFinished(done)

	done = snap(slow, download.StateSucceeded)
	done.Bytes, done.Elapsed = 1000, 3*time.Second
	r.TaskFinished(done)

	failed := snap(broken, download.StateFailed)
	failed.Elapsed = time.Hour
	r.TaskFinished(failed)

	assert.InDelta(t, 1000.0, r.Throughput(), 0.001)
}

func TestPrintSummary_Interrupted(t *testing.T) {
	s := download.NewRunSummary()
	s.Interrupted = true
	s.AddProviderError(download.ProviderWallhaven, "forest", errors.New("boom"))

	var out bytes.Buffer
	PrintSummary(&out, s, true)
	assert.Contains(t, out.String(), "interrupted")
	assert.Contains(t, out.String(), `search wallhaven "forest": boom`)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 1m 1s", formatDuration(time.Hour+time.Minute+time.Second))
}

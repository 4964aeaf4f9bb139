package download_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

func TestRunSummary_Record(t *testing.T) {
	s := download.NewRunSummary()
	s.Requested = 4

	s.Record(download.Snapshot{State: download.StateSucceeded, Bytes: 100})
	s.Record(download.Snapshot{State: download.StateSucceeded, Bytes: 50})
	s.Record(download.Snapshot{State: download.StateSkipped})
	s.Record(download.Snapshot{State: download.StateFailed, ErrKind: apperrors.ErrorTypeNetwork})
	s.Record(download.Snapshot{State: download.StateInFlight})

	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, int64(150), s.TotalBytes)
	assert.Len(t, s.Results, 4)
	assert.Len(t, s.Successful(), 2)
	assert.True(t, s.HasFailures())
	assert.Equal(t, "requested=4 succeeded=2 failed=1 skipped=1 bytes=150", s.String())
}

func TestRunSummary_ProviderErrors(t *testing.T) {
	s := download.NewRunSummary()
	assert.False(t, s.HasFailures())

	s.AddProviderError(download.ProviderPixabay, "sunset", apperrors.Network("pixabay", "503", nil))
	assert.True(t, s.HasFailures())
	assert.Equal(t, apperrors.ErrorTypeNetwork, s.ProviderErrors[0].Kind)

	s.AddProviderError(download.ProviderWallhaven, "", errors.New("boom"))
	assert.Equal(t, apperrors.ErrorTypeInternal, s.ProviderErrors[1].Kind)
}

func TestRunSummary_Unauthenticated(t *testing.T) {
	s := download.NewRunSummary()
	s.AddProviderError(download.ProviderPixabay, "sunset", apperrors.Auth("pixabay", "rejected credentials (status 401)"))

	assert.Empty(t, s.ProviderErrors)
	assert.False(t, s.HasFailures(), "a rejected key skips the provider")
	assert.True(t, s.IsUnauthenticated(download.ProviderPixabay))
	assert.False(t, s.IsUnauthenticated(download.ProviderWallhaven))

	assert.True(t, s.AllUnauthenticated([]download.Provider{download.ProviderPixabay}))
	assert.False(t, s.AllUnauthenticated([]download.Provider{download.ProviderPixabay, download.ProviderWallhaven}))
	assert.False(t, s.AllUnauthenticated(nil))
}

func TestRunSummary_TimedOutIsAFailure(t *testing.T) {
	s := download.NewRunSummary()
	s.TimedOut = true
	assert.True(t, s.HasFailures())

	event := download.NewRunCompleted(s)
	assert.True(t, event.TimedOut)
	assert.False(t, event.Interrupted)
}

func TestNewTaskEvent(t *testing.T) {
	snap := download.Snapshot{
		Provider: download.ProviderUnsplash,
		RemoteID: "r1",
		State:    download.StateSucceeded,
		Bytes:    10,
		Attempts: 2,
		Elapsed:  time.Second,
	}

	ev, ok := download.NewTaskEvent(snap).(*download.TaskSucceeded)
	if assert.True(t, ok) {
		assert.Equal(t, download.EventTaskSucceeded, ev.EventType())
		assert.Equal(t, "Task", ev.AggregateType())
		assert.Equal(t, int64(10), ev.Bytes)
	}

	snap.State = download.StateFailed
	snap.ErrKind = apperrors.ErrorTypeNetwork
	failed, ok := download.NewTaskEvent(snap).(*download.TaskFailed)
	if assert.True(t, ok) {
		assert.Equal(t, "NETWORK", failed.Kind)
	}

	snap.State = download.StatePending
	assert.Nil(t, download.NewTaskEvent(snap))
}

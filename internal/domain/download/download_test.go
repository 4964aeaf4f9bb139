package download_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

type TaskTestSuite struct {
	suite.Suite
	item download.Item
}

func (suite *TaskTestSuite) SetupTest() {
	suite.item = download.Item{
		Provider: download.ProviderWallhaven,
		ID:       "abc123",
		URL:      "https://w.wallhaven.cc/full/ab/wallhaven-abc123.png",
		Filename: "wallhaven-abc123.png",
		SizeHint: 42,
	}
}

func (suite *TaskTestSuite) newTask(maxAttempts int) *download.Task {
	task, err := download.NewTask(suite.item, "/tmp/out/wallhaven-abc123.png", maxAttempts)
	require.NoError(suite.T(), err)
	return task
}

func (suite *TaskTestSuite) TestNewTask_Validation() {
	_, err := download.NewTask(download.Item{}, "/tmp/x", 3)
	assert.Error(suite.T(), err)

	_, err = download.NewTask(suite.item, "", 3)
	assert.Error(suite.T(), err)

	task, err := download.NewTask(suite.item, "/tmp/x", 0)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), download.DefaultMaxAttempts, task.MaxAttempts())
	assert.Equal(suite.T(), download.StatePending, task.State())
	assert.Zero(suite.T(), task.Attempts())
}

func (suite *TaskTestSuite) TestSucceedsOnThirdAttempt() {
	task := suite.newTask(3)

	for i := 0; i < 2; i++ {
		require.NoError(suite.T(), task.Start())
		require.NoError(suite.T(), task.Fail(apperrors.Network("wallhaven", "503", nil)))
		require.True(suite.T(), task.CanRetry())
		require.NoError(suite.T(), task.Retry())
	}

	require.NoError(suite.T(), task.Start())
	require.NoError(suite.T(), task.Succeed(42))

	assert.Equal(suite.T(), download.StateSucceeded, task.State())
	assert.Equal(suite.T(), 3, task.Attempts())
	assert.Equal(suite.T(), int64(42), task.Bytes())
	assert.NoError(suite.T(), task.Err())
	assert.True(suite.T(), task.IsTerminal())
}

func (suite *TaskTestSuite) TestAlwaysFailingStopsAtMaxAttempts() {
	task := suite.newTask(3)

	attempts := 0
	for {
		require.NoError(suite.T(), task.Start())
		attempts++
		require.NoError(suite.T(), task.Fail(io.ErrUnexpectedEOF))
		if !task.CanRetry() {
			break
		}
		require.NoError(suite.T(), task.Retry())
	}

	assert.Equal(suite.T(), 3, attempts)
	assert.Equal(suite.T(), 3, task.Attempts())
	assert.Equal(suite.T(), download.StateFailed, task.State())
	assert.True(suite.T(), task.IsTerminal())
	assert.Error(suite.T(), task.Retry())
}

func (suite *TaskTestSuite) TestPermanentErrorIsTerminal() {
	task := suite.newTask(3)

	require.NoError(suite.T(), task.Start())
	require.NoError(suite.T(), task.Fail(apperrors.NotFound("wallhaven", "gone")))

	assert.False(suite.T(), task.CanRetry())
	assert.True(suite.T(), task.IsTerminal())
	assert.Equal(suite.T(), apperrors.ErrorTypeNotFound, task.ErrKind())
}

func (suite *TaskTestSuite) TestSkipOnlyFromPending() {
	task := suite.newTask(3)
	require.NoError(suite.T(), task.Skip("duplicate"))
	assert.Equal(suite.T(), download.StateSkipped, task.State())
	assert.Equal(suite.T(), "duplicate", task.SkipReason())
	assert.Zero(suite.T(), task.Attempts())

	inFlight := suite.newTask(3)
	require.NoError(suite.T(), inFlight.Start())
	assert.Error(suite.T(), inFlight.Skip("duplicate"))
}

func (suite *TaskTestSuite) TestInvalidTransitions() {
	task := suite.newTask(3)
	assert.Error(suite.T(), task.Succeed(1))
	assert.Error(suite.T(), task.Fail(io.EOF))

	require.NoError(suite.T(), task.Start())
	assert.Error(suite.T(), task.Start())
	assert.Error(suite.T(), task.Abort(nil))
}

func (suite *TaskTestSuite) TestAbortKeepsPreviousError() {
	task := suite.newTask(3)
	require.NoError(suite.T(), task.Start())
	require.NoError(suite.T(), task.Fail(apperrors.Network("wallhaven", "reset", nil)))
	require.NoError(suite.T(), task.Retry())

	require.NoError(suite.T(), task.Abort(nil))
	assert.Equal(suite.T(), download.StateFailed, task.State())
	assert.Equal(suite.T(), apperrors.ErrorTypeNetwork, task.ErrKind())

	cancelled := suite.newTask(3)
	require.NoError(suite.T(), cancelled.Abort(apperrors.Cancelled(nil)))
	assert.Equal(suite.T(), apperrors.ErrorTypeCancelled, cancelled.Snapshot().ErrKind)
}

func (suite *TaskTestSuite) TestSnapshot() {
	task := suite.newTask(2)
	require.NoError(suite.T(), task.Start())
	require.NoError(suite.T(), task.Fail(apperrors.ChecksumMismatch("bad digest")))

	snap := task.Snapshot()
	assert.Equal(suite.T(), task.ID(), snap.ID)
	assert.Equal(suite.T(), download.ProviderWallhaven, snap.Provider)
	assert.Equal(suite.T(), "abc123", snap.RemoteID)
	assert.Equal(suite.T(), download.StateFailed, snap.State)
	assert.Equal(suite.T(), 1, snap.Attempts)
	assert.Equal(suite.T(), 2, snap.MaxAttempts)
	assert.Equal(suite.T(), apperrors.ErrorTypeChecksumMismatch, snap.ErrKind)
	assert.Contains(suite.T(), snap.Err, "bad digest")
}

func TestTaskTestSuite(t *testing.T) {
	suite.Run(t, new(TaskTestSuite))
}

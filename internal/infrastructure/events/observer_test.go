package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	domainevents "github.com/GaseousIce/wallpaper-scraper/internal/domain/events"
)

// MockPublisher is a mock implementation of domainevents.Publisher
type MockPublisher struct {
	mock.Mock

	mu     sync.Mutex
	events []domainevents.Event
}

func (m *MockPublisher) Publish(ctx context.Context, event domainevents.Event) error {
	args := m.Called(ctx, event)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.events = append(m.events, event)
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.EventType())
	}
	return out
}

func terminal(state download.State) download.Snapshot {
	return download.Snapshot{ID: uuid.New(), Provider: download.ProviderWallhaven, RemoteID: "x", State: state}
}

func TestObserver_PublishesTerminalTasksInOrder(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	pub.On("Close").Return(nil).Once()

	o := NewObserver(pub, 16, zap.NewNop())
	o.TaskAdmitted(terminal(download.StatePending))
	o.TaskStarted(terminal(download.StateInFlight))
	o.TaskFinished(terminal(download.StateSucceeded))
	o.TaskFinished(terminal(download.StateSkipped))
	o.TaskFinished(terminal(download.StateFailed))
	o.TaskFinished(terminal(download.StateInFlight))

	summary := download.NewRunSummary()
	require.NoError(t, o.PublishRunCompleted(context.Background(), summary))
	require.NoError(t, o.Close(context.Background()))
	require.NoError(t, o.Close(context.Background()))

	assert.Equal(t, []string{
		download.EventTaskSucceeded,
		download.EventTaskSkipped,
		download.EventTaskFailed,
		download.EventRunCompleted,
	}, pub.types())

	published, dropped, failed := o.Stats()
	assert.Equal(t, int64(4), published)
	assert.Zero(t, dropped)
	assert.Zero(t, failed)
	pub.AssertExpectations(t)

	assert.ErrorIs(t, o.PublishRunCompleted(context.Background(), summary), ErrClosed)
}

func TestObserver_DropsWhenQueueIsFull(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Once().Run(func(mock.Arguments) {
		close(entered)
		<-release
	})
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	pub.On("Close").Return(nil)

	o := NewObserver(pub, 1, zap.NewNop())

	o.TaskFinished(terminal(download.StateSucceeded))
	<-entered

	// the loop is busy: one event fits in the queue, the next is dropped
	o.TaskFinished(terminal(download.StateSucceeded))
	o.TaskFinished(terminal(download.StateSucceeded))

	_, dropped, _ := o.Stats()
	assert.Equal(t, int64(1), dropped)

	close(release)
	require.NoError(t, o.Close(context.Background()))

	published, _, _ := o.Stats()
	assert.Equal(t, int64(2), published)
}

func TestObserver_PublishFailuresAreCounted(t *testing.T) {
	closeErr := errors.New("close failed")
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	pub.On("Close").Return(closeErr)

	o := NewObserver(pub, 4, zap.NewNop())
	o.TaskFinished(terminal(download.StateFailed))

	err := o.Close(context.Background())
	assert.ErrorIs(t, err, closeErr)

	_, _, failed := o.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestObserver_CloseHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		<-release
	})
	pub.On("Close").Return(nil)

	o := NewObserver(pub, 4, zap.NewNop())
	o.TaskFinished(terminal(download.StateSucceeded))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.Close(ctx), context.DeadlineExceeded)
}

// Package events forwards download outcomes to an external event sink.
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	domainevents "github.com/GaseousIce/wallpaper-scraper/internal/domain/events"
)

// DefaultBufferSize bounds the queue between workers and the publisher
const DefaultBufferSize = 256

const publishTimeout = 10 * time.Second

// ErrClosed is returned when publishing through a closed Observer
var ErrClosed = errors.New("event observer closed")

// Observer publishes an event for every terminal task. Workers never wait on
// the sink: events are queued and dropped when the queue is full.
type Observer struct {
	download.NopObserver

	publisher domainevents.Publisher
	queue     chan domainevents.Event
	done      chan struct{}
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

var _ download.Observer = (*Observer)(nil)

// NewObserver starts the publishing loop
func NewObserver(publisher domainevents.Publisher, bufferSize int, logger *zap.Logger) *Observer {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	o := &Observer{
		publisher: publisher,
		queue:     make(chan domainevents.Event, bufferSize),
		done:      make(chan struct{}),
		logger:    logger.Named("events"),
	}
	go o.loop()
	return o
}

// TaskFinished queues the event matching the task outcome
func (o *Observer) TaskFinished(s download.Snapshot) {
	event := download.NewTaskEvent(s)
	if event == nil {
		return
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.dropped.Add(1)
		return
	}

	select {
	case o.queue <- event:
	default:
		o.dropped.Add(1)
		o.logger.Debug("event queue full, dropping event",
			zap.String("event_type", event.EventType()),
			zap.String("task_id", s.ID.String()),
		)
	}
}

// PublishRunCompleted queues the run totals behind every task event,
// waiting for queue space until ctx is done.
func (o *Observer) PublishRunCompleted(ctx context.Context, summary *download.RunSummary) error {
	event := download.NewRunCompleted(summary)

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrClosed
	}

	select {
	case o.queue <- event:
		return nil
	case <-ctx.Done():
		o.dropped.Add(1)
		return ctx.Err()
	}
}

// Close flushes the queue, waiting until ctx is done, then closes the
// publisher.
func (o *Observer) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	var err error
	select {
	case <-o.done:
	case <-ctx.Done():
		err = ctx.Err()
		o.logger.Warn("event queue not flushed", zap.Int("pending", len(o.queue)))
	}

	published, dropped, failed := o.Stats()
	o.logger.Info("event publishing finished",
		zap.Int64("published", published),
		zap.Int64("dropped", dropped),
		zap.Int64("failed", failed),
	)

	return errors.Join(err, o.publisher.Close())
}

// Stats returns how many events were published, dropped and failed
func (o *Observer) Stats() (published, dropped, failed int64) {
	return o.published.Load(), o.dropped.Load(), o.failed.Load()
}

func (o *Observer) loop() {
	defer close(o.done)

	for event := range o.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := o.publisher.Publish(ctx, event)
		cancel()

		if err != nil {
			o.failed.Add(1)
			o.logger.Warn("failed to publish event",
				zap.String("event_id", event.ID().String()),
				zap.String("event_type", event.EventType()),
				zap.Error(err),
			)
			continue
		}
		o.published.Add(1)
	}
}

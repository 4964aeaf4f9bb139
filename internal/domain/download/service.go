package download

import (
	"context"
	"io"
	"iter"
	"time"
)

// Source searches one provider and streams the files it finds
type Source interface {
	// Provider returns the provider served by the source
	Provider() Provider

	// Search lazily yields at most q.Limit items. Every call re-issues the
	// network requests. A shorter sequence means the provider ran out of
	// results; a non-nil error ends the sequence.
	Search(ctx context.Context, q SearchQuery) iter.Seq2[Item, error]

	// Fetch opens the content of an item. The caller must close the reader.
	Fetch(ctx context.Context, item Item) (io.ReadCloser, error)
}

// Observer receives task lifecycle notifications. Implementations must not
// block and must not change the outcome of a run.
type Observer interface {
	TaskAdmitted(s Snapshot)
	TaskStarted(s Snapshot)
	TaskProgress(s Snapshot, n int64)
	TaskRetrying(s Snapshot, delay time.Duration)
	TaskFinished(s Snapshot)
}

// NopObserver ignores every notification
type NopObserver struct{}

func (NopObserver) TaskAdmitted(Snapshot)                {}
func (NopObserver) TaskStarted(Snapshot)                 {}
func (NopObserver) TaskProgress(Snapshot, int64)         {}
func (NopObserver) TaskRetrying(Snapshot, time.Duration) {}
func (NopObserver) TaskFinished(Snapshot)                {}

// Observers fans notifications out to several observers in order
type Observers []Observer

func (o Observers) TaskAdmitted(s Snapshot) {
	for _, obs := range o {
		obs.TaskAdmitted(s)
	}
}

func (o Observers) TaskStarted(s Snapshot) {
	for _, obs := range o {
		obs.TaskStarted(s)
	}
}

func (o Observers) TaskProgress(s Snapshot, n int64) {
	for _, obs := range o {
		obs.TaskProgress(s, n)
	}
}

func (o Observers) TaskRetrying(s Snapshot, delay time.Duration) {
	for _, obs := range o {
		obs.TaskRetrying(s, delay)
	}
}

func (o Observers) TaskFinished(s Snapshot) {
	for _, obs := range o {
		obs.TaskFinished(s)
	}
}

package download

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// State represents the lifecycle state of a task
type State string

const (
	StatePending   State = "pending"
	StateInFlight  State = "in_flight"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// DefaultMaxAttempts is used when a task is created without an explicit limit.
const DefaultMaxAttempts = 3

// Task drives one item from admission to a terminal state.
//
// A task is owned by a single goroutine at a time; ownership moves between
// goroutines over channels, so Task itself holds no lock.
type Task struct {
	id          uuid.UUID
	item        Item
	path        string
	attempts    int
	maxAttempts int
	state       State
	lastErr     error
	skipReason  string
	bytes       int64
	startedAt   time.Time
	elapsed     time.Duration
	createdAt   time.Time
	updatedAt   time.Time
}

// NewTask creates a pending task writing item to path
func NewTask(item Item, path string, maxAttempts int) (*Task, error) {
	if item.URL == "" {
		return nil, fmt.Errorf("download URL is required")
	}
	if path == "" {
		return nil, fmt.Errorf("destination path is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	now := time.Now()
	return &Task{
		id:          uuid.New(),
		item:        item,
		path:        path,
		maxAttempts: maxAttempts,
		state:       StatePending,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Getters
func (t *Task) ID() uuid.UUID          { return t.id }
func (t *Task) Item() Item             { return t.item }
func (t *Task) Path() string           { return t.path }
func (t *Task) Attempts() int          { return t.attempts }
func (t *Task) MaxAttempts() int       { return t.maxAttempts }
func (t *Task) State() State           { return t.state }
func (t *Task) Err() error             { return t.lastErr }
func (t *Task) SkipReason() string     { return t.skipReason }
func (t *Task) Bytes() int64           { return t.bytes }
func (t *Task) Elapsed() time.Duration { return t.elapsed }
func (t *Task) CreatedAt() time.Time   { return t.createdAt }
func (t *Task) UpdatedAt() time.Time   { return t.updatedAt }

// ErrKind returns the kind of the last recorded error
func (t *Task) ErrKind() apperrors.ErrorType {
	return apperrors.Kind(t.lastErr)
}

// Start moves the task in flight and counts a new attempt
func (t *Task) Start() error {
	if t.state != StatePending {
		return fmt.Errorf("cannot start task in state %s", t.state)
	}

	now := time.Now()
	t.attempts++
	t.state = StateInFlight
	t.startedAt = now
	t.bytes = 0
	t.updatedAt = now
	return nil
}

// Succeed marks the attempt as successful after n bytes were stored
func (t *Task) Succeed(n int64) error {
	if t.state != StateInFlight {
		return fmt.Errorf("cannot complete task in state %s", t.state)
	}

	t.leaveInFlight()
	t.state = StateSucceeded
	t.bytes = n
	t.lastErr = nil
	return nil
}

// Fail records the error of the current attempt
func (t *Task) Fail(err error) error {
	if t.state != StateInFlight {
		return fmt.Errorf("cannot fail task in state %s", t.state)
	}
	if err == nil {
		err = apperrors.Internal("attempt failed without error")
	}

	t.leaveInFlight()
	t.state = StateFailed
	t.lastErr = err
	return nil
}

// CanRetry reports whether a failed task is eligible for another attempt
func (t *Task) CanRetry() bool {
	return t.state == StateFailed &&
		t.attempts < t.maxAttempts &&
		apperrors.IsRetryable(t.lastErr)
}

// Retry returns a failed task to pending
func (t *Task) Retry() error {
	if !t.CanRetry() {
		return fmt.Errorf("cannot retry task in state %s after %d/%d attempts", t.state, t.attempts, t.maxAttempts)
	}

	t.state = StatePending
	t.updatedAt = time.Now()
	return nil
}

// Skip resolves a pending task without fetching it
func (t *Task) Skip(reason string) error {
	if t.state != StatePending {
		return fmt.Errorf("cannot skip task in state %s", t.state)
	}

	t.state = StateSkipped
	t.skipReason = reason
	t.updatedAt = time.Now()
	return nil
}

// Abort fails a pending task that will not be attempted again, keeping
// the error of the previous attempt when err is nil.
func (t *Task) Abort(err error) error {
	if t.state != StatePending {
		return fmt.Errorf("cannot abort task in state %s", t.state)
	}
	if err != nil {
		t.lastErr = err
	}

	t.state = StateFailed
	t.updatedAt = time.Now()
	return nil
}

// IsTerminal reports whether the task reached a final state
func (t *Task) IsTerminal() bool {
	switch t.state {
	case StateSucceeded, StateSkipped:
		return true
	case StateFailed:
		return !t.CanRetry()
	}
	return false
}

func (t *Task) leaveInFlight() {
	now := time.Now()
	t.elapsed += now.Sub(t.startedAt)
	t.updatedAt = now
}

// Snapshot is an immutable view of a task handed to observers
type Snapshot struct {
	ID          uuid.UUID
	Provider    Provider
	RemoteID    string
	Filename    string
	Path        string
	State       State
	Attempts    int
	MaxAttempts int
	Bytes       int64
	SizeHint    int64
	Elapsed     time.Duration
	ErrKind     apperrors.ErrorType
	Err         string
	SkipReason  string
}

// Snapshot copies the current task state
func (t *Task) Snapshot() Snapshot {
	s := Snapshot{
		ID:          t.id,
		Provider:    t.item.Provider,
		RemoteID:    t.item.ID,
		Filename:    t.item.Filename,
		Path:        t.path,
		State:       t.state,
		Attempts:    t.attempts,
		MaxAttempts: t.maxAttempts,
		Bytes:       t.bytes,
		SizeHint:    t.item.SizeHint,
		Elapsed:     t.elapsed,
		SkipReason:  t.skipReason,
	}
	if t.lastErr != nil {
		s.ErrKind = apperrors.Kind(t.lastErr)
		s.Err = t.lastErr.Error()
	}
	return s
}

package download

import (
	"time"

	domainevents "github.com/GaseousIce/wallpaper-scraper/internal/domain/events"
)

const (
	aggregateTask = "Task"
	aggregateRun  = "Run"
)

// Event types
const (
	EventTaskSucceeded = "TaskSucceeded"
	EventTaskFailed    = "TaskFailed"
	EventTaskSkipped   = "TaskSkipped"
	EventRunCompleted  = "RunCompleted"
)

// TaskSucceeded is emitted when a file was stored at its final path
type TaskSucceeded struct {
	domainevents.BaseEvent
	Provider string        `json:"provider"`
	RemoteID string        `json:"remote_id"`
	Path     string        `json:"path"`
	Bytes    int64         `json:"bytes"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// NewTaskSucceeded creates a new TaskSucceeded event
func NewTaskSucceeded(s Snapshot) *TaskSucceeded {
	return &TaskSucceeded{
		BaseEvent: domainevents.NewBaseEvent(s.ID, aggregateTask, EventTaskSucceeded, 1),
		Provider:  string(s.Provider),
		RemoteID:  s.RemoteID,
		Path:      s.Path,
		Bytes:     s.Bytes,
		Attempts:  s.Attempts,
		Duration:  s.Elapsed,
	}
}

// TaskFailed is emitted when a task exhausted its attempts or hit a permanent error
type TaskFailed struct {
	domainevents.BaseEvent
	Provider string `json:"provider"`
	RemoteID string `json:"remote_id"`
	Attempts int    `json:"attempts"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}

// NewTaskFailed creates a new TaskFailed event
func NewTaskFailed(s Snapshot) *TaskFailed {
	return &TaskFailed{
		BaseEvent: domainevents.NewBaseEvent(s.ID, aggregateTask, EventTaskFailed, 1),
		Provider:  string(s.Provider),
		RemoteID:  s.RemoteID,
		Attempts:  s.Attempts,
		Kind:      string(s.ErrKind),
		Error:     s.Err,
	}
}

// TaskSkipped is emitted when no fetch was needed
type TaskSkipped struct {
	domainevents.BaseEvent
	Provider string `json:"provider"`
	RemoteID string `json:"remote_id"`
	Path     string `json:"path"`
	Reason   string `json:"reason"`
}

// NewTaskSkipped creates a new TaskSkipped event
func NewTaskSkipped(s Snapshot) *TaskSkipped {
	return &TaskSkipped{
		BaseEvent: domainevents.NewBaseEvent(s.ID, aggregateTask, EventTaskSkipped, 1),
		Provider:  string(s.Provider),
		RemoteID:  s.RemoteID,
		Path:      s.Path,
		Reason:    s.SkipReason,
	}
}

// NewTaskEvent maps a terminal snapshot to its event, or nil for other states.
func NewTaskEvent(s Snapshot) domainevents.Event {
	switch s.State {
	case StateSucceeded:
		return NewTaskSucceeded(s)
	case StateFailed:
		return NewTaskFailed(s)
	case StateSkipped:
		return NewTaskSkipped(s)
	}
	return nil
}

// RunCompleted is emitted once per run with the final totals
type RunCompleted struct {
	domainevents.BaseEvent
	Requested   int           `json:"requested"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	TotalBytes  int64         `json:"total_bytes"`
	Interrupted bool          `json:"interrupted"`
	TimedOut    bool          `json:"timed_out"`
	Duration    time.Duration `json:"duration"`
}

// NewRunCompleted creates a new RunCompleted event
func NewRunCompleted(s *RunSummary) *RunCompleted {
	return &RunCompleted{
		BaseEvent:   domainevents.NewBaseEvent(s.RunID, aggregateRun, EventRunCompleted, 1),
		Requested:   s.Requested,
		Succeeded:   s.Succeeded,
		Failed:      s.Failed,
		Skipped:     s.Skipped,
		TotalBytes:  s.TotalBytes,
		Interrupted: s.Interrupted,
		TimedOut:    s.TimedOut,
		Duration:    s.Duration,
	}
}

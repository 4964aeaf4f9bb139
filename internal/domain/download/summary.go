package download

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// ProviderError records a search that could not be completed
type ProviderError struct {
	Provider Provider
	Query    string
	Kind     apperrors.ErrorType
	Err      string
}

// RunSummary aggregates the outcome of one engine run
type RunSummary struct {
	RunID          uuid.UUID
	StartedAt      time.Time
	Duration       time.Duration
	Requested      int
	Succeeded      int
	Failed         int
	Skipped        int
	TotalBytes     int64
	Results        []Snapshot
	ProviderErrors []ProviderError
	// Unauthenticated lists searches a provider refused because of the API
	// key. They leave the provider out of the run instead of failing it.
	Unauthenticated []ProviderError
	Interrupted     bool
	// TimedOut is set when the run timeout, not the caller, ended the run.
	TimedOut bool
}

// NewRunSummary creates an empty summary for a new run
func NewRunSummary() *RunSummary {
	return &RunSummary{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
	}
}

// Record adds a terminal task to the totals
func (s *RunSummary) Record(snap Snapshot) {
	switch snap.State {
	case StateSucceeded:
		s.Succeeded++
		s.TotalBytes += snap.Bytes
	case StateSkipped:
		s.Skipped++
	case StateFailed:
		s.Failed++
	default:
		return
	}
	s.Results = append(s.Results, snap)
}

// AddProviderError records a failed search. Rejected credentials go to
// Unauthenticated.
func (s *RunSummary) AddProviderError(p Provider, query string, err error) {
	pe := ProviderError{
		Provider: p,
		Query:    query,
		Kind:     apperrors.Kind(err),
		Err:      err.Error(),
	}
	if pe.Kind == apperrors.ErrorTypeAuth {
		s.Unauthenticated = append(s.Unauthenticated, pe)
		return
	}
	s.ProviderErrors = append(s.ProviderErrors, pe)
}

// IsUnauthenticated reports whether p rejected its credentials in this run
func (s *RunSummary) IsUnauthenticated(p Provider) bool {
	for _, pe := range s.Unauthenticated {
		if pe.Provider == p {
			return true
		}
	}
	return false
}

// AllUnauthenticated reports whether every provider in providers rejected
// its credentials. It is false for an empty list.
func (s *RunSummary) AllUnauthenticated(providers []Provider) bool {
	if len(providers) == 0 {
		return false
	}
	for _, p := range providers {
		if !s.IsUnauthenticated(p) {
			return false
		}
	}
	return true
}

// Finish stamps the run duration
func (s *RunSummary) Finish() {
	s.Duration = time.Since(s.StartedAt)
}

// HasFailures reports whether any task or search failed, or the run
// timeout cut the run short. Unauthenticated providers are not failures.
func (s *RunSummary) HasFailures() bool {
	return s.Failed > 0 || len(s.ProviderErrors) > 0 || s.TimedOut
}

// Successful returns the results that produced a file in this run
func (s *RunSummary) Successful() []Snapshot {
	var out []Snapshot
	for _, r := range s.Results {
		if r.State == StateSucceeded {
			out = append(out, r)
		}
	}
	return out
}

// String renders the one-line totals
func (s *RunSummary) String() string {
	return fmt.Sprintf("requested=%d succeeded=%d failed=%d skipped=%d bytes=%d",
		s.Requested, s.Succeeded, s.Failed, s.Skipped, s.TotalBytes)
}

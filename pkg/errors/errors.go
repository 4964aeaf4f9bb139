package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents the kind of failure.
type ErrorType string

const (
	// ErrorTypeRateLimitConfig indicates an invalid rate limiter configuration
	ErrorTypeRateLimitConfig ErrorType = "RATE_LIMIT_CONFIG"
	// ErrorTypeConfig indicates invalid run configuration
	ErrorTypeConfig ErrorType = "CONFIG"
	// ErrorTypeAuth indicates a missing or rejected provider API key
	ErrorTypeAuth ErrorType = "AUTH"
	// ErrorTypeNetwork indicates a transport or HTTP failure
	ErrorTypeNetwork ErrorType = "NETWORK"
	// ErrorTypeChecksumMismatch indicates downloaded content failed verification
	ErrorTypeChecksumMismatch ErrorType = "CHECKSUM_MISMATCH"
	// ErrorTypeFilesystem indicates the destination could not be written
	ErrorTypeFilesystem ErrorType = "FILESYSTEM"
	// ErrorTypeNotFound indicates the remote resource does not exist
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	// ErrorTypeCancelled indicates the run was interrupted
	ErrorTypeCancelled ErrorType = "CANCELLED"
	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type     ErrorType
	Message  string
	Provider string
	// Permanent marks errors that must not be retried even when the type is
	// normally retryable (e.g. HTTP 400).
	Permanent bool
	Err       error
}

// Error returns the error message
func (e *AppError) Error() string {
	prefix := string(e.Type)
	if e.Provider != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Type, e.Provider)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new application error
func New(errorType ErrorType, message string) error {
	return &AppError{
		Type:    errorType,
		Message: message,
	}
}

// Wrap wraps an error with an application error
func Wrap(errorType ErrorType, message string, err error) error {
	return &AppError{
		Type:    errorType,
		Message: message,
		Err:     err,
	}
}

// RateLimitConfig creates a rate limiter configuration error
func RateLimitConfig(provider, message string) error {
	return &AppError{Type: ErrorTypeRateLimitConfig, Provider: provider, Message: message}
}

// Config creates a configuration error
func Config(message string) error {
	return New(ErrorTypeConfig, message)
}

// Auth creates an authentication error for a provider
func Auth(provider, message string) error {
	return &AppError{Type: ErrorTypeAuth, Provider: provider, Message: message}
}

// Network wraps a transport failure
func Network(provider, message string, err error) error {
	return &AppError{Type: ErrorTypeNetwork, Provider: provider, Message: message, Err: err}
}

// PermanentNetwork creates a network error that is not worth retrying
func PermanentNetwork(provider, message string) error {
	return &AppError{Type: ErrorTypeNetwork, Provider: provider, Message: message, Permanent: true}
}

// ChecksumMismatch creates a content verification error
func ChecksumMismatch(message string) error {
	return New(ErrorTypeChecksumMismatch, message)
}

// Filesystem wraps a destination write failure
func Filesystem(message string, err error) error {
	return Wrap(ErrorTypeFilesystem, message, err)
}

// NotFound creates a not found error
func NotFound(provider, message string) error {
	return &AppError{Type: ErrorTypeNotFound, Provider: provider, Message: message, Permanent: true}
}

// Cancelled wraps a context error
func Cancelled(err error) error {
	return Wrap(ErrorTypeCancelled, "run interrupted", err)
}

// Internal creates an internal error
func Internal(message string) error {
	return New(ErrorTypeInternal, message)
}

// Kind returns the error type of err. Context errors are reported as
// ErrorTypeCancelled and unknown errors as ErrorTypeInternal.
func Kind(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeCancelled
	}
	return ErrorTypeInternal
}

// IsRetryable reports whether a failed attempt may be repeated.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Permanent {
			return false
		}
		switch appErr.Type {
		case ErrorTypeNetwork, ErrorTypeChecksumMismatch, ErrorTypeFilesystem:
			return true
		}
		return false
	}
	// Unclassified transport errors surface from io.Copy and friends.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// IsAuth checks if an error is an authentication error
func IsAuth(err error) bool {
	return Kind(err) == ErrorTypeAuth
}

// IsNetwork checks if an error is a network error
func IsNetwork(err error) bool {
	return Kind(err) == ErrorTypeNetwork
}

// IsChecksumMismatch checks if an error is a checksum mismatch
func IsChecksumMismatch(err error) bool {
	return Kind(err) == ErrorTypeChecksumMismatch
}

// IsFilesystem checks if an error is a filesystem error
func IsFilesystem(err error) bool {
	return Kind(err) == ErrorTypeFilesystem
}

// IsRateLimitConfig checks if an error is a limiter configuration error
func IsRateLimitConfig(err error) bool {
	return Kind(err) == ErrorTypeRateLimitConfig
}

// IsConfig checks if an error is a configuration error
func IsConfig(err error) bool {
	return Kind(err) == ErrorTypeConfig
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return Kind(err) == ErrorTypeNotFound
}

// IsCancelled checks if an error comes from run cancellation
func IsCancelled(err error) bool {
	return Kind(err) == ErrorTypeCancelled
}

// IsSetup reports whether err must abort the run before any task executes.
func IsSetup(err error) bool {
	switch Kind(err) {
	case ErrorTypeRateLimitConfig, ErrorTypeConfig, ErrorTypeAuth, ErrorTypeFilesystem:
		return true
	}
	return false
}

package errors_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorType
	}{
		{"nil", nil, ""},
		{"auth", apperrors.Auth("unsplash", "missing key"), apperrors.ErrorTypeAuth},
		{"wrapped network", fmt.Errorf("fetch: %w", apperrors.Network("pixabay", "reset", io.ErrUnexpectedEOF)), apperrors.ErrorTypeNetwork},
		{"context canceled", context.Canceled, apperrors.ErrorTypeCancelled},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), apperrors.ErrorTypeCancelled},
		{"plain", stderrors.New("boom"), apperrors.ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperrors.Kind(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, apperrors.IsRetryable(apperrors.Network("wallhaven", "503", nil)))
	assert.True(t, apperrors.IsRetryable(apperrors.ChecksumMismatch("sha256 differs")))
	assert.True(t, apperrors.IsRetryable(apperrors.Filesystem("rename", io.ErrShortWrite)))
	assert.True(t, apperrors.IsRetryable(io.ErrUnexpectedEOF))

	assert.False(t, apperrors.IsRetryable(nil))
	assert.False(t, apperrors.IsRetryable(apperrors.PermanentNetwork("wallhaven", "400 bad request")))
	assert.False(t, apperrors.IsRetryable(apperrors.NotFound("pixabay", "gone")))
	assert.False(t, apperrors.IsRetryable(apperrors.Auth("unsplash", "401")))
	assert.False(t, apperrors.IsRetryable(context.Canceled))
	assert.False(t, apperrors.IsRetryable(apperrors.Cancelled(context.Canceled)))
}

func TestAppErrorMessage(t *testing.T) {
	err := apperrors.Network("unsplash", "request failed", io.EOF)
	assert.Equal(t, "NETWORK [unsplash]: request failed: EOF", err.Error())
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "CONFIG: limit must be positive", apperrors.Config("limit must be positive").Error())
}

func TestIsSetup(t *testing.T) {
	assert.True(t, apperrors.IsSetup(apperrors.RateLimitConfig("wallhaven", "negative interval")))
	assert.True(t, apperrors.IsSetup(apperrors.Auth("pixabay", "missing key")))
	assert.True(t, apperrors.IsSetup(apperrors.Filesystem("mkdir", io.ErrClosedPipe)))
	assert.False(t, apperrors.IsSetup(apperrors.Network("pixabay", "reset", nil)))
}

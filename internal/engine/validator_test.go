package engine

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

func TestParseChecksum(t *testing.T) {
	sha := sha256.Sum256([]byte("x"))
	shaHex := hex.EncodeToString(sha[:])
	md := md5.Sum([]byte("x"))
	mdHex := hex.EncodeToString(md[:])

	tests := []struct {
		in     string
		algo   string
		digest string
		ok     bool
	}{
		{"sha256:" + shaHex, "sha256", shaHex, true},
		{"SHA256:" + strings.ToUpper(shaHex), "sha256", shaHex, true},
		{shaHex, "sha256", shaHex, true},
		{mdHex, "md5", mdHex, true},
		{`"5d41402abc4b2a76"`, "", "", false},
		{"crc32:abcd", "", "", false},
		{"sha1:nothex", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		algo, digest, ok := parseChecksum(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.algo, algo, tt.in)
		assert.Equal(t, tt.digest, digest, tt.in)
	}
}

func TestFileValidator_ValidateFile(t *testing.T) {
	v := NewFileValidator(zap.NewNop())
	path := filepath.Join(t.TempDir(), "img.jpg")
	require.NoError(t, os.WriteFile(path, []byte("wallpaper"), 0o644))

	sum := sha256.Sum256([]byte("wallpaper"))
	assert.NoError(t, v.ValidateFile(path, hex.EncodeToString(sum[:])))

	other := sha256.Sum256([]byte("other"))
	err := v.ValidateFile(path, "sha256:"+hex.EncodeToString(other[:]))
	assert.True(t, apperrors.IsChecksumMismatch(err))

	assert.Error(t, v.ValidateFile(path, "etag-123"))
	assert.False(t, v.Supports("etag-123"))

	var nilDigest *digest
	assert.NoError(t, nilDigest.Verify())
}

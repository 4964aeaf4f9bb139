package engine

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// FileValidator verifies content against the checksum advertised by a provider.
//
// Accepted forms are "<algo>:<hex>" and a bare hex digest whose length
// identifies the algorithm. Anything else, such as an opaque etag, cannot be
// verified locally and is ignored.
type FileValidator struct {
	logger *zap.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *zap.Logger) *FileValidator {
	return &FileValidator{
		logger: logger.Named("file-validator"),
	}
}

// parseChecksum splits a checksum into algorithm and normalized digest
func parseChecksum(checksum string) (algo, digest string, ok bool) {
	checksum = strings.ToLower(strings.TrimSpace(checksum))
	if checksum == "" {
		return "", "", false
	}

	if i := strings.IndexByte(checksum, ':'); i > 0 {
		algo, digest = checksum[:i], checksum[i+1:]
	} else {
		digest = checksum
		switch len(digest) {
		case 32:
			algo = "md5"
		case 40:
			algo = "sha1"
		case 64:
			algo = "sha256"
		case 128:
			algo = "sha512"
		default:
			return "", "", false
		}
	}

	if _, err := hex.DecodeString(digest); err != nil {
		return "", "", false
	}
	if newHash(algo) == nil {
		return "", "", false
	}
	return algo, digest, true
}

func newHash(algo string) hash.Hash {
	switch algo {
	case "md5":
		return md5.New()
	case "sha1":
		return sha1.New()
	case "sha256":
		return sha256.New()
	case "sha512":
		return sha512.New()
	}
	return nil
}

// Supports reports whether checksum can be verified
func (v *FileValidator) Supports(checksum string) bool {
	_, _, ok := parseChecksum(checksum)
	return ok
}

// digest is a running hash for one download. A nil digest accepts anything.
type digest struct {
	hash.Hash
	algo     string
	expected string
}

// newDigest starts hashing for checksum, or returns nil when it cannot be verified
func (v *FileValidator) newDigest(checksum string) *digest {
	algo, expected, ok := parseChecksum(checksum)
	if !ok {
		return nil
	}
	return &digest{Hash: newHash(algo), algo: algo, expected: expected}
}

// Verify compares the running hash to the expected digest
func (d *digest) Verify() error {
	if d == nil {
		return nil
	}
	actual := hex.EncodeToString(d.Sum(nil))
	if actual != d.expected {
		return apperrors.ChecksumMismatch(fmt.Sprintf("%s mismatch: expected %s, got %s", d.algo, d.expected, actual))
	}
	return nil
}

// ValidateFile validates an existing file against a checksum
func (v *FileValidator) ValidateFile(path, checksum string) error {
	d := v.newDigest(checksum)
	if d == nil {
		return fmt.Errorf("unsupported checksum %q", checksum)
	}

	file, err := os.Open(path)
	if err != nil {
		return apperrors.Filesystem("open file", err)
	}
	defer file.Close()

	if _, err := io.CopyBuffer(d, file, make([]byte, 64*1024)); err != nil {
		return apperrors.Filesystem("read file", err)
	}

	if err := d.Verify(); err != nil {
		return err
	}

	v.logger.Debug("checksum validation passed",
		zap.String("file", path),
		zap.String("type", d.algo),
	)
	return nil
}

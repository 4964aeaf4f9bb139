// Package storage copies finished downloads to an object store.
package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/config"
	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
)

// objectAPI is the part of the S3 client the mirror uses
type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// MirrorResult counts what one mirror pass did
type MirrorResult struct {
	Uploaded int
	Existing int
	Failed   int
	Bytes    int64
}

// S3Mirror uploads the files of a run to a bucket
type S3Mirror struct {
	client objectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Mirror creates a mirror using the default AWS credential chain. A
// custom endpoint switches to path-style addressing for MinIO and friends.
func NewS3Mirror(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*S3Mirror, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return newS3Mirror(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3Mirror(client objectAPI, bucket, prefix string, logger *zap.Logger) *S3Mirror {
	return &S3Mirror{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Named("s3-mirror"),
	}
}

// MirrorRun uploads every file the run stored. Objects already present with
// the same size are left alone. Failures are logged and counted; they never
// change the run outcome.
func (m *S3Mirror) MirrorRun(ctx context.Context, summary *download.RunSummary) MirrorResult {
	var result MirrorResult

	for _, snap := range summary.Successful() {
		if ctx.Err() != nil {
			m.logger.Warn("mirror interrupted", zap.Error(ctx.Err()))
			break
		}

		key := m.Key(snap.Path)
		logger := m.logger.With(zap.String("key", key), zap.String("path", snap.Path))

		uploaded, size, err := m.mirrorFile(ctx, snap.Path, key)
		switch {
		case err != nil:
			result.Failed++
			logger.Warn("failed to mirror file", zap.Error(err))
		case uploaded:
			result.Uploaded++
			result.Bytes += size
			logger.Debug("file mirrored", zap.Int64("bytes", size))
		default:
			result.Existing++
		}
	}

	m.logger.Info("mirror finished",
		zap.String("bucket", m.bucket),
		zap.Int("uploaded", result.Uploaded),
		zap.Int("existing", result.Existing),
		zap.Int("failed", result.Failed),
	)
	return result
}

// Key returns the object key of a local file
func (m *S3Mirror) Key(localPath string) string {
	return path.Join(m.prefix, filepath.Base(localPath))
}

func (m *S3Mirror) mirrorFile(ctx context.Context, localPath, key string) (bool, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return false, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, 0, err
	}
	size := info.Size()

	head, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err == nil && aws.ToInt64(head.ContentLength) == size {
		return false, size, nil
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := m.client.PutObject(ctx, input); err != nil {
		return false, 0, fmt.Errorf("failed to upload to S3: %w", err)
	}
	return true, size, nil
}

// Package storage fetches catalog images from S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	infraconfig "github.com/pdv/catalogsync/internal/infrastructure/config"
	"go.uber.org/zap"
)

var (
	// ErrObjectNotFound means the referenced object does not exist
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrBucketNotAllowed means the reference names a bucket other than the configured one
	ErrBucketNotAllowed = errors.New("storage: bucket not allowed")
	// ErrObjectTooLarge means the object exceeds the read limit
	ErrObjectTooLarge = errors.New("storage: object too large")
)

const (
	defaultRegion   = "us-east-1"
	defaultMaxBytes = 10 << 20
)

var _ catalogsync.ImageStore = (*S3ImageStore)(nil)

// S3ImageStore reads image objects through the AWS SDK v2. It works with any
// S3-compatible endpoint (AWS, MinIO, RustFS).
type S3ImageStore struct {
	client   *s3.Client
	bucket   string
	maxBytes int64
	logger   *zap.Logger
}

// Option configures an S3ImageStore
type Option func(*S3ImageStore)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *S3ImageStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxBytes caps how much of an object is read
func WithMaxBytes(n int64) Option {
	return func(s *S3ImageStore) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// NewS3ImageStore builds a store from configuration. When cfg.Bucket is set
// only that bucket may be read.
func NewS3ImageStore(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...Option) (*S3ImageStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("storage access key id and secret access key are required")
	}

	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	var endpoint string
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	s := &S3ImageStore{
		client:   client,
		bucket:   cfg.Bucket,
		maxBytes: defaultMaxBytes,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Fetch implements catalogsync.ImageStore
func (s *S3ImageStore) Fetch(ctx context.Context, bucket, key string) ([]byte, string, error) {
	if bucket == "" || key == "" {
		return nil, "", errors.New("bucket and key are required")
	}
	if s.bucket != "" && bucket != s.bucket {
		return nil, "", fmt.Errorf("%w: %s", ErrBucketNotAllowed, bucket)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) || strings.Contains(err.Error(), "NoSuchKey") {
			return nil, "", fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, bucket, key)
		}
		return nil, "", fmt.Errorf("failed to get object s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if out.ContentLength != nil && *out.ContentLength > s.maxBytes {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrObjectTooLarge, *out.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(out.Body, s.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object s3://%s/%s: %w", bucket, key, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrObjectTooLarge, s.maxBytes)
	}

	s.logger.Debug("Fetched image object",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return data, aws.ToString(out.ContentType), nil
}

// Bucket returns the configured bucket, empty when any bucket may be read
func (s *S3ImageStore) Bucket() string {
	return s.bucket
}

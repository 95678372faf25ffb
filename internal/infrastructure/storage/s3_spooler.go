// Package storage provides object storage backends for spooled print output.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	infraconfig "github.com/crosswms/loadorder/internal/infrastructure/config"
	"github.com/crosswms/loadorder/internal/infrastructure/printing"
	"go.uber.org/zap"
)

// s3API is the subset of the S3 client used by the spooler
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Spooler spools printed documents to S3-compatible object storage
// (AWS S3, MinIO, RustFS). Get URLs are presigned.
type S3Spooler struct {
	client            s3API
	presign           func(ctx context.Context, key string, expires time.Duration) (string, error)
	bucket            string
	prefix            string
	presignExpiration time.Duration
	logger            *zap.Logger
	now               func() time.Time
}

// S3SpoolerOption is a functional option for configuring S3Spooler
type S3SpoolerOption func(*S3Spooler)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3SpoolerOption {
	return func(s *S3Spooler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPresignExpiration sets a custom presign expiration duration
func WithPresignExpiration(d time.Duration) S3SpoolerOption {
	return func(s *S3Spooler) {
		s.presignExpiration = d
	}
}

// NewS3Spooler creates a spooler from configuration
func NewS3Spooler(cfg *infraconfig.S3Config, opts ...S3SpoolerOption) (*S3Spooler, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})
	presignClient := s3.NewPresignClient(client)

	s := newS3Spooler(client, cfg.Bucket, cfg.Prefix, cfg.PresignExpiration, opts...)
	s.presign = func(ctx context.Context, key string, expires time.Duration) (string, error) {
		req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(expires))
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}
	return s, nil
}

func newS3Spooler(client s3API, bucket, prefix string, expiration time.Duration, opts ...S3SpoolerOption) *S3Spooler {
	s := &S3Spooler{
		client:            client,
		bucket:            bucket,
		prefix:            normalizePrefix(prefix),
		presignExpiration: expiration,
		logger:            zap.NewNop(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.presignExpiration <= 0 {
		s.presignExpiration = 15 * time.Minute
	}
	return s
}

func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *S3Spooler) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating spool bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Spool uploads the document under {prefix}{year}/{month}/{dialog_id}-r{revision}.pdf
func (s *S3Spooler) Spool(ctx context.Context, req *printing.SpoolRequest) (*printing.SpoolResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	rel := path.Join(fmt.Sprintf("%d", now.Year()), fmt.Sprintf("%02d", now.Month()), req.FileName())
	key := s.prefix + rel

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(req.Data),
		ContentType: aws.String("application/pdf"),
		Metadata: map[string]string{
			"dialog-id":     req.DialogID.String(),
			"document-type": req.DocumentType.String(),
		},
	})
	if err != nil {
		return nil, printing.NewRenderError(printing.ErrCodeSpoolFailed, "failed to upload spool object", err)
	}

	result := &printing.SpoolResult{Path: rel, Size: int64(len(req.Data))}
	if s.presign != nil {
		u, err := s.presign(ctx, key, s.presignExpiration)
		if err != nil {
			s.logger.Warn("failed to presign spool object", zap.String("key", key), zap.Error(err))
		} else {
			result.URL = u
		}
	}

	s.logger.Info("document spooled",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(req.Data)))
	return result, nil
}

func (s *S3Spooler) key(rel string) (string, error) {
	parts := strings.Split(rel, "/")
	if rel == "" || strings.HasPrefix(rel, "/") || slices.Contains(parts, "..") {
		return "", printing.NewRenderError(printing.ErrCodeSpoolFailed, "invalid path", nil)
	}
	return s.prefix + rel, nil
}

// Get downloads a spooled document
func (s *S3Spooler) Get(ctx context.Context, rel string) (io.ReadCloser, error) {
	key, err := s.key(rel)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, printing.NewRenderError(printing.ErrCodeSpoolFailed, "spool object not found", err)
		}
		return nil, printing.NewRenderError(printing.ErrCodeSpoolFailed, "failed to get spool object", err)
	}
	return out.Body, nil
}

// Delete removes a spooled document
func (s *S3Spooler) Delete(ctx context.Context, rel string) error {
	key, err := s.key(rel)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return printing.NewRenderError(printing.ErrCodeSpoolFailed, "failed to delete spool object", err)
	}
	return nil
}

// CleanupOlderThan deletes spool objects last modified before now-age
func (s *S3Spooler) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := s.now().Add(-age)
	deleted := 0

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, printing.NewRenderError(printing.ErrCodeSpoolFailed, "failed to list spool objects", err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			if !strings.HasSuffix(aws.ToString(obj.Key), ".pdf") {
				continue
			}
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			}); err != nil {
				s.logger.Warn("failed to delete expired spool object",
					zap.String("key", aws.ToString(obj.Key)),
					zap.Error(err))
				continue
			}
			deleted++
		}
	}

	s.logger.Info("spool cleanup completed",
		zap.String("bucket", s.bucket),
		zap.Int("deleted", deleted),
		zap.Duration("age", age))
	return deleted, nil
}

// Bucket returns the bucket name
func (s *S3Spooler) Bucket() string {
	return s.bucket
}

var _ printing.Spooler = (*S3Spooler)(nil)

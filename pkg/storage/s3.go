package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures an S3 compatible bucket (AWS or MinIO).
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	AccessKey string
	SecretKey string
	// Prefix is prepended to every object key.
	Prefix string
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// S3Storage keeps exports as objects in a single bucket.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
	now    func() time.Time
}

var _ ObjectStore = (*S3Storage)(nil)

// NewS3Storage builds the client. Static credentials are used when both keys
// are set; otherwise the default AWS credential chain applies.
func NewS3Storage(ctx context.Context, opts S3Options) (*S3Storage, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		if opts.HTTPClient != nil {
			o.HTTPClient = opts.HTTPClient
		}
	})
	return &S3Storage{client: client, bucket: opts.Bucket, prefix: opts.Prefix, now: time.Now}, nil
}

// Save uploads data and returns the name relative to the prefix.
func (s *S3Storage) Save(ctx context.Context, name string, data []byte) (string, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(cleaned)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(cleaned)),
	})
	if err != nil {
		return "", fmt.Errorf("put export object: %w", err)
	}
	return cleaned, nil
}

// Open streams the object body. Callers must close it.
func (s *S3Storage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(cleaned)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get export object: %w", err)
	}
	return out.Body, nil
}

// Delete removes the object. Missing objects are not an error.
func (s *S3Storage) Delete(ctx context.Context, name string) error {
	cleaned, err := cleanName(name)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(cleaned)),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("delete export object: %w", err)
	}
	return nil
}

// CleanupOlderThan deletes objects under the prefix last modified before now-ttl.
func (s *S3Storage) CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error) {
	cutoff := s.now().Add(-ttl)
	var stale []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list export objects: %w", err)
		}
		for _, obj := range page.Contents {
			if aws.ToTime(obj.LastModified).After(cutoff) {
				continue
			}
			stale = append(stale, aws.ToString(obj.Key))
		}
	}

	deleted := make([]string, 0, len(stale))
	for _, key := range stale {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); err != nil {
			return deleted, fmt.Errorf("delete export object %s: %w", key, err)
		}
		deleted = append(deleted, strings.TrimPrefix(key, s.prefix))
	}
	return deleted, nil
}

func (s *S3Storage) key(name string) string {
	return s.prefix + name
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

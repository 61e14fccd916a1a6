package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/noah-isme/biblioteca-api/pkg/config"
)

// ErrObjectNotFound is returned when a stored export does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectStore keeps rendered export files.
type ObjectStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error)
}

// New builds the object store selected by the reports configuration.
func New(ctx context.Context, cfg config.ReportsConfig) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case "", config.ReportStorageLocal:
		return NewLocalStorage(cfg.StorageDir)
	case config.ReportStorageS3:
		return NewS3Storage(ctx, S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    "exports/",
		})
	default:
		return nil, fmt.Errorf("unknown report storage driver %q", cfg.StorageDriver)
	}
}

// cleanName rejects names that would escape the storage root.
func cleanName(name string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if cleaned == "." || cleaned == "" || strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return cleaned, nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

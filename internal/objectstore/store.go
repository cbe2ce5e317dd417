// Package objectstore exposes the put/get/delete-prefix object storage
// capability used for publishing course packages. Backends: any
// S3-compatible service (AWS, MinIO) and a local directory tree.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"coursepipe/internal/config"
	"coursepipe/internal/services"
)

// Store is the object storage capability.
type Store interface {
	// Put uploads size bytes from r under key and returns the object's URL.
	Put(ctx context.Context, key string, r io.Reader, size int64) (string, error)
	// Get opens the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// URL returns the address an object under key is reachable at.
	URL(key string) string
	// Describe names the backend and bucket for logs and manifests.
	Describe() (endpoint, bucket string)
}

// New builds the backend selected by cfg.Storage.Backend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	if err := cfg.ValidateStorageReady(); err != nil {
		return nil, services.WrapCode(services.CodeConfigInvalid, "storage not ready", err)
	}
	switch cfg.Storage.Backend {
	case "fs":
		return NewFSStore(cfg.Storage.FSRoot, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL)
	case "s3", "":
		return NewS3Store(ctx, cfg.Storage, cfg.StorageTimeout())
	default:
		return nil, services.Errorf(services.CodeConfigInvalid, "unsupported storage backend %q", cfg.Storage.Backend)
	}
}

var repeatedSlashes = regexp.MustCompile(`/{2,}`)

// NormalizePrefix trims surrounding slashes and collapses repeated ones.
// An empty prefix falls back to fallback.
func NormalizePrefix(prefix, fallback string) string {
	value := strings.Trim(strings.TrimSpace(prefix), "/")
	if value == "" {
		value = fallback
	}
	return repeatedSlashes.ReplaceAllString(value, "/")
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

func storeError(op, key string, err error) error {
	return services.WrapCode(services.CodeObjectStoreFailed, fmt.Sprintf("%s %s", op, key), err)
}

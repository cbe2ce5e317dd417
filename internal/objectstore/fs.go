package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"coursepipe/internal/services"
)

// FSStore keeps objects as files under root/bucket. It backs local publishing
// and every test that needs object storage.
type FSStore struct {
	root    string
	bucket  string
	baseURL string
}

// NewFSStore creates the bucket directory under root.
func NewFSStore(root, bucket, baseURL string) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, services.NewError(services.CodeConfigInvalid, "storage.fs_root is required for the fs backend")
	}
	if bucket == "" {
		bucket = "default"
	}
	dir := filepath.Join(root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &FSStore{root: root, bucket: bucket, baseURL: baseURL}, nil
}

func (s *FSStore) bucketDir() string {
	return filepath.Join(s.root, s.bucket)
}

func (s *FSStore) pathFor(key string) (string, error) {
	cleaned := strings.TrimLeft(filepath.ToSlash(filepath.Clean("/"+key)), "/")
	if cleaned == "" || cleaned != strings.TrimLeft(key, "/") {
		return "", services.Errorf(services.CodeInvalidArgument, "invalid object key %q", key)
	}
	return filepath.Join(s.bucketDir(), filepath.FromSlash(cleaned)), nil
}

// Put copies r into the object file, replacing it atomically.
func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", storeError("put", key, err)
	}
	tmp := path + ".upload"
	out, err := os.Create(tmp)
	if err != nil {
		return "", storeError("put", key, err)
	}
	written, copyErr := io.Copy(out, r)
	closeErr := out.Close()
	if copyErr == nil && closeErr == nil && size >= 0 && written != size {
		copyErr = fmt.Errorf("short write: %d of %d bytes", written, size)
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		return "", storeError("put", key, errors.Join(copyErr, closeErr))
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", storeError("put", key, err)
	}
	return s.URL(key), nil
}

// Get opens the object file.
func (s *FSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storeError("get", key, fmt.Errorf("%w: %w", services.ErrNotFound, err))
		}
		return nil, storeError("get", key, err)
	}
	return f, nil
}

// DeletePrefix removes every object whose key starts with prefix.
func (s *FSStore) DeletePrefix(ctx context.Context, prefix string) error {
	trimmed := strings.Trim(strings.TrimSpace(prefix), "/")
	if trimmed == "" {
		return fmt.Errorf("prefix is required")
	}
	base := s.bucketDir()
	var doomed []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(filepath.ToSlash(rel), trimmed) {
			doomed = append(doomed, path)
		}
		return nil
	})
	if err != nil {
		return storeError("list", trimmed, err)
	}
	for _, path := range doomed {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return storeError("delete", trimmed, err)
		}
	}
	return nil
}

// URL returns baseURL/key when configured, else a file:// URL.
func (s *FSStore) URL(key string) string {
	if s.baseURL != "" {
		return joinURL(s.baseURL, key)
	}
	path, err := s.pathFor(key)
	if err != nil {
		return ""
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// Describe returns the root directory and bucket.
func (s *FSStore) Describe() (string, string) {
	return s.root, s.bucket
}

var _ Store = (*FSStore)(nil)

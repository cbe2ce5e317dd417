package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"coursepipe/internal/fileutil"
)

const lockRetryDelay = 50 * time.Millisecond

// Load reads a catalog file. A missing file yields nil, nil.
func Load(path string) (*Catalog, error) {
	var cat Catalog
	if err := fileutil.ReadJSON(path, &cat); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return &cat, nil
}

// Save writes the catalog atomically.
func Save(path string, cat Catalog) error {
	if cat.Courses == nil {
		cat.Courses = []Entry{}
	}
	return fileutil.WriteJSONAtomic(path, cat)
}

// Update merges (or, when replace is set, resets to) incoming in the catalog
// file at path while holding the catalog lock, and returns the written catalog.
func Update(ctx context.Context, path string, incoming Entry, version int, replace bool) (Catalog, error) {
	if err := incoming.Validate(); err != nil {
		return Catalog{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Catalog{}, err
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return Catalog{}, fmt.Errorf("acquire catalog lock: %w", err)
	}
	if !locked {
		return Catalog{}, fmt.Errorf("acquire catalog lock: %s busy", path)
	}
	defer func() { _ = lock.Unlock() }()

	var next Catalog
	if replace {
		next = Replace(incoming, version)
	} else {
		existing, err := Load(path)
		if err != nil {
			return Catalog{}, err
		}
		next = Merge(existing, incoming, version)
	}
	if err := Save(path, next); err != nil {
		return Catalog{}, err
	}
	return next, nil
}

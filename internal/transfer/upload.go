package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coursepipe/internal/fileutil"
	"coursepipe/internal/logging"
	"coursepipe/internal/objectstore"
	"coursepipe/internal/services"
)

const mib = 1024 * 1024

// UploadOptions configures a segmented upload.
type UploadOptions struct {
	SourcePath    string
	PartSizeBytes int64
	// Prefix defaults to the source file name.
	Prefix string
	// ManifestPath defaults to "<source>.parts.json".
	ManifestPath string
	// ManifestKey defaults to "<prefix>.manifest.json".
	ManifestKey        string
	SkipManifestUpload bool
	Progress           ProgressFunc
}

// UploadResult summarizes a completed segmented upload.
type UploadResult struct {
	Manifest      *Manifest `json:"-"`
	File          string    `json:"file"`
	Bucket        string    `json:"bucket"`
	PartSizeMiB   int64     `json:"part_size_mib"`
	PartCount     int       `json:"part_count"`
	UploadedBytes int64     `json:"uploaded_bytes"`
	ObjectPrefix  string    `json:"object_prefix"`
	ManifestLocal string    `json:"manifest_local"`
	ManifestKey   string    `json:"manifest_object_key"`
	ManifestURL   string    `json:"manifest_url"`
}

// Uploader splits files into parts and pushes them to a Store.
type Uploader struct {
	store  objectstore.Store
	logger *slog.Logger
}

// NewUploader returns an Uploader bound to store.
func NewUploader(store objectstore.Store, logger *slog.Logger) *Uploader {
	return &Uploader{store: store, logger: logging.NewComponentLogger(logger, "transfer")}
}

// Upload streams the source sequentially. Each part is hashed while it is
// uploaded; a failure aborts with the counts already moved and no manifest
// is written.
func (u *Uploader) Upload(ctx context.Context, opts UploadOptions) (*UploadResult, error) {
	if opts.PartSizeBytes < mib {
		return nil, services.NewError(services.CodeInvalidPartSize, "part size must be at least 1 MiB")
	}
	source, err := filepath.Abs(opts.SourcePath)
	if err != nil {
		return nil, services.WrapCode(services.CodeInvalidArgument, opts.SourcePath, err)
	}
	info, err := os.Stat(source)
	if err != nil || !info.Mode().IsRegular() {
		return nil, services.Errorf(services.CodeInvalidArgument, "source file not found: %s", source)
	}
	size := info.Size()
	if size == 0 {
		return nil, services.NewError(services.CodeEmptyFile, "source file is empty")
	}

	total := int((size + opts.PartSizeBytes - 1) / opts.PartSizeBytes)
	prefix := objectstore.NormalizePrefix(opts.Prefix, filepath.Base(source))
	manifestPath := opts.ManifestPath
	if strings.TrimSpace(manifestPath) == "" {
		manifestPath = source + ".parts.json"
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, services.WrapCode(services.CodeInvalidArgument, source, err)
	}
	defer f.Close()

	endpoint, bucket := u.store.Describe()
	progress := newProgressReporter(size, opts.Progress)
	whole := sha256.New()
	parts := make([]Part, 0, total)
	var uploaded int64

	u.logger.Info("segmented upload started",
		logging.String("source", source),
		logging.Int64("size_bytes", size),
		logging.Int("part_count", total),
		logging.String("prefix", prefix),
	)

	for index := 1; index <= total; index++ {
		offset := int64(index-1) * opts.PartSizeBytes
		partSize := opts.PartSizeBytes
		if remaining := size - offset; remaining < partSize {
			partSize = remaining
		}
		key := PartKey(prefix, index, total)

		part, err := u.uploadPart(ctx, io.NewSectionReader(f, offset, partSize), key, index, partSize, whole, progress)
		if err != nil {
			return nil, services.WrapCode(services.CodeSegmentUploadFailed,
				fmt.Sprintf("part %d of %d", index, total), err).
				WithDetail("uploaded_parts", len(parts)).
				WithDetail("uploaded_bytes", uploaded)
		}
		parts = append(parts, part)
		uploaded += part.SizeBytes
	}
	progress.flush()

	manifest := &Manifest{
		SchemaVersion:   ManifestSchemaVersion,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
		Bucket:          bucket,
		Endpoint:        strings.TrimRight(endpoint, "/"),
		SourceFile:      source,
		SourceName:      filepath.Base(source),
		SourceSizeBytes: size,
		SourceSHA256:    hex.EncodeToString(whole.Sum(nil)),
		PartSizeBytes:   opts.PartSizeBytes,
		PartCount:       len(parts),
		ObjectPrefix:    prefix,
		Parts:           parts,
	}
	if err := SaveManifest(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	result := &UploadResult{
		Manifest:      manifest,
		File:          source,
		Bucket:        bucket,
		PartSizeMiB:   opts.PartSizeBytes / mib,
		PartCount:     len(parts),
		UploadedBytes: uploaded,
		ObjectPrefix:  prefix,
		ManifestLocal: manifestPath,
	}
	if !opts.SkipManifestUpload {
		key := opts.ManifestKey
		if strings.TrimSpace(key) == "" {
			key = ManifestKey(prefix)
		}
		url, err := u.PutFile(ctx, key, manifestPath)
		if err != nil {
			return nil, services.WrapCode(services.CodeSegmentUploadFailed, "manifest upload", err).
				WithDetail("manifest_local", manifestPath)
		}
		result.ManifestKey = key
		result.ManifestURL = url
	}

	u.logger.Info("segmented upload completed",
		logging.String("prefix", prefix),
		logging.Int("part_count", len(parts)),
		logging.String("sha256", manifest.SourceSHA256),
	)
	return result, nil
}

func (u *Uploader) uploadPart(ctx context.Context, section io.Reader, key string, index int, size int64, whole hash.Hash, progress *progressReporter) (Part, error) {
	partHash := sha256.New()
	counter := &countingWriter{}
	writers := []io.Writer{partHash, whole, counter}
	if progress != nil {
		writers = append(writers, progress)
	}
	body := io.TeeReader(section, io.MultiWriter(writers...))

	url, err := u.store.Put(ctx, key, body, size)
	if err != nil {
		return Part{}, err
	}
	if counter.n != size {
		return Part{}, errors.New("source changed during upload")
	}
	u.logger.Debug("part uploaded", logging.Int("index", index), logging.String("object_key", key))
	return Part{
		Index:     index,
		ObjectKey: key,
		SizeBytes: size,
		SHA256:    hex.EncodeToString(partHash.Sum(nil)),
		URL:       url,
	}, nil
}

// PutFile uploads a whole local file under key and returns its URL.
func (u *Uploader) PutFile(ctx context.Context, key, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	return u.store.Put(ctx, key, f, info.Size())
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// Inspect returns the SHA-256 and size of a local file.
func Inspect(path string) (string, int64, error) {
	digest, size, err := fileutil.SHA256File(path)
	if err != nil {
		return "", 0, services.WrapCode(services.CodeInvalidArgument, path, err)
	}
	return digest, size, nil
}

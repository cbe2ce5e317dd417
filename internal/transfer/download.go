package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"coursepipe/internal/logging"
	"coursepipe/internal/services"
)

// DownloadOptions configures a restore.
type DownloadOptions struct {
	Manifest *Manifest
	// OutPath defaults to "<cwd>/<source_name>".
	OutPath  string
	Progress ProgressFunc
}

// DownloadResult summarizes a verified restore.
type DownloadResult struct {
	RestoredFile string `json:"restored_file"`
	SizeBytes    int64  `json:"size_bytes"`
	SHA256       string `json:"sha256"`
	PartCount    int    `json:"part_count"`
}

// Download validates the manifest, appends every part in index order to the
// output file, and verifies size then digest. Any failure removes the output.
func (u *Uploader) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, error) {
	m := opts.Manifest
	if m == nil || len(m.Parts) == 0 {
		return nil, services.NewError(services.CodeInvalidManifestParts, "manifest.parts is required")
	}
	parts, err := NormalizeParts(m.Parts)
	if err != nil {
		return nil, err
	}

	outPath, err := resolveOutPath(opts.OutPath, m.SourceName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	committed := false
	defer func() {
		_ = out.Close()
		if !committed {
			_ = os.Remove(outPath)
		}
	}()

	digest := sha256.New()
	progress := newProgressReporter(m.SourceSizeBytes, opts.Progress)
	var written int64
	for i, part := range parts {
		n, err := u.fetchPart(ctx, part.ObjectKey, out, digest, progress)
		written += n
		if err != nil {
			return nil, services.WrapCode(services.CodeSegmentDownloadFailed,
				fmt.Sprintf("part %d of %d", part.Index, len(parts)), err).
				WithDetail("downloaded_parts", i).
				WithDetail("downloaded_bytes", written)
		}
	}
	progress.flush()
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close output: %w", err)
	}

	actual := hex.EncodeToString(digest.Sum(nil))
	if m.SourceSizeBytes > 0 && m.SourceSizeBytes != written {
		return nil, services.Errorf(services.CodeRestoreSizeMismatch,
			"expected %d, got %d", m.SourceSizeBytes, written)
	}
	if expected := strings.ToLower(strings.TrimSpace(m.SourceSHA256)); expected != "" && expected != actual {
		return nil, services.Errorf(services.CodeRestoreSHA256Mismatch,
			"expected %s, got %s", expected, actual)
	}
	committed = true

	u.logger.Info("segmented download verified",
		logging.String("restored_file", outPath),
		logging.Int64("size_bytes", written),
		logging.Int("part_count", len(parts)),
	)
	return &DownloadResult{
		RestoredFile: outPath,
		SizeBytes:    written,
		SHA256:       actual,
		PartCount:    len(parts),
	}, nil
}

func (u *Uploader) fetchPart(ctx context.Context, key string, out io.Writer, digest io.Writer, progress *progressReporter) (int64, error) {
	rc, err := u.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	writers := []io.Writer{out, digest}
	if progress != nil {
		writers = append(writers, progress)
	}
	return io.Copy(io.MultiWriter(writers...), rc)
}

func resolveOutPath(out, sourceName string) (string, error) {
	if strings.TrimSpace(out) != "" {
		return filepath.Abs(out)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(sourceName)
	if name == "" {
		name = "restored.package"
	}
	return filepath.Join(cwd, filepath.Base(name)), nil
}

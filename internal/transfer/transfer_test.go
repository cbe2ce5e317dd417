package transfer_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coursepipe/internal/fileutil"
	"coursepipe/internal/logging"
	"coursepipe/internal/objectstore"
	"coursepipe/internal/services"
	"coursepipe/internal/transfer"
)

const mib = 1024 * 1024

func newStore(t *testing.T) *objectstore.FSStore {
	t.Helper()
	store, err := objectstore.NewFSStore(t.TempDir(), "courses", "")
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	return store
}

// writePatterned writes size bytes whose content varies by offset so that
// misordered parts change the digest.
func writePatterned(t *testing.T, path string, size int) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*31 + i/4096)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	store := newStore(t)
	u := transfer.NewUploader(store, logging.NewNop())
	ctx := context.Background()

	dir := t.TempDir()
	source := filepath.Join(dir, "course.zip")
	writePatterned(t, source, 10*mib)
	wantDigest, _, err := fileutil.SHA256File(source)
	if err != nil {
		t.Fatal(err)
	}

	res, err := u.Upload(ctx, transfer.UploadOptions{
		SourcePath:    source,
		PartSizeBytes: 4 * mib,
		Prefix:        "/course_a//1.0.0/course.zip",
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	m := res.Manifest
	if m.PartCount != 3 || len(m.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", m.PartCount)
	}
	wantSizes := []int64{4 * mib, 4 * mib, 2 * mib}
	for i, part := range m.Parts {
		if part.Index != i+1 || part.SizeBytes != wantSizes[i] {
			t.Fatalf("part %d unexpected: %#v", i, part)
		}
	}
	if m.Parts[0].ObjectKey != "course_a/1.0.0/course.zip.part-0001" {
		t.Fatalf("unexpected part key %q", m.Parts[0].ObjectKey)
	}
	if m.SourceSHA256 != wantDigest || m.SourceSizeBytes != 10*mib {
		t.Fatalf("manifest digest/size mismatch: %s %d", m.SourceSHA256, m.SourceSizeBytes)
	}
	if res.ManifestLocal != source+".parts.json" || res.ManifestKey != "course_a/1.0.0/course.zip.manifest.json" {
		t.Fatalf("unexpected manifest locations: %q %q", res.ManifestLocal, res.ManifestKey)
	}

	fetched, err := transfer.FetchManifest(ctx, store, res.ManifestKey)
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	out := filepath.Join(t.TempDir(), "restored.zip")
	got, err := u.Download(ctx, transfer.DownloadOptions{Manifest: fetched, OutPath: out})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if got.SHA256 != wantDigest || got.SizeBytes != 10*mib || got.PartCount != 3 {
		t.Fatalf("unexpected download result: %#v", got)
	}
	restoredDigest, _, err := fileutil.SHA256File(out)
	if err != nil || restoredDigest != wantDigest {
		t.Fatalf("restored digest mismatch: %s (%v)", restoredDigest, err)
	}
}

func TestDownloadDetectsCorruptedPart(t *testing.T) {
	store := newStore(t)
	u := transfer.NewUploader(store, nil)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "pkg.zip")
	writePatterned(t, source, 3*mib)
	res, err := u.Upload(ctx, transfer.UploadOptions{SourcePath: source, PartSizeBytes: mib, SkipManifestUpload: true})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if res.ManifestKey != "" {
		t.Fatalf("manifest should not be uploaded, got key %q", res.ManifestKey)
	}

	corrupt := make([]byte, mib)
	if _, err := store.Put(ctx, res.Manifest.Parts[1].ObjectKey, strings.NewReader(string(corrupt)), mib); err != nil {
		t.Fatalf("overwrite part: %v", err)
	}

	out := filepath.Join(t.TempDir(), "restored.zip")
	_, err = u.Download(ctx, transfer.DownloadOptions{Manifest: res.Manifest, OutPath: out})
	if services.CodeOf(err) != services.CodeRestoreSHA256Mismatch {
		t.Fatalf("expected RESTORE_SHA256_MISMATCH, got %v", err)
	}
	if services.ExitCode(err) != services.ExitIntegrity {
		t.Fatalf("expected integrity exit code, got %d", services.ExitCode(err))
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected output discarded, stat err = %v", statErr)
	}
}

func TestDownloadDetectsSizeMismatch(t *testing.T) {
	store := newStore(t)
	u := transfer.NewUploader(store, nil)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "pkg.zip")
	writePatterned(t, source, 2*mib)
	res, err := u.Upload(ctx, transfer.UploadOptions{SourcePath: source, PartSizeBytes: mib, SkipManifestUpload: true})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if _, err := store.Put(ctx, res.Manifest.Parts[1].ObjectKey, strings.NewReader("short"), 5); err != nil {
		t.Fatalf("overwrite part: %v", err)
	}

	out := filepath.Join(t.TempDir(), "restored.zip")
	_, err = u.Download(ctx, transfer.DownloadOptions{Manifest: res.Manifest, OutPath: out})
	if services.CodeOf(err) != services.CodeRestoreSizeMismatch {
		t.Fatalf("expected RESTORE_SIZE_MISMATCH, got %v", err)
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected output discarded, stat err = %v", statErr)
	}
}

type failingStore struct {
	objectstore.Store
	failOn string
}

func (f *failingStore) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if strings.HasSuffix(key, f.failOn) {
		_, _ = io.Copy(io.Discard, r)
		return "", errors.New("connection reset")
	}
	return f.Store.Put(ctx, key, r, size)
}

func TestUploadPartialFailureReportsProgress(t *testing.T) {
	store := &failingStore{Store: newStore(t), failOn: ".part-0002"}
	u := transfer.NewUploader(store, nil)

	source := filepath.Join(t.TempDir(), "pkg.zip")
	writePatterned(t, source, 3*mib)
	_, err := u.Upload(context.Background(), transfer.UploadOptions{SourcePath: source, PartSizeBytes: mib})
	coded, ok := services.AsError(err)
	if !ok || coded.Code != services.CodeSegmentUploadFailed {
		t.Fatalf("expected SEGMENT_UPLOAD_FAILED, got %v", err)
	}
	if coded.Details["uploaded_parts"] != 1 || coded.Details["uploaded_bytes"] != int64(mib) {
		t.Fatalf("unexpected progress details: %v", coded.Details)
	}
	if _, statErr := os.Stat(source + ".parts.json"); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("manifest must not be written after a failed upload")
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	u := transfer.NewUploader(newStore(t), nil)
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.zip")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := u.Upload(context.Background(), transfer.UploadOptions{SourcePath: empty, PartSizeBytes: mib}); services.CodeOf(err) != services.CodeEmptyFile {
		t.Fatalf("expected EMPTY_FILE, got %v", err)
	}
	if _, err := u.Upload(context.Background(), transfer.UploadOptions{SourcePath: empty, PartSizeBytes: 0}); services.CodeOf(err) != services.CodeInvalidPartSize {
		t.Fatalf("expected INVALID_PART_SIZE, got %v", err)
	}
}

func TestNormalizeParts(t *testing.T) {
	part := func(index int, key string) transfer.Part {
		return transfer.Part{Index: index, ObjectKey: key}
	}
	tests := []struct {
		name  string
		parts []transfer.Part
		code  string
	}{
		{"unordered contiguous", []transfer.Part{part(3, "c"), part(1, "a"), part(2, "b")}, ""},
		{"gap", []transfer.Part{part(1, "a"), part(3, "c")}, services.CodeInvalidManifestPartIndex},
		{"duplicate", []transfer.Part{part(1, "a"), part(1, "b"), part(2, "c")}, services.CodeInvalidManifestPartIndex},
		{"zero based", []transfer.Part{part(0, "a"), part(1, "b")}, services.CodeInvalidManifestPartIndex},
		{"missing key", []transfer.Part{part(1, "a"), part(2, " ")}, services.CodeInvalidManifestObjectKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transfer.NormalizeParts(tt.parts)
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				for i, p := range got {
					if p.Index != i+1 {
						t.Fatalf("not sorted: %#v", got)
					}
				}
				return
			}
			if services.CodeOf(err) != tt.code {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestDownloadRejectsEmptyManifest(t *testing.T) {
	u := transfer.NewUploader(newStore(t), nil)
	_, err := u.Download(context.Background(), transfer.DownloadOptions{Manifest: &transfer.Manifest{}})
	if services.CodeOf(err) != services.CodeInvalidManifestParts {
		t.Fatalf("expected INVALID_MANIFEST_PARTS, got %v", err)
	}
}

func TestPartKeyWidth(t *testing.T) {
	if got := transfer.PartKey("p", 7, 12); got != "p.part-0007" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := transfer.PartKey("p", 42, 12345); got != "p.part-00042" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte("abc"))
	digest, size, err := transfer.Inspect(path)
	if err != nil || size != 3 || digest != hex.EncodeToString(sum[:]) {
		t.Fatalf("Inspect = %s %d %v", digest, size, err)
	}
}

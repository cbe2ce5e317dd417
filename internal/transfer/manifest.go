package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"coursepipe/internal/fileutil"
	"coursepipe/internal/objectstore"
	"coursepipe/internal/services"
)

// ManifestSchemaVersion is written into every manifest.
const ManifestSchemaVersion = 1

var validate = validator.New()

// Part is one uploaded chunk of the source file.
type Part struct {
	Index     int    `json:"index"`
	ObjectKey string `json:"object_key"`
	SizeBytes int64  `json:"size_bytes" validate:"gte=0"`
	SHA256    string `json:"sha256" validate:"omitempty,len=64,hexadecimal"`
	URL       string `json:"url,omitempty"`
}

// Manifest describes a file split into ordered parts. Its JSON shape is the
// contract between uploader and downloader.
type Manifest struct {
	SchemaVersion   int       `json:"schema_version" validate:"gte=1"`
	CreatedAt       time.Time `json:"created_at"`
	Bucket          string    `json:"bucket"`
	Endpoint        string    `json:"endpoint"`
	SourceFile      string    `json:"source_file"`
	SourceName      string    `json:"source_name"`
	SourceSizeBytes int64     `json:"source_size_bytes" validate:"gte=0"`
	SourceSHA256    string    `json:"source_sha256" validate:"omitempty,len=64,hexadecimal"`
	PartSizeBytes   int64     `json:"part_size_bytes" validate:"gte=0"`
	PartCount       int       `json:"part_count" validate:"gte=0"`
	ObjectPrefix    string    `json:"object_prefix"`
	Parts           []Part    `json:"parts" validate:"dive"`
}

// PartKey derives the object key for a part: "<prefix>.part-<index>", the
// index zero-padded to max(4, digits of total).
func PartKey(prefix string, index, total int) string {
	width := len(fmt.Sprint(total))
	if width < 4 {
		width = 4
	}
	return fmt.Sprintf("%s.part-%0*d", prefix, width, index)
}

// ManifestKey is the default object key for a manifest uploaded beside its parts.
func ManifestKey(prefix string) string {
	return prefix + ".manifest.json"
}

// NormalizeParts sorts parts by index and checks that they form exactly
// 1..N with an object key on every part. The input slice is not modified.
func NormalizeParts(parts []Part) ([]Part, error) {
	ordered := append([]Part(nil), parts...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})
	for pos, part := range ordered {
		if part.Index != pos+1 {
			return nil, services.Errorf(services.CodeInvalidManifestPartIndex,
				"part at position %d has index %d", pos+1, part.Index).
				WithDetail("index", part.Index)
		}
		if strings.TrimSpace(part.ObjectKey) == "" {
			return nil, services.Errorf(services.CodeInvalidManifestObjectKey,
				"part %d has no object key", part.Index).
				WithDetail("index", part.Index)
		}
	}
	return ordered, nil
}

// Validate checks field shapes, that parts exist, and part contiguity.
func (m *Manifest) Validate() error {
	if m == nil {
		return services.NewError(services.CodeInvalidManifest, "manifest is empty")
	}
	if len(m.Parts) == 0 {
		return services.NewError(services.CodeInvalidManifestParts, "manifest.parts is required")
	}
	if err := validate.Struct(m); err != nil {
		return services.NewError(services.CodeInvalidManifest, formatValidationError(err))
	}
	_, err := NormalizeParts(m.Parts)
	return err
}

// LoadManifest reads a manifest from a local file.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if err := fileutil.ReadJSON(path, &m); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.WrapCode(services.CodeInvalidArgument, "manifest file not found", err)
		}
		return nil, services.WrapCode(services.CodeInvalidManifest, path, err)
	}
	return &m, nil
}

// SaveManifest writes the manifest atomically.
func SaveManifest(path string, m *Manifest) error {
	return fileutil.WriteJSONAtomic(path, m)
}

// FetchManifest downloads and decodes a manifest stored under key.
func FetchManifest(ctx context.Context, store objectstore.Store, key string) (*Manifest, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, services.WrapCode(services.CodeObjectStoreFailed, "read manifest "+key, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, services.WrapCode(services.CodeInvalidManifest, key, err)
	}
	return &m, nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

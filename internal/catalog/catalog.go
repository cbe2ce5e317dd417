package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"coursepipe/internal/services"
)

// Asset modes.
const (
	ModeZip          = "zip"
	ModeSegmentedZip = "segmented_zip"
)

var validate = validator.New()

// Asset points at the published package, either directly or through a
// transfer manifest.
type Asset struct {
	Mode        string `json:"mode" validate:"oneof=zip segmented_zip"`
	URL         string `json:"url,omitempty" validate:"required_if=Mode zip"`
	ManifestURL string `json:"manifest_url,omitempty" validate:"required_if=Mode segmented_zip"`
	SizeBytes   int64  `json:"size_bytes" validate:"gte=0"`
	SHA256      string `json:"sha256,omitempty" validate:"omitempty,len=64,hexadecimal"`
}

// Entry is one published course.
type Entry struct {
	ID      string   `json:"id" validate:"required"`
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Version string   `json:"version"`
	Cover   string   `json:"cover"`
	Asset   Asset    `json:"asset"`

	// raw is the document the entry was decoded from. It is written back
	// unchanged while the typed fields still encode to canon, so fields this
	// package does not model (and explicit nulls) survive a merge.
	raw   json.RawMessage
	canon []byte
}

type plainEntry Entry

// UnmarshalJSON decodes the entry and remembers its source document.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var plain plainEntry
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	canon, err := json.Marshal(plain)
	if err != nil {
		return err
	}
	*e = Entry(plain)
	e.raw = append(json.RawMessage(nil), data...)
	e.canon = canon
	return nil
}

// MarshalJSON writes the source document when the entry was not modified.
func (e Entry) MarshalJSON() ([]byte, error) {
	out, err := json.Marshal(plainEntry(e))
	if err != nil {
		return nil, err
	}
	if e.raw != nil && bytes.Equal(out, e.canon) {
		return e.raw, nil
	}
	return out, nil
}

// Catalog is the versioned list of published courses.
type Catalog struct {
	Version int     `json:"version"`
	Courses []Entry `json:"courses"`

	// extra keeps top-level keys other than version and courses.
	extra map[string]json.RawMessage
}

type plainCatalog Catalog

// UnmarshalJSON decodes the catalog and keeps unknown top-level keys.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	var plain plainCatalog
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	delete(fields, "version")
	delete(fields, "courses")
	*c = Catalog(plain)
	if len(fields) > 0 {
		c.extra = fields
	}
	return nil
}

// MarshalJSON writes version, courses, and any preserved top-level keys.
func (c Catalog) MarshalJSON() ([]byte, error) {
	if len(c.extra) == 0 {
		return json.Marshal(plainCatalog(c))
	}
	fields := make(map[string]any, len(c.extra)+2)
	for key, value := range c.extra {
		fields[key] = value
	}
	fields["version"] = c.Version
	fields["courses"] = c.Courses
	return json.Marshal(fields)
}

// Validate checks the entry's required fields and asset shape.
func (e Entry) Validate() error {
	e.ID = strings.TrimSpace(e.ID)
	if err := validate.Struct(e); err != nil {
		return services.NewError(services.CodeInvalidArgument, formatValidationError(err))
	}
	return nil
}

// Merge folds incoming into existing. The first entry with the same id is
// replaced at its position and later duplicates are dropped; entries with a
// blank id are discarded. Other entries and unknown top-level keys are kept
// as decoded. When no entry matched, incoming is appended. The result always
// carries the supplied version.
func Merge(existing *Catalog, incoming Entry, version int) Catalog {
	incomingID := strings.TrimSpace(incoming.ID)
	out := Catalog{Version: version}
	replaced := false

	if existing != nil {
		out.extra = existing.extra
		out.Courses = make([]Entry, 0, len(existing.Courses)+1)
		for _, row := range existing.Courses {
			rowID := strings.TrimSpace(row.ID)
			if rowID == "" {
				continue
			}
			if rowID == incomingID {
				if !replaced {
					out.Courses = append(out.Courses, incoming)
					replaced = true
				}
				continue
			}
			out.Courses = append(out.Courses, row)
		}
	}
	if !replaced {
		out.Courses = append(out.Courses, incoming)
	}
	return out
}

// Replace builds a catalog containing only incoming.
func Replace(incoming Entry, version int) Catalog {
	return Catalog{Version: version, Courses: []Entry{incoming}}
}

// Find returns the entry with id, if present.
func (c *Catalog) Find(id string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	for _, row := range c.Courses {
		if strings.TrimSpace(row.ID) == id {
			return row, true
		}
	}
	return Entry{}, false
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

package catalog_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"coursepipe/internal/catalog"
	"coursepipe/internal/services"
)

func entry(id, title string) catalog.Entry {
	return catalog.Entry{
		ID:      id,
		Title:   title,
		Version: "1.0.0",
		Asset:   catalog.Asset{Mode: catalog.ModeZip, URL: "https://cdn.example/" + id + ".zip", SizeBytes: 10},
	}
}

func TestMergeReplacesInPlace(t *testing.T) {
	existing := &catalog.Catalog{Version: 1, Courses: []catalog.Entry{
		entry("a", "A"), entry("b", "B"), entry("c", "C"),
	}}
	incoming := entry("b", "B2")

	merged := catalog.Merge(existing, incoming, 7)
	if merged.Version != 7 {
		t.Fatalf("expected version 7, got %d", merged.Version)
	}
	if len(merged.Courses) != 3 {
		t.Fatalf("expected same length, got %d", len(merged.Courses))
	}
	if !reflect.DeepEqual(merged.Courses[1], incoming) {
		t.Fatalf("expected incoming at position 1, got %#v", merged.Courses[1])
	}
	if merged.Courses[0].Title != "A" || merged.Courses[2].Title != "C" {
		t.Fatalf("other entries must be unchanged: %#v", merged.Courses)
	}
}

func TestMergeAppendsNewID(t *testing.T) {
	existing := &catalog.Catalog{Version: 1, Courses: []catalog.Entry{entry("a", "A")}}
	merged := catalog.Merge(existing, entry("z", "Z"), 2)
	if len(merged.Courses) != 2 || merged.Courses[1].ID != "z" {
		t.Fatalf("expected append, got %#v", merged.Courses)
	}
	if merged.Version != 2 {
		t.Fatalf("expected version 2, got %d", merged.Version)
	}

	fresh := catalog.Merge(nil, entry("a", "A"), 1)
	if len(fresh.Courses) != 1 {
		t.Fatalf("expected single entry from empty catalog, got %d", len(fresh.Courses))
	}
}

func TestMergeDropsDuplicatesAndBlankIDs(t *testing.T) {
	existing := &catalog.Catalog{Version: 1, Courses: []catalog.Entry{
		entry("a", "A1"), entry("", "blank"), entry("b", "B"), entry("a", "A2"),
	}}
	merged := catalog.Merge(existing, entry("a", "A3"), 1)
	var ids []string
	for _, e := range merged.Courses {
		ids = append(ids, e.ID+":"+e.Title)
	}
	if !reflect.DeepEqual(ids, []string{"a:A3", "b:B"}) {
		t.Fatalf("unexpected merge result: %v", ids)
	}
}

func TestReplaceEmitsOnlyIncoming(t *testing.T) {
	got := catalog.Replace(entry("x", "X"), 3)
	if got.Version != 3 || len(got.Courses) != 1 || got.Courses[0].ID != "x" {
		t.Fatalf("unexpected replace result: %#v", got)
	}
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   catalog.Entry
		wantErr bool
	}{
		{"zip ok", entry("a", "A"), false},
		{"missing id", catalog.Entry{Asset: catalog.Asset{Mode: catalog.ModeZip, URL: "u"}}, true},
		{"zip without url", catalog.Entry{ID: "a", Asset: catalog.Asset{Mode: catalog.ModeZip}}, true},
		{"segmented without manifest", catalog.Entry{ID: "a", Asset: catalog.Asset{Mode: catalog.ModeSegmentedZip}}, true},
		{"segmented ok", catalog.Entry{ID: "a", Asset: catalog.Asset{Mode: catalog.ModeSegmentedZip, ManifestURL: "m"}}, false},
		{"unknown mode", catalog.Entry{ID: "a", Asset: catalog.Asset{Mode: "tar", URL: "u"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && services.CodeOf(err) != services.CodeInvalidArgument {
				t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
			}
		})
	}
}

func TestUpdateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	ctx := context.Background()

	if _, err := catalog.Update(ctx, path, entry("a", "A"), 1, false); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := catalog.Update(ctx, path, entry("b", "B"), 1, false); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	loaded, err := catalog.Load(path)
	if err != nil || loaded == nil || len(loaded.Courses) != 2 {
		t.Fatalf("expected 2 courses, got %#v (%v)", loaded, err)
	}

	if _, err := catalog.Update(ctx, path, entry("c", "C"), 2, true); err != nil {
		t.Fatalf("Update replace failed: %v", err)
	}
	loaded, err = catalog.Load(path)
	if err != nil || len(loaded.Courses) != 1 || loaded.Version != 2 {
		t.Fatalf("expected reset catalog, got %#v (%v)", loaded, err)
	}

	missing, err := catalog.Load(filepath.Join(t.TempDir(), "none.json"))
	if err != nil || missing != nil {
		t.Fatalf("expected nil catalog for missing file, got %#v (%v)", missing, err)
	}
}

func TestUpdateKeepsOtherEntriesVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	existing := `{
  "version": 1,
  "publisher": "acme",
  "courses": [
    {"id": "course_a", "title": "A", "tags": [], "version": "1.0.0", "cover": null,
     "asset": {"mode": "zip", "url": "https://cdn.example/a.zip", "size_bytes": 1}, "lesson_count": 3}
  ]
}`
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	if _, err := catalog.Update(context.Background(), path, entry("course_b", "B"), 2, false); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	var written struct {
		Version   int              `json:"version"`
		Publisher string           `json:"publisher"`
		Courses   []map[string]any `json:"courses"`
	}
	if err := json.Unmarshal(data, &written); err != nil {
		t.Fatalf("decode catalog: %v\n%s", err, data)
	}
	if written.Version != 2 || written.Publisher != "acme" || len(written.Courses) != 2 {
		t.Fatalf("unexpected catalog: %s", data)
	}
	first := written.Courses[0]
	if cover, ok := first["cover"]; !ok || cover != nil {
		t.Fatalf("null cover not preserved: %s", data)
	}
	if first["lesson_count"] != float64(3) {
		t.Fatalf("unknown field dropped: %s", data)
	}
	if written.Courses[1]["id"] != "course_b" {
		t.Fatalf("incoming entry not appended: %s", data)
	}
}

func TestEditedEntryEncodesCurrentFields(t *testing.T) {
	var row catalog.Entry
	if err := json.Unmarshal([]byte(`{"id":"a","title":"Old","cover":null,"extra":true}`), &row); err != nil {
		t.Fatalf("decode: %v", err)
	}
	untouched, err := json.Marshal(row)
	if err != nil || string(untouched) != `{"id":"a","title":"Old","cover":null,"extra":true}` {
		t.Fatalf("untouched entry rewritten: %s (%v)", untouched, err)
	}

	row.Title = "New"
	edited, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(edited, &decoded); err != nil {
		t.Fatalf("decode edited: %v", err)
	}
	if decoded["title"] != "New" {
		t.Fatalf("edited entry lost its change: %s", edited)
	}
}

package publish_test

import (
	"context"
	"path/filepath"
	"testing"

	"coursepipe/internal/catalog"
	"coursepipe/internal/config"
	"coursepipe/internal/logging"
	"coursepipe/internal/objectstore"
	"coursepipe/internal/publish"
	"coursepipe/internal/services"
	"coursepipe/internal/tasks"
	"coursepipe/internal/testsupport"
	"coursepipe/internal/workspace"
)

const mib = 1024 * 1024

func newPublisher(t *testing.T, cfg *config.Config) (*publish.Publisher, *tasks.Store) {
	t.Helper()
	objects, err := objectstore.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("objectstore.New: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	return publish.NewPublisher(cfg, objects, store, nil, logging.NewNop()), store
}

// packagedTask creates a task whose package step is done and whose workspace
// holds a zip of size bytes.
func packagedTask(t *testing.T, cfg *config.Config, store *tasks.Store, courseID string, size int64) (*tasks.Task, workspace.Layout) {
	t.Helper()
	task := testsupport.NewTask(t, store, courseID)
	task.CourseTitle = "Title of " + courseID
	for _, step := range tasks.StepOrder {
		task.SetState(step, tasks.StateDone)
	}
	task.Status = tasks.StatusReady
	if err := store.Save(context.Background(), task); err != nil {
		t.Fatalf("save: %v", err)
	}
	layout := workspace.New(cfg.TasksDir(), task.TaskID)
	testsupport.WriteFile(t, layout.ZipPath(courseID), size)
	return task, layout
}

func TestSelectMode(t *testing.T) {
	tests := []struct {
		size, threshold int64
		want            string
	}{
		{10, 100, catalog.ModeZip},
		{99, 100, catalog.ModeZip},
		{100, 100, catalog.ModeSegmentedZip},
		{500, 100, catalog.ModeSegmentedZip},
	}
	for _, tc := range tests {
		if got := publish.SelectMode(tc.size, tc.threshold); got != tc.want {
			t.Fatalf("SelectMode(%d, %d) = %s, want %s", tc.size, tc.threshold, got, tc.want)
		}
	}
}

func TestInferTaskID(t *testing.T) {
	if got := publish.InferTaskID("/runtime/tasks/task_ab12cd34/course_x.zip"); got != "task_ab12cd34" {
		t.Fatalf("InferTaskID = %q", got)
	}
	if got := publish.InferTaskID("/tmp/task_export.zip"); got != "" {
		t.Fatalf("file names are not task ids, got %q", got)
	}
}

func TestPublishSingleObject(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	publisher, store := newPublisher(t, cfg)
	task, layout := packagedTask(t, cfg, store, "course_demo", 4096)

	result, err := publisher.Publish(context.Background(), publish.Request{File: layout.ZipPath("course_demo")})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Mode != catalog.ModeZip || result.TaskID != task.TaskID {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Prefix != "course_demo/1.0.0/course_demo.zip" {
		t.Fatalf("prefix = %q", result.Prefix)
	}
	if result.Entry.Title != "Title of course_demo" || result.Entry.Asset.URL == "" || result.Entry.Asset.SizeBytes != 4096 {
		t.Fatalf("unexpected entry %+v", result.Entry)
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil || cat == nil || len(cat.Courses) != 1 || cat.Courses[0].ID != "course_demo" {
		t.Fatalf("catalog not updated: %+v err %v", cat, err)
	}
	stored, _ := store.Get(context.Background(), task.TaskID)
	if stored.Publish == nil || stored.Publish.Mode != catalog.ModeZip {
		t.Fatalf("publish not recorded on task: %+v", stored.Publish)
	}
	events, _ := store.Events(context.Background(), task.TaskID)
	if len(events) != 1 || events[0].Name != publish.EventTaskPublish {
		t.Fatalf("unexpected events %+v", events)
	}
	chosen, err := publish.ChooseZip(layout, "course_demo", false)
	if err != nil || chosen != layout.ZipPath("course_demo") {
		t.Fatalf("ChooseZip = %q, %v", chosen, err)
	}
}

func TestPublishSegmented(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSegmentThresholdMiB(1), testsupport.WithPartSizeMiB(1))
	publisher, store := newPublisher(t, cfg)
	_, layout := packagedTask(t, cfg, store, "course_big", 2*mib+mib/2)

	result, err := publisher.Publish(context.Background(), publish.Request{
		File:    layout.ZipPath("course_big"),
		Version: "2.0.0",
		Tags:    []string{"english"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Mode != catalog.ModeSegmentedZip || result.Upload == nil || result.Upload.PartCount != 3 {
		t.Fatalf("unexpected segmented result %+v", result)
	}
	if result.Entry.Asset.ManifestURL == "" || result.Entry.Version != "2.0.0" || result.Entry.Tags[0] != "english" {
		t.Fatalf("unexpected entry %+v", result.Entry)
	}
}

func TestPublishRejectsEmptyFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	publisher, _ := newPublisher(t, cfg)
	path := filepath.Join(t.TempDir(), "empty.zip")
	testsupport.WriteText(t, path, "")
	_, err := publisher.Publish(context.Background(), publish.Request{File: path, CourseID: "course_x"})
	if services.CodeOf(err) != services.CodeEmptyFile {
		t.Fatalf("expected EMPTY_FILE, got %v", err)
	}
}

func TestChooseZipSkipsRestoredCopies(t *testing.T) {
	layout := workspace.New(t.TempDir(), "task_abc")
	testsupport.WriteFile(t, filepath.Join(layout.Root(), "course_a.restored.zip"), 900)
	testsupport.WriteFile(t, filepath.Join(layout.Root(), "course_a.zip"), 100)
	testsupport.WriteFile(t, filepath.Join(layout.Root(), "older.zip"), 50)
	got, err := publish.ChooseZip(layout, "course_a", false)
	if err != nil || filepath.Base(got) != "course_a.zip" {
		t.Fatalf("ChooseZip = %q, %v", got, err)
	}

	empty := workspace.New(t.TempDir(), "task_def")
	if _, err := publish.ChooseZip(empty, "course_b", true); err == nil {
		t.Fatalf("expected error without a package manifest")
	}
}

func TestRepublishRebuildsCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	publisher, store := newPublisher(t, cfg)
	ctx := context.Background()

	if _, err := publisher.Republish(ctx, publish.RepublishOptions{}); services.CodeOf(err) != services.CodeNoPublishableTasks {
		t.Fatalf("expected NO_PUBLISHABLE_TASKS, got %v", err)
	}

	stale := catalog.Entry{ID: "course_gone", Title: "Gone", Asset: catalog.Asset{Mode: catalog.ModeZip, URL: "file:///gone.zip"}}
	if _, err := catalog.Update(ctx, cfg.Catalog.Path, stale, 1, false); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	packagedTask(t, cfg, store, "course_b", 256)
	packagedTask(t, cfg, store, "course_a", 128)
	testsupport.NewTask(t, store, "course_unpackaged")

	results, err := publisher.Republish(ctx, publish.RepublishOptions{})
	if err != nil {
		t.Fatalf("Republish: %v", err)
	}
	if len(results) != 2 || results[0].Entry.ID != "course_a" {
		t.Fatalf("unexpected results %+v", results)
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if len(cat.Courses) != 2 || cat.Courses[0].ID != "course_a" || cat.Courses[1].ID != "course_b" {
		t.Fatalf("catalog not rebuilt: %+v", cat.Courses)
	}
}

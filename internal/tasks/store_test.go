package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"coursepipe/internal/services"
	"coursepipe/internal/tasks"
	"coursepipe/internal/testsupport"
)

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := tasks.NewTask("course_demo", "Demo", "/raw/demo", []string{"01", "02"})
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", task.Revision)
	}

	fetched, err := store.Get(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil || fetched.CourseID != "course_demo" || len(fetched.LessonKeys) != 2 {
		t.Fatalf("unexpected fetched task: %#v", fetched)
	}
	for _, step := range tasks.StepOrder {
		if fetched.StateOf(step) != tasks.StatePending {
			t.Fatalf("expected %s pending, got %s", step, fetched.StateOf(step))
		}
	}

	missing, err := store.Get(ctx, "task_missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing task, got %v, %v", missing, err)
	}
	if _, err := store.MustGet(ctx, "task_missing"); services.CodeOf(err) != services.CodeTaskNotFound {
		t.Fatalf("expected TASK_NOT_FOUND, got %v", err)
	}
}

func TestSaveCompareAndSwap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "course_cas")

	first, err := store.Get(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := store.Get(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	first.SetState(tasks.StepTranscode, tasks.StateRunning)
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if first.Revision != 2 {
		t.Fatalf("expected revision 2 after save, got %d", first.Revision)
	}

	second.SetState(tasks.StepTranscribe, tasks.StateRunning)
	if err := store.Save(ctx, second); !errors.Is(err, tasks.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	stored, err := store.Get(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.StateOf(tasks.StepTranscode) != tasks.StateRunning || stored.StateOf(tasks.StepTranscribe) != tasks.StatePending {
		t.Fatalf("losing writer must not land: %#v", stored.Steps)
	}
	if stored.UpdatedAt.Before(stored.CreatedAt) {
		t.Fatalf("updated_at went backwards: %v < %v", stored.UpdatedAt, stored.CreatedAt)
	}
}

func TestSaveMissingTask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ghost := tasks.NewTask("course_ghost", "Ghost", "", []string{"01"})
	err := store.Save(context.Background(), ghost)
	if services.CodeOf(err) != services.CodeTaskNotFound {
		t.Fatalf("expected TASK_NOT_FOUND, got %v", err)
	}
}

func TestListFiltersAndDeleteByCourse(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewTask(t, store, "course_a")
	b := testsupport.NewTask(t, store, "course_a")
	c := testsupport.NewTask(t, store, "course_b")

	c.Status = tasks.StatusReady
	if err := store.Save(ctx, c); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d (%v)", len(all), err)
	}
	ready, err := store.List(ctx, tasks.StatusReady)
	if err != nil || len(ready) != 1 || ready[0].TaskID != c.TaskID {
		t.Fatalf("unexpected ready list: %v (%v)", ready, err)
	}

	removed, err := store.DeleteByCourse(ctx, "course_a")
	if err != nil {
		t.Fatalf("DeleteByCourse failed: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %v", removed)
	}
	for _, id := range []string{a.TaskID, b.TaskID} {
		if got, _ := store.Get(ctx, id); got != nil {
			t.Fatalf("expected %s removed", id)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[tasks.StatusReady] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestEventsAppendOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.AppendEvent(ctx, "task_1", "task.create", map[string]any{"lessons": []string{"01"}}); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	if err := store.AppendEvent(ctx, "task_1", "task.run_step.start", map[string]any{"step": "transcode", "hitl": false}); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	if err := store.AppendEvent(ctx, "task_2", "task.delete", nil); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}

	events, err := store.Events(ctx, "task_1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 2 || events[0].Name != "task.create" || events[1].Name != "task.run_step.start" {
		t.Fatalf("unexpected events: %#v", events)
	}
	var payload map[string]any
	if err := json.Unmarshal(events[1].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["step"] != "transcode" {
		t.Fatalf("unexpected payload: %v", payload)
	}

	all, err := store.Events(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 events total, got %d (%v)", len(all), err)
	}
}

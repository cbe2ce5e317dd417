package testsupport

import (
	"context"
	"testing"

	"coursepipe/internal/config"
	"coursepipe/internal/tasks"
)

// MustOpenStore opens a tasks.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *tasks.Store {
	t.Helper()

	store, err := tasks.Open(cfg)
	if err != nil {
		t.Fatalf("tasks.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask creates and persists a task for lessons keyed by lessonKeys.
func NewTask(t testing.TB, store *tasks.Store, courseID string, lessonKeys ...string) *tasks.Task {
	t.Helper()

	if len(lessonKeys) == 0 {
		lessonKeys = []string{"01"}
	}
	task := tasks.NewTask(courseID, courseID, "", lessonKeys)
	if err := store.Create(context.Background(), task); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return task
}

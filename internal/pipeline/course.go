package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"coursepipe/internal/logging"
	"coursepipe/internal/services"
	"coursepipe/internal/tasks"
	"coursepipe/internal/textutil"
	"coursepipe/internal/workspace"
)

// AddCourseRequest describes a raw course folder to register.
type AddCourseRequest struct {
	Path        string
	Title       string
	Lightweight bool
	// AutoStart runs the pipeline up to the first gated step after creation.
	AutoStart bool
}

// AddCourse scans a raw folder, creates its task, and optionally auto-runs it.
// The created task is returned even when the auto-run fails.
func (e *Engine) AddCourse(ctx context.Context, req AddCourseRequest) (*tasks.Task, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, services.NewError(services.CodeInvalidArgument, "course path required")
	}
	dir, err := filepath.Abs(req.Path)
	if err != nil {
		return nil, services.WrapCode(services.CodeInvalidArgument, req.Path, err)
	}
	keys, err := tasks.ScanRawFolder(dir)
	if err != nil {
		return nil, err
	}

	folder := filepath.Base(dir)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = textutil.CourseTitle(folder)
	}
	task := tasks.NewTask(textutil.CourseID(folder), title, dir, keys)
	task.Options.Lightweight = req.Lightweight
	if err := e.store.Create(ctx, task); err != nil {
		return nil, err
	}
	if err := e.Workspace(task.TaskID).Ensure(); err != nil {
		return nil, err
	}

	e.appendEvent(ctx, task.TaskID, EventCourseAdd, map[string]any{
		"course_id":   task.CourseID,
		"course_path": dir,
	})
	e.appendEvent(ctx, task.TaskID, EventTaskCreate, map[string]any{
		"course_id":   task.CourseID,
		"lesson_keys": task.LessonKeys,
	})
	if req.Lightweight {
		e.appendEvent(ctx, task.TaskID, EventOptionUpdate, map[string]any{"reading_light_mode": true})
	}
	logging.WithContext(services.WithTaskID(ctx, task.TaskID), e.logger).Info("course added",
		logging.String(logging.FieldEventType, "course_add"),
		logging.String(logging.FieldCourseID, task.CourseID),
		logging.Int("lessons", len(keys)),
	)

	if !req.AutoStart {
		return task, nil
	}
	_, latest, err := e.AutoRun(ctx, task.TaskID)
	if latest == nil {
		if reloaded, getErr := e.store.Get(ctx, task.TaskID); getErr == nil && reloaded != nil {
			latest = reloaded
		} else {
			latest = task
		}
	}
	return latest, err
}

// List returns tasks, optionally filtered by status.
func (e *Engine) List(ctx context.Context, statuses ...tasks.Status) ([]*tasks.Task, error) {
	return e.store.List(ctx, statuses...)
}

// Delete removes a task record and its workspace.
func (e *Engine) Delete(ctx context.Context, taskID string) error {
	task, err := e.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if running, ok := task.RunningStep(); ok {
		return services.StepError(string(running), "", "cannot delete while a step is running: "+string(running), nil)
	}
	if _, err := e.store.Delete(ctx, task.TaskID); err != nil {
		return err
	}
	e.appendEvent(ctx, task.TaskID, EventTaskDelete, map[string]any{"course_id": task.CourseID})
	if err := e.Workspace(task.TaskID).Remove(); err != nil {
		return fmt.Errorf("remove workspace %s: %w", task.TaskID, err)
	}
	return nil
}

// DeleteCourse removes every task of a course and their workspaces.
func (e *Engine) DeleteCourse(ctx context.Context, courseID string) ([]string, error) {
	removed, err := e.store.DeleteByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	for _, id := range removed {
		e.appendEvent(ctx, id, EventTaskDelete, map[string]any{"course_id": courseID})
		if err := e.Workspace(id).Remove(); err != nil {
			return removed, fmt.Errorf("remove workspace %s: %w", id, err)
		}
	}
	return removed, nil
}

// Prune removes workspaces that no longer belong to a stored task.
func (e *Engine) Prune(ctx context.Context) (workspace.CleanResult, error) {
	all, err := e.store.List(ctx)
	if err != nil {
		return workspace.CleanResult{}, err
	}
	active := make(map[string]struct{}, len(all))
	for _, task := range all {
		active[task.TaskID] = struct{}{}
	}
	return workspace.CleanOrphaned(ctx, e.cfg.TasksDir(), active, e.logger), nil
}

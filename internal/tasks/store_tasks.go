package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coursepipe/internal/services"
)

// Create inserts a new task at revision 1.
func (s *Store) Create(ctx context.Context, task *Task) error {
	if task == nil || task.TaskID == "" {
		return errors.New("create task: task id required")
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.Before(task.CreatedAt) {
		task.UpdatedAt = task.CreatedAt
	}
	task.Revision = 1

	doc, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO tasks (task_id, course_id, status, revision, document, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.TaskID,
		task.CourseID,
		string(task.Status),
		task.Revision,
		string(doc),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Get loads a task by id. It returns nil, nil when the task does not exist.
func (s *Store) Get(ctx context.Context, taskID string) (*Task, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT revision, document FROM tasks WHERE task_id = ?`, taskID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return task, nil
}

// MustGet loads a task or returns TASK_NOT_FOUND.
func (s *Store) MustGet(ctx context.Context, taskID string) (*Task, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, services.NewError(services.CodeTaskNotFound, taskID)
	}
	return task, nil
}

// List returns tasks ordered by task id, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	ctx = ensureContext(ctx)
	query := `SELECT revision, document FROM tasks`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY task_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// ListByCourse returns every task recorded for a course.
func (s *Store) ListByCourse(ctx context.Context, courseID string) ([]*Task, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT revision, document FROM tasks WHERE course_id = ? ORDER BY task_id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// Save rewrites the whole task document. The write only lands when the stored
// revision still equals task.Revision; otherwise ErrConflict is returned and
// the caller must reload. On success task.Revision and task.UpdatedAt advance.
func (s *Store) Save(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("save task: nil task")
	}
	now := time.Now().UTC()
	if now.Before(task.UpdatedAt) {
		now = task.UpdatedAt
	}

	next := *task
	next.UpdatedAt = now
	next.Revision = task.Revision + 1
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	res, err := s.execWithRetry(ctx,
		`UPDATE tasks
            SET course_id = ?, status = ?, revision = ?, document = ?, updated_at = ?
          WHERE task_id = ? AND revision = ?`,
		next.CourseID,
		string(next.Status),
		next.Revision,
		string(doc),
		formatTime(next.UpdatedAt),
		task.TaskID,
		task.Revision,
	)
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.TaskID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.TaskID, err)
	}
	if affected == 0 {
		existing, getErr := s.Get(ctx, task.TaskID)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return services.NewError(services.CodeTaskNotFound, task.TaskID)
		}
		return fmt.Errorf("save task %s at revision %d (stored %d): %w",
			task.TaskID, task.Revision, existing.Revision, ErrConflict)
	}

	task.UpdatedAt = next.UpdatedAt
	task.Revision = next.Revision
	return nil
}

// Delete removes a task. It reports whether a row was removed.
func (s *Store) Delete(ctx context.Context, taskID string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE task_id = ?`, taskID)
	if err != nil {
		return false, fmt.Errorf("delete task %s: %w", taskID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteByCourse removes every task for a course and returns the removed ids.
func (s *Store) DeleteByCourse(ctx context.Context, courseID string) ([]string, error) {
	existing, err := s.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(existing))
	for _, task := range existing {
		ok, err := s.Delete(ctx, task.TaskID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, task.TaskID)
		}
	}
	return removed, nil
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		revision int64
		document string
	)
	if err := scanner.Scan(&revision, &document); err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal([]byte(document), &task); err != nil {
		return nil, fmt.Errorf("decode task document: %w", err)
	}
	task.Revision = revision
	if task.Steps == nil {
		task.ResetSteps()
	}
	return &task, nil
}

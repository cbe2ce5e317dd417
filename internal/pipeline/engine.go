package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"coursepipe/internal/config"
	"coursepipe/internal/logging"
	"coursepipe/internal/notifications"
	"coursepipe/internal/services"
	"coursepipe/internal/stage"
	"coursepipe/internal/tasks"
	"coursepipe/internal/workspace"
)

// Event names recorded in the task event log.
const (
	EventRunStepStart  = "task.run_step.start"
	EventRunStepDone   = "task.run_step.done"
	EventRunStepFailed = "task.run_step.failed"
	EventOptionUpdate  = "task.option.update"
	EventCourseAdd     = "course.add"
	EventTaskCreate    = "task.create"
	EventTaskRetry     = "task.retry"
	EventTaskPause     = "task.pause"
	EventTaskResume    = "task.resume"
	EventTaskStop      = "task.stop"
	EventTaskDelete    = "task.delete"
)

// Engine drives tasks through the pipeline.
type Engine struct {
	cfg      *config.Config
	store    *tasks.Store
	registry *stage.Registry
	notifier notifications.Service
	logger   *slog.Logger
}

// NewEngine wires an engine. A nil notifier disables notifications.
func NewEngine(cfg *config.Config, store *tasks.Store, registry *stage.Registry, notifier notifications.Service, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		registry: registry,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Store exposes the task store.
func (e *Engine) Store() *tasks.Store {
	return e.store
}

// Health reports the readiness of every registered step executor.
func (e *Engine) Health() []stage.Health {
	return e.registry.Health()
}

// Workspace returns the workspace layout for taskID.
func (e *Engine) Workspace(taskID string) workspace.Layout {
	return workspace.New(e.cfg.TasksDir(), taskID)
}

// Get loads a task or fails with TASK_NOT_FOUND.
func (e *Engine) Get(ctx context.Context, taskID string) (*tasks.Task, error) {
	return e.store.MustGet(ctx, strings.TrimSpace(taskID))
}

// commitAttempts bounds how often a lost compare-and-swap is replayed.
const commitAttempts = 4

// commit applies mutate to task and saves it. When another writer moved the
// record in the meantime, the latest copy is reloaded, mutate is replayed on
// it, and the save is tried again; task then holds the merged record. mutate
// must only touch the fields its caller owns and may veto the write by
// returning an error.
func (e *Engine) commit(ctx context.Context, task *tasks.Task, step tasks.Step, mutate func(*tasks.Task) error) error {
	if err := mutate(task); err != nil {
		return err
	}
	for attempt := 1; ; attempt++ {
		err := e.store.Save(ctx, task)
		if !errors.Is(err, tasks.ErrConflict) {
			return err
		}
		if attempt >= commitAttempts {
			return services.StepError(string(step), "", "task modified concurrently", err)
		}
		latest, getErr := e.Get(ctx, task.TaskID)
		if getErr != nil {
			return getErr
		}
		if err := mutate(latest); err != nil {
			return err
		}
		*task = *latest
	}
}

func (e *Engine) appendEvent(ctx context.Context, taskID, name string, payload any) {
	if err := e.store.AppendEvent(ctx, taskID, name, payload); err != nil {
		logging.WithContext(ctx, e.logger).Warn("event append failed",
			logging.String("event", name),
			logging.Error(err),
		)
	}
}

func (e *Engine) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Publish(ctx, event, payload); err != nil {
		logging.WithContext(ctx, e.logger).Debug("notification failed",
			logging.String("notification", string(event)),
			logging.Error(err),
		)
	}
}

// lockTask takes the advisory per-task run lock.
func (e *Engine) lockTask(taskID string, step tasks.Step) (*flock.Flock, error) {
	dir := filepath.Join(e.cfg.TasksDir(), ".locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, taskID+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock task %s: %w", taskID, err)
	}
	if !locked {
		return nil, services.StepError(string(step), "", "another step is running for "+taskID, nil)
	}
	return lock, nil
}

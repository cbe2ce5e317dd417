package pipeline

import (
	"context"
	"time"

	"coursepipe/internal/logging"
	"coursepipe/internal/notifications"
	"coursepipe/internal/services"
	"coursepipe/internal/tasks"
)

// Retry resets fromStep and every later step to pending. An empty fromStep
// resets the whole pipeline. Earlier steps are untouched.
func (e *Engine) Retry(ctx context.Context, taskID, fromStep string) (*tasks.Task, error) {
	from := tasks.StepOrder[0]
	if fromStep != "" {
		step, ok := tasks.ParseStep(fromStep)
		if !ok {
			return nil, services.Errorf(services.CodeInvalidStep, "unknown step %q", fromStep)
		}
		from = step
	}
	task, err := e.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	err = e.commit(ctx, task, from, func(t *tasks.Task) error {
		for _, step := range tasks.StepOrder[from.Index():] {
			t.SetState(step, tasks.StatePending)
		}
		if from.Index() <= tasks.StepTranslate.Index() {
			t.TranslateProgress = nil
		}
		t.Status = tasks.StatusProcessing
		t.Error = nil
		t.CurrentStep = from
		if next, pending := t.NextIncompleteStep(); pending {
			t.CurrentStep = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.appendEvent(ctx, task.TaskID, EventTaskRetry, map[string]any{"from_step": from})
	logging.WithContext(services.WithTaskID(ctx, task.TaskID), e.logger).Info("task reset for retry",
		logging.String(logging.FieldEventType, "task_retry"),
		logging.String("from_step", string(from)),
	)
	return task, nil
}

var statusEvents = map[tasks.Status]string{
	tasks.StatusPaused:     EventTaskPause,
	tasks.StatusProcessing: EventTaskResume,
	tasks.StatusStopped:    EventTaskStop,
}

// Pause sets the task status to paused.
func (e *Engine) Pause(ctx context.Context, taskID string) (*tasks.Task, error) {
	return e.transition(ctx, taskID, tasks.StatusPaused)
}

// Resume sets the task status to processing.
func (e *Engine) Resume(ctx context.Context, taskID string) (*tasks.Task, error) {
	return e.transition(ctx, taskID, tasks.StatusProcessing)
}

// Stop sets the task status to stopped.
func (e *Engine) Stop(ctx context.Context, taskID string) (*tasks.Task, error) {
	return e.transition(ctx, taskID, tasks.StatusStopped)
}

// SetStatus applies one of the operator transitions by name.
func (e *Engine) SetStatus(ctx context.Context, taskID, status string) (*tasks.Task, error) {
	target, ok := tasks.ParseStatus(status)
	if !ok {
		return nil, services.Errorf(services.CodeInvalidStatus, "unknown status %q", status)
	}
	return e.transition(ctx, taskID, target)
}

// transition changes only the task status; step states are left alone.
func (e *Engine) transition(ctx context.Context, taskID string, target tasks.Status) (*tasks.Task, error) {
	event, ok := statusEvents[target]
	if !ok {
		return nil, services.Errorf(services.CodeInvalidStatus, "status %q cannot be set directly", target)
	}
	task, err := e.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var from tasks.Status
	err = e.commit(ctx, task, task.CurrentStep, func(t *tasks.Task) error {
		from = t.Status
		t.Status = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.appendEvent(ctx, task.TaskID, event, map[string]any{"from": from, "to": target})
	return task, nil
}

// SetLightweight toggles the lightweight packaging option.
func (e *Engine) SetLightweight(ctx context.Context, taskID string, enabled bool) (*tasks.Task, error) {
	task, err := e.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	err = e.commit(ctx, task, task.CurrentStep, func(t *tasks.Task) error {
		t.Options.Lightweight = enabled
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.appendEvent(ctx, task.TaskID, EventOptionUpdate, map[string]any{"reading_light_mode": enabled})
	return task, nil
}

// Watch polls the task every interval and calls observe whenever its status
// changes (including the first observation). It returns once the status is
// terminal, or fails with WATCH_TIMEOUT when timeout is positive and elapses.
func (e *Engine) Watch(ctx context.Context, taskID string, interval, timeout time.Duration, observe func(*tasks.Task)) (*tasks.Task, error) {
	if interval <= 0 {
		interval = e.cfg.WatchInterval()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last tasks.Status
	for {
		task, err := e.Get(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil && timeout > 0 {
				return nil, services.Errorf(services.CodeWatchTimeout, "task %s not terminal after %s", taskID, timeout)
			}
			return nil, err
		}
		if task.Status != last {
			last = task.Status
			if observe != nil {
				observe(task)
			}
		}
		if task.Status.IsTerminal() {
			e.notifyTerminal(ctx, task)
			return task, nil
		}

		select {
		case <-ctx.Done():
			if timeout > 0 && ctx.Err() == context.DeadlineExceeded {
				return task, services.Errorf(services.CodeWatchTimeout, "task %s not terminal after %s", taskID, timeout)
			}
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) notifyTerminal(ctx context.Context, task *tasks.Task) {
	payload := notifications.Payload{"course": task.CourseID, "task_id": task.TaskID}
	switch task.Status {
	case tasks.StatusReady:
		e.notify(ctx, notifications.EventTaskReady, payload)
	case tasks.StatusFailed:
		if task.Error != nil {
			payload["error"] = task.Error.Message
		}
		e.notify(ctx, notifications.EventTaskFailed, payload)
	case tasks.StatusStopped:
		e.notify(ctx, notifications.EventTaskStopped, payload)
	}
}

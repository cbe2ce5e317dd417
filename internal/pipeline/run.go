package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursepipe/internal/logging"
	"coursepipe/internal/notifications"
	"coursepipe/internal/services"
	"coursepipe/internal/stage"
	"coursepipe/internal/tasks"
	"coursepipe/internal/workspace"
)

// StepRun is the outcome of one successful step run.
type StepRun struct {
	Task       *tasks.Task  `json:"task"`
	Step       tasks.Step   `json:"step"`
	Result     stage.Result `json:"result"`
	RecordPath string       `json:"record_path"`
}

// RunStep executes a single step of a task.
func (e *Engine) RunStep(ctx context.Context, taskID, stepName string) (*StepRun, error) {
	step, ok := tasks.ParseStep(stepName)
	if !ok {
		return nil, services.Errorf(services.CodeInvalidStep, "unknown step %q", stepName)
	}
	task, err := e.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := checkRunnable(task, step); err != nil {
		return nil, err
	}
	executor, err := e.registry.Get(step)
	if err != nil {
		return nil, services.WrapCode(services.CodeInvalidStep, string(step), err)
	}

	lock, err := e.lockTask(task.TaskID, step)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	// Reload under the lock; the running commit re-checks the latest state.
	if task, err = e.Get(ctx, task.TaskID); err != nil {
		return nil, err
	}

	stepCtx := services.WithRequestID(services.WithStep(services.WithTaskID(ctx, task.TaskID), string(step)), uuid.NewString())
	logger := logging.WithContext(stepCtx, e.logger).With(logging.String(logging.FieldCourseID, task.CourseID))

	err = e.commit(stepCtx, task, step, func(t *tasks.Task) error {
		if err := checkRunnable(t, step); err != nil {
			return err
		}
		t.SetState(step, tasks.StateRunning)
		t.CurrentStep = step
		t.Status = tasks.StatusProcessing
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.appendEvent(stepCtx, task.TaskID, EventRunStepStart, map[string]any{"step": step})

	start := time.Now()
	logger.Info("step started",
		logging.String(logging.FieldEventType, "step_start"),
		logging.Int("lessons", len(task.LessonKeys)),
	)

	layout := e.Workspace(task.TaskID)
	if err := layout.Ensure(); err != nil {
		return nil, e.fail(stepCtx, task, step, err)
	}
	result, execErr := executor.Execute(stepCtx, stage.Request{
		Task:      task,
		Workspace: layout,
		Progress: func(ctx context.Context, update func(*tasks.Task)) error {
			return e.commit(ctx, task, step, func(t *tasks.Task) error {
				update(t)
				return nil
			})
		},
	})
	if execErr != nil {
		return nil, e.fail(stepCtx, task, step, execErr)
	}

	recordPath, err := layout.WriteStepRecord(workspace.StepRecord{
		TaskID:  task.TaskID,
		Step:    string(step),
		HITL:    step.IsHITL(),
		Payload: result,
	})
	if err != nil {
		return nil, e.fail(stepCtx, task, step, err)
	}

	if err := e.commit(stepCtx, task, step, markDone(step)); err != nil {
		return nil, err
	}
	e.appendEvent(stepCtx, task.TaskID, EventRunStepDone, map[string]any{
		"step":   step,
		"output": recordPath,
	})
	logger.Info("step completed",
		logging.String(logging.FieldEventType, "step_complete"),
		logging.Duration("step_duration", time.Since(start)),
		logging.String("status", string(task.Status)),
		logging.String("current_step", string(task.CurrentStep)),
	)
	return &StepRun{Task: task, Step: step, Result: result, RecordPath: recordPath}, nil
}

// checkRunnable enforces the single-active-step rule, the per-step state
// machine, and predecessor gating.
func checkRunnable(task *tasks.Task, step tasks.Step) error {
	if running, ok := task.RunningStep(); ok {
		return services.StepError(string(step), "", "another step is running: "+string(running), nil).
			WithDetail("running_step", string(running))
	}
	switch task.Status {
	case tasks.StatusPaused, tasks.StatusStopped:
		return services.StepError(string(step), "", fmt.Sprintf("task is %s; resume it first", task.Status), nil)
	}
	if state := task.StateOf(step); state != tasks.StatePending {
		return services.StepError(string(step), "", fmt.Sprintf("step '%s' is %s; retry it first", step, state), nil)
	}
	if prev, blocked := blockingPredecessor(task, step); blocked {
		return services.StepError(string(step), "", fmt.Sprintf("step '%s' requires '%s' done first", step, prev), nil).
			WithDetail("required_step", string(prev))
	}
	return nil
}

// markDone records a finished step. The operator's paused or stopped status
// survives unless the task just became complete.
func markDone(step tasks.Step) func(*tasks.Task) error {
	return func(t *tasks.Task) error {
		t.SetState(step, tasks.StateDone)
		t.Error = nil
		if next, pending := t.NextIncompleteStep(); pending {
			t.CurrentStep = next
			return nil
		}
		t.CurrentStep = tasks.StepPackage
		t.Status = tasks.StatusReady
		return nil
	}
}

// fail records a step failure on the task and returns the step error.
func (e *Engine) fail(ctx context.Context, task *tasks.Task, step tasks.Step, cause error) error {
	stepErr, ok := services.AsError(cause)
	if !ok {
		stepErr = services.StepError(string(step), "", "step execution failed", cause)
	}
	message := failureMessage(stepErr)

	logger := logging.WithContext(ctx, e.logger)
	logging.ErrorWithContext(logger, "step failed", "step_failure",
		logging.String("error_code", stepErr.Code),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorHint, "fix the cause, then run `coursepipe task retry` from this step"),
		logging.Error(cause),
	)
	err := e.commit(ctx, task, step, func(t *tasks.Task) error {
		t.SetState(step, tasks.StateFailed)
		t.Status = tasks.StatusFailed
		t.Error = &tasks.ErrorRecord{Code: services.CodeStepFailed, Message: message, Step: step}
		return nil
	})
	if err != nil {
		logger.Error("failed to persist step failure", logging.Error(err))
	}
	e.appendEvent(ctx, task.TaskID, EventRunStepFailed, map[string]any{
		"step":    step,
		"code":    stepErr.Code,
		"message": message,
	})
	e.notify(ctx, notifications.EventStepFailed, notifications.Payload{
		"course":  task.CourseID,
		"task_id": task.TaskID,
		"step":    string(step),
		"error":   message,
	})
	return stepErr
}

// failureMessage renders the message recorded on the task. Codes other than
// STEP_FAILED stay visible in the message so the cause remains diagnosable.
func failureMessage(err *services.Error) string {
	text := err.Error()
	if err.Code != services.CodeStepFailed {
		return text
	}
	text = strings.TrimPrefix(text, err.Code)
	if err.Step != "" {
		text = strings.TrimPrefix(text, " ["+err.Step+"]")
	}
	return strings.TrimSpace(strings.TrimPrefix(text, ":"))
}

// RunStepAndContinue runs stepName and, once it succeeds, keeps running the
// following ungated steps the way AutoRun does. It returns the named step's
// run, the steps chained after it, and the latest task.
func (e *Engine) RunStepAndContinue(ctx context.Context, taskID, stepName string) (*StepRun, []tasks.Step, *tasks.Task, error) {
	run, err := e.RunStep(ctx, taskID, stepName)
	if err != nil {
		return nil, nil, nil, err
	}
	chained, latest, err := e.AutoRun(ctx, run.Task.TaskID)
	if latest == nil {
		latest = run.Task
	}
	return run, chained, latest, err
}

// AutoRun runs the next incomplete step repeatedly until a gated step is
// reached, every step is done, or the task leaves the runnable statuses.
// It returns the steps that ran.
func (e *Engine) AutoRun(ctx context.Context, taskID string) ([]tasks.Step, *tasks.Task, error) {
	var ran []tasks.Step
	for {
		if err := ctx.Err(); err != nil {
			return ran, nil, err
		}
		task, err := e.Get(ctx, taskID)
		if err != nil {
			return ran, nil, err
		}
		if task.Status.IsTerminal() || task.Status == tasks.StatusPaused {
			return ran, task, nil
		}
		next, pending := task.NextIncompleteStep()
		if !pending || next.IsHITL() {
			return ran, task, nil
		}
		run, err := e.RunStep(ctx, task.TaskID, string(next))
		if err != nil {
			return ran, nil, err
		}
		ran = append(ran, next)
		if run.Task.Status.IsTerminal() {
			return ran, run.Task, nil
		}
	}
}

// RunUntil runs incomplete steps in order, gated ones included, until
// target is done. Steps already done are not re-run.
func (e *Engine) RunUntil(ctx context.Context, taskID, targetName string) ([]tasks.Step, *tasks.Task, error) {
	target, ok := tasks.ParseStep(targetName)
	if !ok {
		return nil, nil, services.Errorf(services.CodeInvalidStep, "unknown step %q", targetName)
	}
	var ran []tasks.Step
	for {
		task, err := e.Get(ctx, taskID)
		if err != nil {
			return ran, nil, err
		}
		if task.StateOf(target) == tasks.StateDone || task.Status == tasks.StatusStopped || task.Status == tasks.StatusPaused {
			return ran, task, nil
		}
		next := target
		for _, step := range tasks.StepOrder[:target.Index()] {
			if task.StateOf(step) != tasks.StateDone && !skippable(task, target, step) {
				next = step
				break
			}
		}
		if _, err := e.RunStep(ctx, task.TaskID, string(next)); err != nil {
			return ran, nil, err
		}
		ran = append(ran, next)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coursepipe/internal/pipeline"
	"coursepipe/internal/services"
	"coursepipe/internal/tasks"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and control pipeline tasks",
	}
	taskCmd.AddCommand(newTaskListCommand(ctx))
	taskCmd.AddCommand(newTaskStatsCommand(ctx))
	taskCmd.AddCommand(newTaskGetCommand(ctx))
	taskCmd.AddCommand(newTaskEventsCommand(ctx))
	taskCmd.AddCommand(newTaskTransitionCommand(ctx, "pause", "Pause a task", (*pipeline.Engine).Pause))
	taskCmd.AddCommand(newTaskTransitionCommand(ctx, "resume", "Resume a paused or stopped task", (*pipeline.Engine).Resume))
	taskCmd.AddCommand(newTaskTransitionCommand(ctx, "stop", "Stop a task", (*pipeline.Engine).Stop))
	taskCmd.AddCommand(newTaskSetStatusCommand(ctx))
	taskCmd.AddCommand(newTaskRetryCommand(ctx))
	taskCmd.AddCommand(newTaskDeleteCommand(ctx))
	taskCmd.AddCommand(newTaskLightweightCommand(ctx))
	taskCmd.AddCommand(newTaskWatchCommand(ctx))
	taskCmd.AddCommand(newTaskPruneCommand(ctx))
	return taskCmd
}

func newTaskListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]tasks.Status, 0, len(statusFlags))
			for _, value := range statusFlags {
				status, ok := tasks.ParseStatus(value)
				if !ok {
					return services.Errorf(services.CodeInvalidStatus, "unknown status %q", value)
				}
				statuses = append(statuses, status)
			}
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			list, err := engine.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if list == nil {
				list = []*tasks.Task{}
			}
			return ctx.emit(cmd, list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "No tasks")
					return
				}
				fmt.Fprint(w, renderTable(
					[]string{"Task", "Course", "Status", "Step", "Progress", "Updated"},
					taskRows(list),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func newTaskStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count tasks per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return ctx.emit(cmd, stats, func(w io.Writer) {
				if len(stats) == 0 {
					fmt.Fprintln(w, "No tasks")
					return
				}
				rows := make([][]string, 0, len(stats))
				for _, status := range []tasks.Status{
					tasks.StatusUploaded, tasks.StatusProcessing, tasks.StatusPaused,
					tasks.StatusReady, tasks.StatusFailed, tasks.StatusStopped,
				} {
					if count, ok := stats[status]; ok {
						rows = append(rows, []string{string(status), strconv.Itoa(count)})
					}
				}
				fmt.Fprint(w, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			})
		},
	}
}

func taskRows(list []*tasks.Task) [][]string {
	rows := make([][]string, 0, len(list))
	for _, task := range list {
		done := 0
		for _, step := range tasks.StepOrder {
			if task.StateOf(step) == tasks.StateDone {
				done++
			}
		}
		rows = append(rows, []string{
			task.TaskID,
			task.CourseID,
			string(task.Status),
			stepLabel(task),
			fmt.Sprintf("%d/%d", done, len(tasks.StepOrder)),
			task.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	return rows
}

func stepLabel(task *tasks.Task) string {
	label := string(task.CurrentStep)
	if state := task.StateOf(task.CurrentStep); state != tasks.StatePending {
		label += " (" + string(state) + ")"
	}
	return label
}

type taskDetail struct {
	Task      *tasks.Task `json:"task"`
	Workspace string      `json:"workspace"`
}

func newTaskGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show a task",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			task, err := engine.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			detail := taskDetail{Task: task, Workspace: engine.Workspace(task.TaskID).Root()}
			return ctx.emit(cmd, detail, func(w io.Writer) {
				renderTaskDetail(w, detail)
			})
		},
	}
}

func renderTaskDetail(w io.Writer, detail taskDetail) {
	task := detail.Task
	fmt.Fprintf(w, "Task:        %s\n", task.TaskID)
	fmt.Fprintf(w, "Course:      %s (%s)\n", task.CourseTitle, task.CourseID)
	fmt.Fprintf(w, "Status:      %s\n", task.Status)
	fmt.Fprintf(w, "Lightweight: %s\n", yesNo(task.Options.Lightweight))
	fmt.Fprintf(w, "Lessons:     %s\n", strings.Join(task.LessonKeys, ", "))
	fmt.Fprintf(w, "Workspace:   %s\n", detail.Workspace)
	if progress := task.TranslateProgress; progress != nil && progress.TotalLessons > 0 {
		fmt.Fprintf(w, "Translate:   %d/%d\n", progress.CurrentLessonIndex, progress.TotalLessons)
	}
	if task.Error != nil {
		fmt.Fprintf(w, "Error:       %s [%s] %s\n", task.Error.Code, task.Error.Step, task.Error.Message)
	}
	rows := make([][]string, 0, len(tasks.StepOrder))
	for _, step := range tasks.StepOrder {
		rows = append(rows, []string{string(step), string(task.StateOf(step)), yesNo(step.IsHITL())})
	}
	fmt.Fprint(w, renderTable([]string{"Step", "State", "Review"}, rows, nil))
}

func newTaskEventsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "events <task-id>",
		Short: "Show the event log of a task",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			events, err := store.Events(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if events == nil {
				events = []tasks.Event{}
			}
			return ctx.emit(cmd, events, func(w io.Writer) {
				rows := make([][]string, 0, len(events))
				for _, ev := range events {
					rows = append(rows, []string{ev.Timestamp.Local().Format(time.DateTime), ev.Name, string(ev.Payload)})
				}
				fmt.Fprint(w, renderTable([]string{"Time", "Event", "Payload"}, rows, nil))
			})
		},
	}
}

type transitionFunc func(*pipeline.Engine, context.Context, string) (*tasks.Task, error)

func newTaskTransitionCommand(ctx *commandContext, use, short string, transition transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			task, err := transition(engine, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emitTaskStatus(ctx, cmd, task)
		},
	}
}

func emitTaskStatus(ctx *commandContext, cmd *cobra.Command, task *tasks.Task) error {
	return ctx.emit(cmd, task, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %s (step %s)\n", task.TaskID, task.Status, stepLabel(task))
	})
}

func newTaskSetStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <task-id> <paused|processing|stopped>",
		Short: "Set a task status directly",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			task, err := engine.SetStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return emitTaskStatus(ctx, cmd, task)
		},
	}
}

func newTaskRetryCommand(ctx *commandContext) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Reset a step and every later step to pending",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			if strings.TrimSpace(from) == "" {
				task, err := engine.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if task.Error != nil && task.Error.Step != "" {
					from = string(task.Error.Step)
				}
			}
			task, err := engine.Retry(cmd.Context(), args[0], from)
			if err != nil {
				return err
			}
			return emitTaskStatus(ctx, cmd, task)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First step to reset (defaults to the failed step, else the whole pipeline)")
	return cmd
}

func newTaskDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task and its workspace",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			if err := engine.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return ctx.emit(cmd, map[string]string{"task_id": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %s\n", args[0])
			})
		},
	}
}

func newTaskLightweightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lightweight <task-id> <on|off>",
		Short: "Toggle packaging without grammar and summary",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseToggle(args[1])
			if err != nil {
				return err
			}
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			task, err := engine.SetLightweight(cmd.Context(), args[0], enabled)
			if err != nil {
				return err
			}
			return ctx.emit(cmd, task, func(w io.Writer) {
				fmt.Fprintf(w, "%s: lightweight %s\n", task.TaskID, yesNo(task.Options.Lightweight))
			})
		},
	}
}

func parseToggle(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, services.Errorf(services.CodeInvalidArgument, "expected on or off, got %q", value)
	}
	return enabled, nil
}

func newTaskWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "watch <task-id>",
		Short: "Poll a task until it reaches a terminal status",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			jsonMode := ctx.wantJSON(cmd.OutOrStdout())
			var observed []tasks.Status
			task, err := engine.Watch(cmd.Context(), args[0], interval, timeout, func(task *tasks.Task) {
				observed = append(observed, task.Status)
				if !jsonMode {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", time.Now().Format(time.TimeOnly), task.Status, stepLabel(task))
				}
			})
			if err != nil {
				return err
			}
			return ctx.emit(cmd, map[string]any{"task": task, "observed": observed}, func(w io.Writer) {
				fmt.Fprintf(w, "%s finished: %s\n", task.TaskID, task.Status)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval (defaults to workflow.watch_interval_seconds)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits forever)")
	return cmd
}

func newTaskPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove workspaces that no longer belong to a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			result, err := engine.Prune(cmd.Context())
			if err != nil {
				return err
			}
			removed := result.Removed
			if removed == nil {
				removed = []string{}
			}
			failures := make([]string, 0, len(result.Errors))
			for _, failure := range result.Errors {
				failures = append(failures, failure.Path+": "+failure.Error.Error())
			}
			return ctx.emit(cmd, map[string]any{"removed": removed, "errors": failures}, func(w io.Writer) {
				fmt.Fprintf(w, "Removed %d orphaned workspace(s)\n", len(removed))
				for _, failure := range failures {
					fmt.Fprintf(w, "  %s\n", failure)
				}
			})
		},
	}
}

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"coursepipe/internal/pipeline"
	"coursepipe/internal/tasks"
)

func newCourseCommand(ctx *commandContext) *cobra.Command {
	courseCmd := &cobra.Command{
		Use:   "course",
		Short: "Register and manage raw course folders",
	}
	courseCmd.AddCommand(newCourseAddCommand(ctx))
	courseCmd.AddCommand(newCourseListCommand(ctx))
	courseCmd.AddCommand(newCourseTasksCommand(ctx))
	courseCmd.AddCommand(newCourseDeleteCommand(ctx))
	return courseCmd
}

type courseAddOutput struct {
	Task      *tasks.Task  `json:"task"`
	Ran       []tasks.Step `json:"ran,omitempty"`
	AutoError string       `json:"auto_run_error,omitempty"`
}

func newCourseAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var lightweight bool
	var noAutoStart bool

	cmd := &cobra.Command{
		Use:   "add <raw-folder>",
		Short: "Create a task for a raw course folder and auto-run it to the first review gate",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			task, err := engine.AddCourse(cmd.Context(), pipeline.AddCourseRequest{
				Path:        args[0],
				Title:       title,
				Lightweight: lightweight,
			})
			if err != nil {
				return err
			}
			out := courseAddOutput{Task: task}
			if !noAutoStart {
				ran, latest, runErr := engine.AutoRun(cmd.Context(), task.TaskID)
				out.Ran = ran
				if runErr != nil {
					out.AutoError = runErr.Error()
					latest, _ = engine.Get(cmd.Context(), task.TaskID)
				}
				if latest != nil {
					out.Task = latest
				}
			}
			return ctx.emit(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "Created %s for %s (%d lessons)\n", out.Task.TaskID, out.Task.CourseID, len(out.Task.LessonKeys))
				for _, step := range out.Ran {
					fmt.Fprintf(w, "  ran %s\n", step)
				}
				if out.AutoError != "" {
					fmt.Fprintf(w, "  auto-run stopped: %s\n", out.AutoError)
				}
				fmt.Fprintf(w, "Status: %s\n", out.Task.Status)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Course title (defaults to the folder name)")
	cmd.Flags().BoolVar(&lightweight, "lightweight", false, "Allow packaging without grammar and summary")
	cmd.Flags().BoolVar(&noAutoStart, "no-auto-start", false, "Create the task without running any step")
	return cmd
}

func newCourseListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List courses with their latest task",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			all, err := engine.List(cmd.Context())
			if err != nil {
				return err
			}
			latest := latestPerCourse(all)
			return ctx.emit(cmd, latest, func(w io.Writer) {
				if len(latest) == 0 {
					fmt.Fprintln(w, "No courses")
					return
				}
				rows := make([][]string, 0, len(latest))
				for _, task := range latest {
					rows = append(rows, []string{task.CourseID, task.CourseTitle, task.TaskID, string(task.Status)})
				}
				fmt.Fprint(w, renderTable([]string{"Course", "Title", "Task", "Status"}, rows, nil))
			})
		},
	}
}

func newCourseTasksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <course-id>",
		Short: "List every task recorded for a course",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			list, err := store.ListByCourse(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if list == nil {
				list = []*tasks.Task{}
			}
			return ctx.emit(cmd, list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintf(w, "No tasks for %s\n", args[0])
					return
				}
				fmt.Fprint(w, renderTable([]string{"Task", "Course", "Status", "Step", "Progress", "Updated"}, taskRows(list), nil))
			})
		},
	}
}

func newCourseDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <course-id>",
		Short: "Delete every task of a course and its workspaces",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			removed, err := engine.DeleteCourse(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ctx.emit(cmd, map[string]any{"course_id": args[0], "deleted_tasks": removed}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %d task(s) of %s\n", len(removed), args[0])
			})
		},
	}
}

// latestPerCourse keeps the most recently updated task of each course, in
// first-seen order.
func latestPerCourse(all []*tasks.Task) []*tasks.Task {
	index := make(map[string]int)
	var out []*tasks.Task
	for _, task := range all {
		i, ok := index[task.CourseID]
		if !ok {
			index[task.CourseID] = len(out)
			out = append(out, task)
			continue
		}
		if task.UpdatedAt.After(out[i].UpdatedAt) {
			out[i] = task
		}
	}
	return out
}

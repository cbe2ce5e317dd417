package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"coursepipe/internal/pipeline"
	"coursepipe/internal/tasks"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute pipeline steps",
	}
	runCmd.AddCommand(newRunStepCommand(ctx))
	runCmd.AddCommand(newRunAutoCommand(ctx))
	runCmd.AddCommand(newRunUntilCommand(ctx))
	return runCmd
}

type runStepOutput struct {
	*pipeline.StepRun
	Chained []tasks.Step `json:"chained"`
}

func newRunStepCommand(ctx *commandContext) *cobra.Command {
	var noChain bool
	var lightweight bool

	cmd := &cobra.Command{
		Use:   "step <task-id> <step>",
		Short: "Run one step, then the ungated steps that follow it",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			if lightweight {
				if _, err := engine.SetLightweight(cmd.Context(), args[0], true); err != nil {
					return err
				}
			}
			out := runStepOutput{Chained: []tasks.Step{}}
			if noChain {
				out.StepRun, err = engine.RunStep(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
			} else {
				run, chained, latest, err := engine.RunStepAndContinue(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				run.Task = latest
				out.StepRun = run
				if chained != nil {
					out.Chained = chained
				}
			}
			return ctx.emit(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s done (%d lessons)\n", out.Task.TaskID, out.Step, len(out.Result.Lessons))
				for _, lesson := range out.Result.Lessons {
					fmt.Fprintf(w, "  %s  %s\n", lesson.LessonID, lesson.Source)
				}
				for _, step := range out.Chained {
					fmt.Fprintf(w, "ran %s\n", step)
				}
				fmt.Fprintf(w, "Status: %s, next: %s\n", out.Task.Status, out.Task.CurrentStep)
			})
		},
	}
	cmd.Flags().BoolVar(&noChain, "no-auto-chain", false, "Run only the named step")
	cmd.Flags().BoolVar(&lightweight, "lightweight", false, "Enable lightweight packaging before running")
	return cmd
}

type runOutput struct {
	Ran  []tasks.Step `json:"ran"`
	Task *tasks.Task  `json:"task"`
}

func emitRun(ctx *commandContext, cmd *cobra.Command, ran []tasks.Step, task *tasks.Task) error {
	if ran == nil {
		ran = []tasks.Step{}
	}
	out := runOutput{Ran: ran, Task: task}
	return ctx.emit(cmd, out, func(w io.Writer) {
		if len(ran) == 0 {
			fmt.Fprintln(w, "Nothing to run")
		}
		for _, step := range ran {
			fmt.Fprintf(w, "ran %s\n", step)
		}
		if task != nil {
			fmt.Fprintf(w, "%s: %s (step %s)\n", task.TaskID, task.Status, stepLabel(task))
		}
	})
}

func newRunAutoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "auto <task-id>",
		Short: "Run steps until a review gate, completion, or a non-runnable status",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			ran, task, err := engine.AutoRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emitRun(ctx, cmd, ran, task)
		},
	}
}

func newRunUntilCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "until <task-id> <step>",
		Short: "Run steps, review gates included, until the target step is done",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			ran, task, err := engine.RunUntil(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return emitRun(ctx, cmd, ran, task)
		},
	}
}

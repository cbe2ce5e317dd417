package pipeline

import "coursepipe/internal/tasks"

// lightweightSkips lists, per target step, the predecessors a lightweight
// task may leave unfinished. Nothing else bypasses the step order.
var lightweightSkips = map[tasks.Step]map[tasks.Step]struct{}{
	tasks.StepPackage: {
		tasks.StepGrammar:   {},
		tasks.StepSummarize: {},
	},
}

func skippable(task *tasks.Task, target, predecessor tasks.Step) bool {
	if !task.Options.Lightweight {
		return false
	}
	_, ok := lightweightSkips[target][predecessor]
	return ok
}

// blockingPredecessor returns the first predecessor of step that is not done
// and may not be skipped.
func blockingPredecessor(task *tasks.Task, step tasks.Step) (tasks.Step, bool) {
	for _, prev := range tasks.StepOrder[:step.Index()] {
		if task.StateOf(prev) == tasks.StateDone || skippable(task, step, prev) {
			continue
		}
		return prev, true
	}
	return "", false
}

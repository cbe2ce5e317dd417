package stage

import (
	"fmt"

	"coursepipe/internal/tasks"
)

// Registry maps steps to their executors.
type Registry struct {
	executors map[tasks.Step]Executor
}

// NewRegistry registers executors by their declared step.
func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: make(map[tasks.Step]Executor, len(executors))}
	for _, exec := range executors {
		if exec != nil {
			r.executors[exec.Step()] = exec
		}
	}
	return r
}

// Get returns the executor for step.
func (r *Registry) Get(step tasks.Step) (Executor, error) {
	if r == nil {
		return nil, fmt.Errorf("no executor registry")
	}
	exec, ok := r.executors[step]
	if !ok {
		return nil, fmt.Errorf("no executor registered for step %s", step)
	}
	return exec, nil
}

// Health reports readiness of every registered executor in pipeline order.
func (r *Registry) Health() []Health {
	out := make([]Health, 0, len(tasks.StepOrder))
	for _, step := range tasks.StepOrder {
		exec, ok := r.executors[step]
		switch {
		case !ok:
			out = append(out, Unhealthy(string(step), "not registered"))
		case isChecker(exec):
			out = append(out, exec.(HealthChecker).HealthCheck())
		default:
			out = append(out, Healthy(string(step)))
		}
	}
	return out
}

func isChecker(exec Executor) bool {
	_, ok := exec.(HealthChecker)
	return ok
}

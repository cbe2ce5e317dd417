// Package pipeline is the task state machine. It runs the seven steps in
// their fixed order against the persistent task store, gates each step on its
// predecessors, records step execution records in the task workspace, and
// exposes the lifecycle operations (auto-run, retry, pause/resume/stop,
// watch, course creation and deletion) used by the command surface.
//
// Execution is synchronous: one step runs to completion before control
// returns. Concurrent invocations against the same task are rejected twice,
// once by an advisory file lock held for the duration of a step and once by
// the compare-and-swap revision check on every task save.
package pipeline

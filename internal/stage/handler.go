// Package stage defines the contract between the pipeline engine and the
// step executors.
package stage

import (
	"context"

	"coursepipe/internal/tasks"
	"coursepipe/internal/workspace"
)

// Executor runs one pipeline step for every lesson of a task.
//
// Implementations read upstream artifacts from the workspace, prefer an
// operator override when the step is gated, and persist their effective
// artifacts before returning. The engine owns all task state transitions;
// executors may only report progress through Progress.
type Executor interface {
	Step() tasks.Step
	Execute(ctx context.Context, req Request) (Result, error)
}

// Request bundles what an executor receives for one run.
type Request struct {
	Task      *tasks.Task
	Workspace workspace.Layout
	// Progress, when set, persists intermediate task progress.
	Progress  func(ctx context.Context, update func(*tasks.Task)) error
}

// ReportProgress applies update through the request's progress hook.
func (r Request) ReportProgress(ctx context.Context, update func(*tasks.Task)) error {
	if r.Progress == nil {
		update(r.Task)
		return nil
	}
	return r.Progress(ctx, update)
}

// Result is the payload recorded in the step execution record.
type Result struct {
	Lessons []LessonOutcome `json:"lessons,omitempty"`
	// Extra carries step-specific summary fields (e.g. the package zip).
	Extra   map[string]any  `json:"extra,omitempty"`
}

// LessonOutcome summarizes what a step produced for one lesson.
type LessonOutcome struct {
	LessonID   string            `json:"lesson_id"`
	Source     Source            `json:"source,omitempty"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
	// DurationMS is reported by transcode.
	DurationMS int64             `json:"duration_ms,omitempty"`
	Sentences  int               `json:"sentences,omitempty"`
}

// Source is a provenance tag describing how an artifact was produced.
type Source string

const (
	SourceProvided       Source = "provided_srt"
	SourceExtracted      Source = "embedded_subtitle"
	SourceGeneratedLocal Source = "whisper_local"
	SourcePlaceholder    Source = "placeholder"
	SourceMachine        Source = "ai_online"
	SourceFallback       Source = "fallback"
	SourceReuseExisting  Source = "reuse_existing"
	SourceHITLOverride   Source = "hitl_override"
	SourceAutoGenerated  Source = "auto_generated"
	SourceTranscoded     Source = "ffmpeg_transcode"
	SourceCopied         Source = "copy"
	SourcePackaged       Source = "packaged"
)

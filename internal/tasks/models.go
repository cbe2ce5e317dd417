package tasks

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"coursepipe/internal/catalog"
)

// Step identifies one stage of the course pipeline.
type Step string

const (
	StepTranscode  Step = "transcode"
	StepTranscribe Step = "transcribe"
	StepAlign      Step = "align"
	StepTranslate  Step = "translate"
	StepGrammar    Step = "grammar"
	StepSummarize  Step = "summarize"
	StepPackage    Step = "package"
)

// StepOrder is the fixed total order of pipeline steps.
var StepOrder = []Step{
	StepTranscode,
	StepTranscribe,
	StepAlign,
	StepTranslate,
	StepGrammar,
	StepSummarize,
	StepPackage,
}

var hitlSteps = map[Step]struct{}{
	StepTranslate: {},
	StepGrammar:   {},
	StepSummarize: {},
}

// Older task documents and scripts use the tool-oriented step names.
var stepAliases = map[string]Step{
	"ffmpeg":  StepTranscode,
	"asr":     StepTranscribe,
	"summary": StepSummarize,
}

// ParseStep resolves a step identifier, accepting legacy aliases.
func ParseStep(value string) (Step, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if alias, ok := stepAliases[normalized]; ok {
		return alias, true
	}
	for _, step := range StepOrder {
		if string(step) == normalized {
			return step, true
		}
	}
	return "", false
}

// IsHITL reports whether the step prefers operator overrides.
func (s Step) IsHITL() bool {
	_, ok := hitlSteps[s]
	return ok
}

// Index returns the position of the step in StepOrder, or -1.
func (s Step) Index() int {
	for i, step := range StepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// Status is the task-level lifecycle value.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusPaused     Status = "paused"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
	StatusStopped    Status = "stopped"
)

var allStatuses = []Status{
	StatusUploaded,
	StatusProcessing,
	StatusPaused,
	StatusReady,
	StatusFailed,
	StatusStopped,
}

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether automation should stop at this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusReady, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// StepState is the per-step lifecycle value.
type StepState string

const (
	StatePending StepState = "pending"
	StateRunning StepState = "running"
	StateDone    StepState = "done"
	StateFailed  StepState = "failed"
)

// ErrorRecord is the last failure recorded on a task.
type ErrorRecord struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Step    Step   `json:"step,omitempty"`
}

// Options holds per-task flags.
type Options struct {
	// Lightweight lets packaging proceed while grammar and summarize are pending.
	Lightweight bool `json:"reading_light_mode"`
}

// TranslateProgress tracks the translate step across lessons.
type TranslateProgress struct {
	CurrentLessonKey   string `json:"current_lesson_key,omitempty"`
	CurrentLessonIndex int    `json:"current_lesson_index"`
	TotalLessons       int    `json:"total_lessons"`
}

// PublishRecord captures the last successful publish of the task's package.
type PublishRecord struct {
	PublishedAt time.Time     `json:"published_at"`
	Mode        string        `json:"mode"`
	Catalog     string        `json:"catalog"`
	Asset       catalog.Asset `json:"asset"`
}

// Task is the durable record for one course.
type Task struct {
	TaskID            string             `json:"task_id"`
	CourseID          string             `json:"course_id"`
	CourseTitle       string             `json:"course_title"`
	CoursePath        string             `json:"course_path"`
	Status            Status             `json:"status"`
	CurrentStep       Step               `json:"current_step"`
	Steps             map[Step]StepState `json:"steps"`
	LessonKeys        []string           `json:"lesson_keys"`
	Error             *ErrorRecord       `json:"error"`
	Options           Options            `json:"options"`
	TranslateProgress *TranslateProgress `json:"translate_progress,omitempty"`
	Publish           *PublishRecord     `json:"publish,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	Revision          int64              `json:"revision"`
}

// NewTaskID returns a short opaque task identifier.
func NewTaskID() string {
	return "task_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NewTask builds an uploaded task with every step pending.
func NewTask(courseID, courseTitle, coursePath string, lessonKeys []string) *Task {
	now := time.Now().UTC()
	task := &Task{
		TaskID:      NewTaskID(),
		CourseID:    courseID,
		CourseTitle: courseTitle,
		CoursePath:  coursePath,
		Status:      StatusUploaded,
		CurrentStep: StepOrder[0],
		LessonKeys:  append([]string(nil), lessonKeys...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	task.ResetSteps()
	return task
}

// ResetSteps marks every step pending.
func (t *Task) ResetSteps() {
	t.Steps = make(map[Step]StepState, len(StepOrder))
	for _, step := range StepOrder {
		t.Steps[step] = StatePending
	}
}

// StateOf returns the recorded state for step, treating missing entries as pending.
func (t *Task) StateOf(step Step) StepState {
	if t == nil || t.Steps == nil {
		return StatePending
	}
	if state, ok := t.Steps[step]; ok && state != "" {
		return state
	}
	return StatePending
}

// SetState records the state for step.
func (t *Task) SetState(step Step, state StepState) {
	if t.Steps == nil {
		t.ResetSteps()
	}
	t.Steps[step] = state
}

// RunningStep returns the first step (in pipeline order) currently running.
func (t *Task) RunningStep() (Step, bool) {
	for _, step := range StepOrder {
		if t.StateOf(step) == StateRunning {
			return step, true
		}
	}
	return "", false
}

// NextIncompleteStep returns the first step that is not done.
func (t *Task) NextIncompleteStep() (Step, bool) {
	for _, step := range StepOrder {
		if t.StateOf(step) != StateDone {
			return step, true
		}
	}
	return "", false
}

// AllDone reports whether every step is done.
func (t *Task) AllDone() bool {
	_, pending := t.NextIncompleteStep()
	return !pending
}

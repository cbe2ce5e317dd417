package tasks_test

import (
	"testing"

	"coursepipe/internal/tasks"
)

func TestParseStepAcceptsAliases(t *testing.T) {
	tests := []struct {
		in   string
		want tasks.Step
		ok   bool
	}{
		{"transcode", tasks.StepTranscode, true},
		{"ffmpeg", tasks.StepTranscode, true},
		{"ASR", tasks.StepTranscribe, true},
		{"summary", tasks.StepSummarize, true},
		{" package ", tasks.StepPackage, true},
		{"encode", "", false},
	}
	for _, tt := range tests {
		got, ok := tasks.ParseStep(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseStep(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := map[tasks.Status]bool{
		tasks.StatusUploaded:   false,
		tasks.StatusProcessing: false,
		tasks.StatusPaused:     false,
		tasks.StatusReady:      true,
		tasks.StatusFailed:     true,
		tasks.StatusStopped:    true,
	}
	for status, want := range terminal {
		if status.IsTerminal() != want {
			t.Fatalf("%s.IsTerminal() = %v", status, !want)
		}
	}
	if _, ok := tasks.ParseStatus("archived"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestNextIncompleteAndRunning(t *testing.T) {
	task := tasks.NewTask("course_x", "X", "", []string{"01"})
	if len(task.TaskID) != len("task_")+8 {
		t.Fatalf("unexpected task id %q", task.TaskID)
	}
	if next, ok := task.NextIncompleteStep(); !ok || next != tasks.StepTranscode {
		t.Fatalf("expected transcode next, got %q", next)
	}

	task.SetState(tasks.StepTranscode, tasks.StateDone)
	task.SetState(tasks.StepTranscribe, tasks.StateRunning)
	if running, ok := task.RunningStep(); !ok || running != tasks.StepTranscribe {
		t.Fatalf("expected transcribe running, got %q", running)
	}
	if next, _ := task.NextIncompleteStep(); next != tasks.StepTranscribe {
		t.Fatalf("expected transcribe next, got %q", next)
	}

	for _, step := range tasks.StepOrder {
		task.SetState(step, tasks.StateDone)
	}
	if !task.AllDone() {
		t.Fatal("expected all steps done")
	}
	if !tasks.StepGrammar.IsHITL() || tasks.StepPackage.IsHITL() {
		t.Fatal("unexpected HITL classification")
	}
}

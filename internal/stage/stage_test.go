package stage_test

import (
	"context"
	"testing"

	"coursepipe/internal/stage"
	"coursepipe/internal/tasks"
)

type fakeExecutor struct {
	step   tasks.Step
	health *stage.Health
}

func (f fakeExecutor) Step() tasks.Step { return f.step }

func (f fakeExecutor) Execute(context.Context, stage.Request) (stage.Result, error) {
	return stage.Result{}, nil
}

type checkedExecutor struct {
	fakeExecutor
}

func (c checkedExecutor) HealthCheck() stage.Health { return *c.health }

func TestRegistryLookupAndHealth(t *testing.T) {
	unhealthy := stage.Unhealthy("transcode", "ffmpeg missing")
	registry := stage.NewRegistry(
		checkedExecutor{fakeExecutor{step: tasks.StepTranscode, health: &unhealthy}},
		fakeExecutor{step: tasks.StepTranscribe},
	)
	if _, err := registry.Get(tasks.StepTranscribe); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if _, err := registry.Get(tasks.StepPackage); err == nil {
		t.Fatal("expected error for unregistered step")
	}

	health := registry.Health()
	if len(health) != len(tasks.StepOrder) {
		t.Fatalf("expected %d health rows, got %d", len(tasks.StepOrder), len(health))
	}
	if health[0].Ready || health[0].Detail != "ffmpeg missing" {
		t.Fatalf("unexpected transcode health %+v", health[0])
	}
	if !health[1].Ready {
		t.Fatalf("expected transcribe healthy, got %+v", health[1])
	}
	if health[6].Ready || health[6].Detail != "not registered" {
		t.Fatalf("unexpected package health %+v", health[6])
	}
}

func TestReportProgressWithoutHook(t *testing.T) {
	task := &tasks.Task{}
	req := stage.Request{Task: task}
	err := req.ReportProgress(context.Background(), func(t *tasks.Task) {
		t.TranslateProgress = &tasks.TranslateProgress{TotalLessons: 3}
	})
	if err != nil {
		t.Fatalf("ReportProgress returned error: %v", err)
	}
	if task.TranslateProgress == nil || task.TranslateProgress.TotalLessons != 3 {
		t.Fatalf("expected progress applied to task, got %+v", task.TranslateProgress)
	}
}

package deps_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"coursepipe/internal/deps"
	"coursepipe/internal/services"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []deps.Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: " ", Optional: true},
	}

	results := deps.CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank command status %#v", results[2])
	}
}

func TestRequireMediaToolMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := deps.RequireMediaTool("ffprobe")
	if services.CodeOf(err) != services.CodeFFmpegNotFound {
		t.Fatalf("expected FFMPEG_NOT_FOUND, got %v", err)
	}
}

func TestExecRunnerReportsOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fail")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho boom >&2\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	out, err := deps.ExecRunner(context.Background(), script)
	if err == nil {
		t.Fatal("expected error")
	}
	if string(out) != "boom\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

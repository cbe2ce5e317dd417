package tasks_test

import (
	"path/filepath"
	"reflect"
	"testing"

	"coursepipe/internal/services"
	"coursepipe/internal/tasks"
	"coursepipe/internal/testsupport"
)

func TestScanRawFolder(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteText(t, filepath.Join(dir, "02_topic.mp4"), "v")
	testsupport.WriteText(t, filepath.Join(dir, "01_intro.mp3"), "a")
	testsupport.WriteText(t, filepath.Join(dir, "01.en.srt"), "1")
	testsupport.WriteText(t, filepath.Join(dir, "notes.txt"), "x")

	keys, err := tasks.ScanRawFolder(dir)
	if err != nil {
		t.Fatalf("ScanRawFolder failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"01", "02"}) {
		t.Fatalf("unexpected keys: %v", keys)
	}

	media, err := tasks.MediaForKey(dir, "02")
	if err != nil || filepath.Base(media) != "02_topic.mp4" {
		t.Fatalf("MediaForKey = %q, %v", media, err)
	}
}

func TestScanRawFolderErrors(t *testing.T) {
	dup := t.TempDir()
	testsupport.WriteText(t, filepath.Join(dup, "01_a.mp3"), "a")
	testsupport.WriteText(t, filepath.Join(dup, "01_b.MP4"), "b")

	invalid := t.TempDir()
	testsupport.WriteText(t, filepath.Join(invalid, "intro.mp3"), "a")
	testsupport.WriteText(t, filepath.Join(invalid, "1_short.mp4"), "b")

	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"duplicate", dup, services.CodeRawFolderDuplicateLesson},
		{"invalid names", invalid, services.CodeRawFolderInvalidName},
		{"missing", filepath.Join(t.TempDir(), "nope"), services.CodeRawFolderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tasks.ScanRawFolder(tt.dir)
			if got := services.CodeOf(err); got != tt.code {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

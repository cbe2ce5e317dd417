package subtitles_test

import (
	"path/filepath"
	"testing"

	"coursepipe/internal/subtitles"
)

func TestParseLenient(t *testing.T) {
	content := "\ufeff1\r\n00:00:01,000 --> 00:00:02,500\r\nHello\r\nthere\r\n\r\n" +
		"00:00:03.000 --> 00:00:04,000 X1:10\nNo index\n\n\n" +
		"3\n\n"
	cues, err := subtitles.Parse(content)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d: %+v", len(cues), cues)
	}
	if cues[0].StartMS != 1000 || cues[0].EndMS != 2500 || cues[0].Text != "Hello there" {
		t.Fatalf("unexpected first cue %+v", cues[0])
	}
	if cues[1].StartMS != 3000 || cues[1].Text != "No index" {
		t.Fatalf("unexpected second cue %+v", cues[1])
	}
}

func TestParseInvalidTimestamp(t *testing.T) {
	if _, err := subtitles.Parse("1\n00:00:xx,000 --> 00:00:01,000\nHi\n"); err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := map[int64]string{
		0:         "00:00:00,000",
		3000:      "00:00:03,000",
		3_723_045: "01:02:03,045",
		-5:        "00:00:00,000",
	}
	for in, want := range tests {
		if got := subtitles.FormatTimestamp(in); got != want {
			t.Fatalf("FormatTimestamp(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub_en.srt")
	cues := []subtitles.Cue{
		{StartMS: 0, EndMS: 3000, Text: "First"},
		{StartMS: 3000, EndMS: 4200, Text: "Second"},
	}
	if err := subtitles.WriteFile(path, cues); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	got, err := subtitles.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile returned error: %v", err)
	}
	if len(got) != 2 || got[1] != cues[1] {
		t.Fatalf("unexpected cues %+v", got)
	}
	want := "1\n00:00:00,000 --> 00:00:03,000\nFirst\n\n2\n00:00:03,000 --> 00:00:04,200\nSecond\n\n"
	if subtitles.Format(cues) != want {
		t.Fatalf("unexpected format %q", subtitles.Format(cues))
	}
}

// Package ffmpeg builds and runs the ffmpeg invocations used by the media steps.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"coursepipe/internal/deps"
)

// Tool runs ffmpeg through a replaceable command runner.
type Tool struct {
	binary string
	run    deps.Runner
}

// New returns a Tool for binary. A nil runner uses deps.ExecRunner.
func New(binary string, run deps.Runner) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if run == nil {
		run = deps.ExecRunner
	}
	return &Tool{binary: binary, run: run}
}

// Binary returns the configured ffmpeg command.
func (t *Tool) Binary() string {
	return t.binary
}

// TranscodeArgs returns the arguments that normalize a video to H.264/AAC MP4
// with the moov atom up front for progressive playback.
func TranscodeArgs(source, dest string) []string {
	return []string{
		"-y",
		"-i", source,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-profile:v", "high",
		"-level:v", "4.1",
		"-preset", "veryfast",
		"-crf", "22",
		"-movflags", "+faststart",
		"-c:a", "aac",
		"-b:a", "128k",
		dest,
	}
}

// AudioArgs returns the arguments that extract mono 16kHz audio.
func AudioArgs(source, dest string) []string {
	return []string{"-y", "-i", source, "-ac", "1", "-ar", "16000", dest}
}

// SubtitleArgs returns the arguments that export one subtitle stream as SRT.
func SubtitleArgs(source string, streamIndex int, dest string) []string {
	return []string{"-y", "-i", source, "-map", fmt.Sprintf("0:%d", streamIndex), dest}
}

// Transcode writes an MP4 rendition of source to dest.
func (t *Tool) Transcode(ctx context.Context, source, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("ffmpeg transcode: ensure dir: %w", err)
	}
	if _, err := t.run(ctx, t.binary, TranscodeArgs(source, dest)...); err != nil {
		return fmt.Errorf("ffmpeg transcode: %w", err)
	}
	return nil
}

// ExtractAudio16k writes mono 16kHz audio from source to dest.
func (t *Tool) ExtractAudio16k(ctx context.Context, source, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("ffmpeg extract audio: ensure dir: %w", err)
	}
	if _, err := t.run(ctx, t.binary, AudioArgs(source, dest)...); err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return nil
}

// ExtractSubtitle exports the subtitle stream at streamIndex to dest and
// fails when ffmpeg produced an empty file.
func (t *Tool) ExtractSubtitle(ctx context.Context, source string, streamIndex int, dest string) error {
	if streamIndex < 0 {
		return fmt.Errorf("ffmpeg extract subtitle: invalid stream index %d", streamIndex)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("ffmpeg extract subtitle: ensure dir: %w", err)
	}
	if _, err := t.run(ctx, t.binary, SubtitleArgs(source, streamIndex, dest)...); err != nil {
		return fmt.Errorf("ffmpeg extract subtitle: %w", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("ffmpeg extract subtitle: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg extract subtitle: empty output %s", dest)
	}
	return nil
}

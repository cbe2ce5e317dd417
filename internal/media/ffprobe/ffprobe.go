package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"coursepipe/internal/deps"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int               `json:"index"`
	CodecName string            `json:"codec_name"`
	CodecType string            `json:"codec_type"`
	Duration  string            `json:"duration"`
	Tags      map[string]string `json:"tags"`
}

// Language returns the stream language tag, lowercased.
func (s Stream) Language() string {
	return strings.ToLower(strings.TrimSpace(s.Tags["language"]))
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Prober runs ffprobe through a replaceable command runner.
type Prober struct {
	binary string
	run    deps.Runner
}

// New returns a Prober for binary. A nil runner uses deps.ExecRunner.
func New(binary string, run deps.Runner) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if run == nil {
		run = deps.ExecRunner
	}
	return &Prober{binary: binary, run: run}
}

// Binary returns the configured ffprobe command.
func (p *Prober) Binary() string {
	return p.binary
}

// Inspect executes ffprobe against path and decodes the JSON response.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	output, err := p.run(ctx, p.binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// DurationMS returns the container duration in whole milliseconds.
func (p *Prober) DurationMS(ctx context.Context, path string) (int64, error) {
	result, err := p.Inspect(ctx, path)
	if err != nil {
		return 0, err
	}
	seconds := result.DurationSeconds()
	if math.IsNaN(seconds) || seconds < 0 {
		return 0, fmt.Errorf("ffprobe duration: invalid value %q", result.Format.Duration)
	}
	return int64(seconds * 1000), nil
}

// PreferredSubtitle picks the embedded subtitle stream to extract: the first
// English-tagged stream, otherwise the first subtitle stream.
func (p *Prober) PreferredSubtitle(ctx context.Context, path string) (Stream, bool, error) {
	result, err := p.Inspect(ctx, path)
	if err != nil {
		return Stream{}, false, err
	}
	stream, ok := result.PreferredSubtitle()
	return stream, ok, nil
}

// SubtitleStreams returns the subtitle streams in container order.
func (r Result) SubtitleStreams() []Stream {
	var out []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "subtitle") {
			out = append(out, stream)
		}
	}
	return out
}

// PreferredSubtitle applies the English-first selection to r.
func (r Result) PreferredSubtitle() (Stream, bool) {
	subs := r.SubtitleStreams()
	if len(subs) == 0 {
		return Stream{}, false
	}
	for _, stream := range subs {
		if strings.HasPrefix(stream.Language(), "en") {
			return stream, true
		}
	}
	return subs[0], true
}

// DurationSeconds returns the container duration in seconds, 0 when absent
// and NaN when unparsable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

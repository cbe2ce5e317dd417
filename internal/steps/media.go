package steps

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"coursepipe/internal/deps"
	"coursepipe/internal/fileutil"
	"coursepipe/internal/logging"
	"coursepipe/internal/services"
	"coursepipe/internal/stage"
	"coursepipe/internal/subtitles"
	"coursepipe/internal/tasks"
	"coursepipe/internal/textutil"
)

const (
	mediaMP4   = "media.mp4"
	mediaMP3   = "media.mp3"
	audio16k   = "audio_16k.wav"
	subtitleEN = "sub_en.srt"
	subtitleZH = "sub_zh.srt"

	placeholderEndMS = 3000
)

// Transcode normalizes lesson media and extracts 16 kHz audio.
type Transcode struct {
	deps   Dependencies
	logger *slog.Logger
}

func (t *Transcode) Step() tasks.Step { return tasks.StepTranscode }

// HealthCheck reports whether ffmpeg and ffprobe resolve.
func (t *Transcode) HealthCheck() stage.Health {
	for _, binary := range []string{t.deps.FFmpeg.Binary(), t.deps.FFprobe.Binary()} {
		if _, err := deps.RequireMediaTool(binary); err != nil {
			return stage.Unhealthy(string(tasks.StepTranscode), err.Error())
		}
	}
	return stage.Healthy(string(tasks.StepTranscode))
}

func (t *Transcode) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	step := string(tasks.StepTranscode)
	for _, binary := range []string{t.deps.FFmpeg.Binary(), t.deps.FFprobe.Binary()} {
		if _, err := deps.RequireMediaTool(binary); err != nil {
			return stage.Result{}, err
		}
	}

	var result stage.Result
	for _, key := range req.Task.LessonKeys {
		source, err := tasks.MediaForKey(req.Task.CoursePath, key)
		if err != nil {
			return stage.Result{}, services.StepError(step, "", "missing_media:"+key, err)
		}
		dir := req.Workspace.ArtifactsDir(key)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stage.Result{}, fmt.Errorf("ensure artifacts dir: %w", err)
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(source), "."))
		var media string
		var provenance stage.Source
		if ext == "mp4" {
			media = filepath.Join(dir, mediaMP4)
			provenance = stage.SourceTranscoded
			if err := t.deps.FFmpeg.Transcode(ctx, source, media); err != nil {
				return stage.Result{}, services.StepError(step, "", "transcode "+key, err)
			}
		} else {
			media = filepath.Join(dir, "media."+ext)
			provenance = stage.SourceCopied
			if err := fileutil.CopyFile(source, media); err != nil {
				return stage.Result{}, services.StepError(step, "", "copy media "+key, err)
			}
		}

		wav := filepath.Join(dir, audio16k)
		if err := t.deps.FFmpeg.ExtractAudio16k(ctx, media, wav); err != nil {
			return stage.Result{}, services.StepError(step, "", "extract audio "+key, err)
		}
		duration, err := t.deps.FFprobe.DurationMS(ctx, media)
		if err != nil {
			return stage.Result{}, services.StepError(step, "", "probe duration "+key, err)
		}
		t.logger.Debug("lesson media ready",
			logging.String(logging.FieldLessonKey, key),
			logging.Int64("duration_ms", duration),
		)
		result.Lessons = append(result.Lessons, stage.LessonOutcome{
			LessonID:   key,
			Source:     provenance,
			Artifacts:  map[string]string{"media": media, "audio_16k": wav},
			DurationMS: duration,
		})
	}
	return result, nil
}

// Transcribe produces the English subtitle for each lesson.
type Transcribe struct {
	deps   Dependencies
	logger *slog.Logger
}

func (t *Transcribe) Step() tasks.Step { return tasks.StepTranscribe }

// HealthCheck reports whether local transcription is available. Missing
// whisper is not fatal: lessons fall back to a placeholder transcript.
func (t *Transcribe) HealthCheck() stage.Health {
	name := string(tasks.StepTranscribe)
	if t.deps.Whisper == nil || !t.deps.Whisper.Available() {
		health := stage.Healthy(name)
		health.Detail = "whisper unavailable; untranscribed lessons get a placeholder"
		return health
	}
	return stage.Healthy(name)
}

func (t *Transcribe) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	step := string(tasks.StepTranscribe)
	var result stage.Result
	for _, key := range req.Task.LessonKeys {
		dir := req.Workspace.ArtifactsDir(key)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stage.Result{}, fmt.Errorf("ensure artifacts dir: %w", err)
		}
		out := filepath.Join(dir, subtitleEN)
		source, err := t.produce(ctx, req.Task.CoursePath, key, dir, out)
		if err != nil {
			return stage.Result{}, services.StepError(step, "", "transcribe "+key, err)
		}
		result.Lessons = append(result.Lessons, stage.LessonOutcome{
			LessonID:  key,
			Source:    source,
			Artifacts: map[string]string{"sub_en": out},
		})
	}
	return result, nil
}

// produce tries, in order: a provided sidecar, an embedded subtitle stream,
// local whisper, and finally a placeholder.
func (t *Transcribe) produce(ctx context.Context, rawDir, key, dir, out string) (stage.Source, error) {
	provided := filepath.Join(rawDir, key+".en.srt")
	if fileutil.Exists(provided) {
		if err := fileutil.CopyFile(provided, out); err != nil {
			return "", err
		}
		return stage.SourceProvided, nil
	}

	lessonLogger := t.logger.With(logging.String(logging.FieldLessonKey, key))
	if media := filepath.Join(dir, mediaMP4); fileutil.Exists(media) && t.deps.FFprobe != nil {
		stream, ok, err := t.deps.FFprobe.PreferredSubtitle(ctx, media)
		switch {
		case err != nil:
			lessonLogger.Debug("subtitle probe failed", logging.Error(err))
		case ok:
			err := t.deps.FFmpeg.ExtractSubtitle(ctx, media, stream.Index, out)
			if err == nil {
				return stage.SourceExtracted, nil
			}
			lessonLogger.Debug("embedded subtitle extraction failed", logging.Error(err))
		}
	}

	if audio := filepath.Join(dir, audio16k); fileutil.Exists(audio) && t.deps.Whisper != nil && t.deps.Whisper.Available() {
		srt, err := t.deps.Whisper.Transcribe(ctx, audio, dir)
		if err == nil {
			if err := fileutil.CopyFile(srt, out); err != nil {
				return "", err
			}
			return stage.SourceGeneratedLocal, nil
		}
		logging.WarnWithContext(lessonLogger, "whisper transcription failed; writing placeholder", "whisper_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "replace sub_en.srt or provide <key>.en.srt and retry transcribe"),
		)
	}

	cues := []subtitles.Cue{{StartMS: 0, EndMS: placeholderEndMS, Text: textutil.ASRPendingText}}
	if err := subtitles.WriteFile(out, cues); err != nil {
		return "", err
	}
	return stage.SourcePlaceholder, nil
}

// Align produces the Chinese subtitle for each lesson.
type Align struct {
	logger *slog.Logger
}

func (a *Align) Step() tasks.Step { return tasks.StepAlign }

func (a *Align) Execute(_ context.Context, req stage.Request) (stage.Result, error) {
	step := string(tasks.StepAlign)
	var result stage.Result
	for _, key := range req.Task.LessonKeys {
		dir := req.Workspace.ArtifactsDir(key)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stage.Result{}, fmt.Errorf("ensure artifacts dir: %w", err)
		}
		out := filepath.Join(dir, subtitleZH)
		provided := filepath.Join(req.Task.CoursePath, key+".zh.srt")
		source := stage.SourceProvided
		if fileutil.Exists(provided) {
			if err := fileutil.CopyFile(provided, out); err != nil {
				return stage.Result{}, services.StepError(step, "", "copy zh subtitle "+key, err)
			}
		} else {
			source = stage.SourcePlaceholder
			cues := []subtitles.Cue{{StartMS: 0, EndMS: placeholderEndMS, Text: textutil.ZHPendingText}}
			if err := subtitles.WriteFile(out, cues); err != nil {
				return stage.Result{}, services.StepError(step, "", "write zh placeholder "+key, err)
			}
		}
		result.Lessons = append(result.Lessons, stage.LessonOutcome{
			LessonID:  key,
			Source:    source,
			Artifacts: map[string]string{"sub_zh": out},
		})
	}
	return result, nil
}

package steps

import (
	"context"
	"log/slog"
	"strings"

	"coursepipe/internal/config"
	"coursepipe/internal/logging"
	"coursepipe/internal/media/ffmpeg"
	"coursepipe/internal/media/ffprobe"
	"coursepipe/internal/services/phonetics"
	"coursepipe/internal/services/translate"
	"coursepipe/internal/services/whisper"
	"coursepipe/internal/stage"
)

// Translator translates subtitle lines in bulk. Untranslated lines come back empty.
type Translator interface {
	BatchTranslate(ctx context.Context, texts []string) []string
}

// Phonetics produces sentence-level IPA.
type Phonetics interface {
	SentenceIPA(ctx context.Context, text string) string
}

// Transcriber produces an SRT file from 16 kHz audio.
type Transcriber interface {
	Available() bool
	Transcribe(ctx context.Context, audio, workDir string) (string, error)
}

// Dependencies are the collaborators shared by the executors. Nil enrichment
// clients disable that enrichment and leave placeholders in place.
type Dependencies struct {
	FFmpeg     *ffmpeg.Tool
	FFprobe    *ffprobe.Prober
	Whisper    Transcriber
	Translator Translator
	Phonetics  Phonetics
	Logger     *slog.Logger
}

// NewDependencies wires the production collaborators from configuration.
func NewDependencies(cfg *config.Config, logger *slog.Logger) Dependencies {
	deps := Dependencies{
		FFmpeg:  ffmpeg.New(cfg.Tools.FFmpeg, nil),
		FFprobe: ffprobe.New(cfg.Tools.FFprobe, nil),
		Logger:  logger,
	}
	if strings.TrimSpace(cfg.Tools.Whisper) != "" {
		deps.Whisper = whisper.NewService(whisper.Config{
			Command: cfg.Tools.Whisper,
			Model:   cfg.Tools.WhisperModel,
			Device:  cfg.Tools.WhisperDevice,
		})
	}
	if cfg.Translate.Enabled {
		deps.Translator = translate.NewClient(translate.Config{
			Endpoint:       cfg.Translate.Endpoint,
			SourceLang:     cfg.Translate.SourceLang,
			TargetLang:     cfg.Translate.TargetLang,
			TimeoutSeconds: cfg.Translate.TimeoutSeconds,
			MaxItems:       cfg.Translate.MaxItems,
			MaxChars:       cfg.Translate.MaxChars,
		}, translate.WithLogger(logger))
	}
	if cfg.Phonetics.Enabled {
		deps.Phonetics = phonetics.NewClient(phonetics.Config{
			Endpoint:       cfg.Phonetics.Endpoint,
			TimeoutSeconds: cfg.Phonetics.TimeoutSeconds,
		}, phonetics.WithCache(phonetics.NewMemoryCache()))
	}
	return deps
}

// NewRegistry registers all seven executors.
func NewRegistry(deps Dependencies) *stage.Registry {
	if deps.FFmpeg == nil {
		deps.FFmpeg = ffmpeg.New("", nil)
	}
	if deps.FFprobe == nil {
		deps.FFprobe = ffprobe.New("", nil)
	}
	return stage.NewRegistry(
		&Transcode{deps: deps, logger: logging.NewComponentLogger(deps.Logger, "transcode")},
		&Transcribe{deps: deps, logger: logging.NewComponentLogger(deps.Logger, "transcribe")},
		&Align{logger: logging.NewComponentLogger(deps.Logger, "align")},
		&Translate{deps: deps, logger: logging.NewComponentLogger(deps.Logger, "translate")},
		&GrammarStep{logger: logging.NewComponentLogger(deps.Logger, "grammar")},
		&Summarize{logger: logging.NewComponentLogger(deps.Logger, "summarize")},
		&Package{logger: logging.NewComponentLogger(deps.Logger, "package")},
	)
}

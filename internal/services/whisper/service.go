package whisper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"coursepipe/internal/deps"
)

// Whisper defaults.
const (
	DefaultCommand = "whisper"
	DefaultModel   = "base"
	Language       = "en"
	OutputFormat   = "srt"
	workDirName    = ".whisper"
)

// Config captures runtime settings for whisper transcription.
type Config struct {
	// Command is the whisper executable name or path.
	Command string
	// Model is the whisper model to use (e.g., "base", "small").
	Model string
	// Device is passed through as --device when set ("cpu", "cuda").
	Device string
}

// Service provides local whisper transcription.
type Service struct {
	cfg Config
	run deps.Runner
}

// NewService creates a whisper service with the given configuration.
func NewService(cfg Config) *Service {
	cfg.Command = strings.TrimSpace(cfg.Command)
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cfg.Device = strings.TrimSpace(cfg.Device)
	return &Service{cfg: cfg, run: deps.ExecRunner}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner deps.Runner) *Service {
	if runner != nil {
		s.run = runner
	}
	return s
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

// Available reports whether the whisper command resolves on PATH.
func (s *Service) Available() bool {
	_, err := exec.LookPath(s.cfg.Command)
	return err == nil
}

// Transcribe runs whisper on audio and returns the path of the SRT file it
// wrote. Output lands in a scratch directory beside workDir.
func (s *Service) Transcribe(ctx context.Context, audio, workDir string) (string, error) {
	if strings.TrimSpace(audio) == "" {
		return "", fmt.Errorf("whisper: audio path required")
	}
	outputDir := filepath.Join(workDir, workDirName)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("whisper: ensure output dir: %w", err)
	}
	if _, err := s.run(ctx, s.cfg.Command, s.buildArgs(audio, outputDir)...); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
	srtPath := filepath.Join(outputDir, base+".srt")
	info, err := os.Stat(srtPath)
	if err != nil {
		return "", fmt.Errorf("whisper: missing output: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("whisper: empty output %s", srtPath)
	}
	return srtPath, nil
}

func (s *Service) buildArgs(audio, outputDir string) []string {
	args := []string{
		audio,
		"--task", "transcribe",
		"--language", Language,
		"--output_format", OutputFormat,
		"--output_dir", outputDir,
		"--model", s.cfg.Model,
		"--verbose", "False",
	}
	if s.cfg.Device != "" {
		args = append(args, "--device", s.cfg.Device)
	}
	return args
}

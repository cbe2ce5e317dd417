package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains runtime and log directory configuration.
type Paths struct {
	RuntimeDir string `toml:"runtime_dir" validate:"required"`
	LogDir     string `toml:"log_dir" validate:"required"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" validate:"oneof=console json"`
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
}

// Tools names the external binaries invoked by the media steps.
type Tools struct {
	FFmpeg        string `toml:"ffmpeg" validate:"required"`
	FFprobe       string `toml:"ffprobe" validate:"required"`
	Whisper       string `toml:"whisper"`
	WhisperModel  string `toml:"whisper_model"`
	WhisperDevice string `toml:"whisper_device"`
}

// Storage configures the object store used for publishing.
type Storage struct {
	Backend        string `toml:"backend" validate:"oneof=s3 fs"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UsePathStyle   bool   `toml:"use_path_style"`
	MakeBucket     bool   `toml:"make_bucket"`
	PublicBaseURL  string `toml:"public_base_url"`
	FSRoot         string `toml:"fs_root"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
}

// Transfer configures segmented upload sizing.
type Transfer struct {
	PartSizeMiB         int `toml:"part_size_mib" validate:"gte=1"`
	SegmentThresholdMiB int `toml:"segment_threshold_mib" validate:"gte=1"`
}

// Translate configures the machine translation client.
type Translate struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint" validate:"omitempty,url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=1"`
	MaxItems       int    `toml:"max_items" validate:"gte=1"`
	MaxChars       int    `toml:"max_chars" validate:"gte=200"`
	SourceLang     string `toml:"source_lang"`
	TargetLang     string `toml:"target_lang"`
}

// Phonetics configures the dictionary lookup used for IPA transcription.
type Phonetics struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint" validate:"omitempty,url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=1"`
}

// Catalog configures the published course catalog.
type Catalog struct {
	Path          string   `toml:"path" validate:"required"`
	Version       int      `toml:"version" validate:"gte=1"`
	CourseVersion string   `toml:"course_version" validate:"required"`
	DefaultTags   []string `toml:"default_tags"`
	CoverURL      string   `toml:"cover_url"`
}

// Workflow contains state machine timing.
type Workflow struct {
	WatchIntervalSeconds int `toml:"watch_interval_seconds" validate:"gte=1"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout" validate:"gte=0"`
}

// Config encapsulates all configuration values for coursepipe.
//
// Configuration sections by subsystem:
//   - Paths: runtime (task store, workspaces) and log directories
//   - Logging: log format and level
//   - Tools: ffmpeg/ffprobe/whisper binaries
//   - Storage: S3-compatible endpoint or local filesystem object store
//   - Transfer: segmented upload part size and single-object threshold
//   - Translate, Phonetics: enrichment clients used by the translate step
//   - Catalog: published catalog location, version, and defaults
//   - Workflow: watch polling
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Tools         Tools         `toml:"tools"`
	Storage       Storage       `toml:"storage"`
	Transfer      Transfer      `toml:"transfer"`
	Translate     Translate     `toml:"translate"`
	Phonetics     Phonetics     `toml:"phonetics"`
	Catalog       Catalog       `toml:"catalog"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/coursepipe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is loaded
// first so credentials can live outside the TOML file.
func Load(path string) (*Config, string, bool, error) {
	if err := LoadEnvFile(""); err != nil {
		return nil, "", false, err
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("coursepipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the runtime and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.RuntimeDir, c.Paths.LogDir, c.TasksDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Storage.Backend == "fs" && strings.TrimSpace(c.Storage.FSRoot) != "" {
		if err := os.MkdirAll(c.Storage.FSRoot, 0o755); err != nil {
			return fmt.Errorf("create object store directory %q: %w", c.Storage.FSRoot, err)
		}
	}
	return nil
}

// TasksDBPath returns the SQLite database holding task records and events.
func (c *Config) TasksDBPath() string {
	return filepath.Join(c.Paths.RuntimeDir, "tasks.db")
}

// TasksDir returns the root under which per-task workspaces are created.
func (c *Config) TasksDir() string {
	return filepath.Join(c.Paths.RuntimeDir, "tasks")
}

// PartSizeBytes returns the segmented upload part size.
func (c *Config) PartSizeBytes() int64 {
	return int64(c.Transfer.PartSizeMiB) * 1024 * 1024
}

// SegmentThresholdBytes returns the size at which publishing switches to segmented mode.
func (c *Config) SegmentThresholdBytes() int64 {
	return int64(c.Transfer.SegmentThresholdMiB) * 1024 * 1024
}

// WatchInterval returns the task watch polling interval.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Workflow.WatchIntervalSeconds) * time.Second
}

// StorageTimeout returns the per-request object store timeout, or zero when unbounded.
func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.Storage.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

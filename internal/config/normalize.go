package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeTools()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeCatalogTags()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.RuntimeDir, err = expandPath(c.Paths.RuntimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Catalog.Path, err = expandPath(c.Catalog.Path); err != nil {
		return fmt.Errorf("catalog.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeTools() {
	if strings.TrimSpace(c.Tools.FFmpeg) == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Tools.FFprobe) == "" {
		c.Tools.FFprobe = defaultFFprobeBinary
	}
	if value, ok := os.LookupEnv(WhisperModelEnv); ok && strings.TrimSpace(value) != "" {
		c.Tools.WhisperModel = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(WhisperDeviceEnv); ok && strings.TrimSpace(value) != "" {
		c.Tools.WhisperDevice = strings.TrimSpace(value)
	}
	if c.Tools.WhisperModel == "" {
		c.Tools.WhisperModel = defaultWhisperModel
	}
}

// normalizeStorage applies credential env overrides. Environment values win
// over the file so secrets can be rotated without editing config.
func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	c.Storage.Endpoint = strings.TrimRight(strings.TrimSpace(c.Storage.Endpoint), "/")
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	if value, ok := os.LookupEnv(AccessKeyEnv); ok && strings.TrimSpace(value) != "" {
		c.Storage.AccessKey = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(SecretKeyEnv); ok && strings.TrimSpace(value) != "" {
		c.Storage.SecretKey = strings.TrimSpace(value)
	}
	if c.Storage.FSRoot != "" {
		var err error
		if c.Storage.FSRoot, err = expandPath(c.Storage.FSRoot); err != nil {
			return fmt.Errorf("storage.fs_root: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeCatalogTags() {
	tags := make([]string, 0, len(c.Catalog.DefaultTags))
	for _, tag := range c.Catalog.DefaultTags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	c.Catalog.DefaultTags = tags
}

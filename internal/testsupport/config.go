package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"coursepipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Storage uses the filesystem backend and the network enrichment clients are
// disabled so tests never leave the machine.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RuntimeDir = filepath.Join(base, "runtime")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Backend = "fs"
	cfgVal.Storage.FSRoot = filepath.Join(base, "objects")
	cfgVal.Storage.Bucket = "courses"
	cfgVal.Catalog.Path = filepath.Join(base, "catalog.json")
	cfgVal.Translate.Enabled = false
	cfgVal.Phonetics.Enabled = false
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithPartSizeMiB overrides the segmented upload part size.
func WithPartSizeMiB(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transfer.PartSizeMiB = size
	}
}

// WithSegmentThresholdMiB overrides the single-object publish threshold.
func WithSegmentThresholdMiB(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transfer.SegmentThresholdMiB = size
	}
}

// WithTranslateEndpoint enables the translation client against endpoint.
func WithTranslateEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Translate.Enabled = true
		b.cfg.Translate.Endpoint = endpoint
	}
}

// WithPhoneticsEndpoint enables the dictionary client against endpoint.
func WithPhoneticsEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Phonetics.Enabled = true
		b.cfg.Phonetics.Endpoint = endpoint
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.RuntimeDir)
}

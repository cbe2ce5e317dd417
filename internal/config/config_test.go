package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"coursepipe/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantRuntime := filepath.Join(tempHome, ".local", "share", "coursepipe", "runtime")
	if cfg.Paths.RuntimeDir != wantRuntime {
		t.Fatalf("unexpected runtime dir: got %q want %q", cfg.Paths.RuntimeDir, wantRuntime)
	}
	if cfg.TasksDBPath() != filepath.Join(wantRuntime, "tasks.db") {
		t.Fatalf("unexpected tasks db path: %q", cfg.TasksDBPath())
	}
	if cfg.PartSizeBytes() != 256*1024*1024 {
		t.Fatalf("unexpected part size: %d", cfg.PartSizeBytes())
	}
	if cfg.SegmentThresholdBytes() != 512*1024*1024 {
		t.Fatalf("unexpected threshold: %d", cfg.SegmentThresholdBytes())
	}
	if cfg.Translate.MaxItems != 40 || cfg.Translate.MaxChars != 3500 {
		t.Fatalf("unexpected translate batch defaults: %+v", cfg.Translate)
	}
	if strings.Join(cfg.Catalog.DefaultTags, ",") != "全部,视频,入门" {
		t.Fatalf("unexpected default tags: %v", cfg.Catalog.DefaultTags)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.RuntimeDir, cfg.Paths.LogDir, cfg.TasksDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "coursepipe.toml")

	type payload struct {
		Transfer struct {
			PartSizeMiB         int `toml:"part_size_mib"`
			SegmentThresholdMiB int `toml:"segment_threshold_mib"`
		} `toml:"transfer"`
		Storage struct {
			Backend  string `toml:"backend"`
			Endpoint string `toml:"endpoint"`
			Bucket   string `toml:"bucket"`
		} `toml:"storage"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Transfer.PartSizeMiB = 4
	custom.Transfer.SegmentThresholdMiB = 8
	custom.Storage.Backend = "S3"
	custom.Storage.Endpoint = "http://minio.local:9000/"
	custom.Storage.Bucket = " courses "
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.PartSizeBytes() != 4*1024*1024 {
		t.Fatalf("expected 4 MiB parts, got %d", cfg.PartSizeBytes())
	}
	if cfg.Storage.Backend != "s3" || cfg.Storage.Endpoint != "http://minio.local:9000" || cfg.Storage.Bucket != "courses" {
		t.Fatalf("expected normalized storage, got %+v", cfg.Storage)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
}

func TestEnvCredentialsOverrideConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "coursepipe.toml")
	content := "[storage]\naccess_key = \"file-access\"\nsecret_key = \"file-secret\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(config.AccessKeyEnv, "env-access")
	t.Setenv(config.SecretKeyEnv, "env-secret")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.AccessKey != "env-access" || cfg.Storage.SecretKey != "env-secret" {
		t.Fatalf("expected env credentials, got %q/%q", cfg.Storage.AccessKey, cfg.Storage.SecretKey)
	}
}

func TestLoadEnvFileDoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	body := config.AccessKeyEnv + "=from-file\n" + config.SecretKeyEnv + "=secret-from-file\n"
	if err := os.WriteFile(envPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(config.AccessKeyEnv, "already-set")
	t.Setenv(config.SecretKeyEnv, "")
	os.Unsetenv(config.SecretKeyEnv)

	if err := config.LoadEnvFile(envPath); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv(config.AccessKeyEnv); got != "already-set" {
		t.Fatalf("expected existing value preserved, got %q", got)
	}
	if got := os.Getenv(config.SecretKeyEnv); got != "secret-from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if err := config.LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{name: "part size", mutate: func(c *config.Config) { c.Transfer.PartSizeMiB = 0 }, want: "PartSizeMiB"},
		{name: "log format", mutate: func(c *config.Config) { c.Logging.Format = "xml" }, want: "Format"},
		{name: "endpoint scheme", mutate: func(c *config.Config) { c.Storage.Endpoint = "minio:9000" }, want: "scheme"},
		{name: "translate endpoint", mutate: func(c *config.Config) { c.Translate.Endpoint = "" }, want: "translate.endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateStorageReady(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Bucket = "courses"
	if err := cfg.ValidateStorageReady(); err == nil {
		t.Fatal("expected missing credentials error")
	}
	cfg.Storage.AccessKey = "a"
	cfg.Storage.SecretKey = "b"
	if err := cfg.ValidateStorageReady(); err != nil {
		t.Fatalf("expected ready storage, got %v", err)
	}

	cfg.Storage.Backend = "fs"
	if err := cfg.ValidateStorageReady(); err == nil {
		t.Fatal("expected fs_root error")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists || cfg.Storage.Bucket != "courses" {
		t.Fatalf("unexpected sample config: exists=%v bucket=%q", exists, cfg.Storage.Bucket)
	}
}

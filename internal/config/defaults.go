package config

const (
	defaultRuntimeDir            = "~/.local/share/coursepipe/runtime"
	defaultLogDir                = "~/.local/share/coursepipe/logs"
	defaultCatalogPath           = "~/.local/share/coursepipe/catalog.json"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultWhisperBinary         = "whisper"
	defaultWhisperModel          = "base"
	defaultStorageBackend        = "s3"
	defaultStorageRegion         = "us-east-1"
	defaultStorageTimeoutSeconds = 120
	defaultPartSizeMiB           = 256
	defaultSegmentThresholdMiB   = 512
	defaultTranslateEndpoint     = "https://translate.googleapis.com/translate_a/single"
	defaultTranslateTimeout      = 20
	defaultTranslateMaxItems     = 40
	defaultTranslateMaxChars     = 3500
	defaultTranslateSource       = "en"
	defaultTranslateTarget       = "zh-CN"
	defaultPhoneticsEndpoint     = "https://api.dictionaryapi.dev/api/v2/entries/en"
	defaultPhoneticsTimeout      = 8
	defaultCatalogVersion        = 1
	defaultCourseVersion         = "1.0.0"
	defaultWatchIntervalSeconds  = 2
	defaultNotifyRequestTimeout  = 10

	// AccessKeyEnv and SecretKeyEnv supply object storage credentials.
	AccessKeyEnv = "COURSE_PIPELINE_MINIO_ACCESS_KEY"
	SecretKeyEnv = "COURSE_PIPELINE_MINIO_SECRET_KEY"
	// WhisperModelEnv and WhisperDeviceEnv override the transcription settings.
	WhisperModelEnv  = "COURSE_PIPELINE_WHISPER_MODEL"
	WhisperDeviceEnv = "COURSE_PIPELINE_WHISPER_DEVICE"
)

var defaultCatalogTags = []string{"全部", "视频", "入门"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RuntimeDir: defaultRuntimeDir,
			LogDir:     defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Tools: Tools{
			FFmpeg:       defaultFFmpegBinary,
			FFprobe:      defaultFFprobeBinary,
			Whisper:      defaultWhisperBinary,
			WhisperModel: defaultWhisperModel,
		},
		Storage: Storage{
			Backend:        defaultStorageBackend,
			Region:         defaultStorageRegion,
			UsePathStyle:   true,
			TimeoutSeconds: defaultStorageTimeoutSeconds,
		},
		Transfer: Transfer{
			PartSizeMiB:         defaultPartSizeMiB,
			SegmentThresholdMiB: defaultSegmentThresholdMiB,
		},
		Translate: Translate{
			Enabled:        true,
			Endpoint:       defaultTranslateEndpoint,
			TimeoutSeconds: defaultTranslateTimeout,
			MaxItems:       defaultTranslateMaxItems,
			MaxChars:       defaultTranslateMaxChars,
			SourceLang:     defaultTranslateSource,
			TargetLang:     defaultTranslateTarget,
		},
		Phonetics: Phonetics{
			Enabled:        true,
			Endpoint:       defaultPhoneticsEndpoint,
			TimeoutSeconds: defaultPhoneticsTimeout,
		},
		Catalog: Catalog{
			Path:          defaultCatalogPath,
			Version:       defaultCatalogVersion,
			CourseVersion: defaultCourseVersion,
			DefaultTags:   append([]string(nil), defaultCatalogTags...),
		},
		Workflow: Workflow{
			WatchIntervalSeconds: defaultWatchIntervalSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
	}
}

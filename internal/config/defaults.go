package config

const (
	defaultDataDir                 = "~/.local/share/veritas"
	defaultVideosDir               = "~/.local/share/veritas/videos"
	defaultLogDir                  = "~/.local/share/veritas/logs"
	defaultSampleStride            = 30
	defaultMinFrames               = 2
	defaultVerdictPolicy           = PolicyBand
	defaultArtifactLow             = 0.5
	defaultArtifactHigh            = 0.62
	defaultLowMotionFloor          = 3.7
	defaultArtifactThreshold       = 0.5
	defaultMotionThreshold         = 6.1
	defaultPipelineTimeoutSeconds  = 900
	defaultCacheMemoryTTLSeconds   = 600
	defaultAcquireBinary           = "yt-dlp"
	defaultAcquireCookiesPath      = "~/.config/veritas/cookies.txt"
	defaultAcquireTimeoutSeconds   = 600
	defaultTranscriptionBinary     = "whisper-ctranslate2"
	defaultTranscriptionModel      = "base"
	defaultTranscriptionCompute    = "int8"
	defaultTranscriptionThreads    = 16
	defaultFactCheckModel          = "gemini-flash-latest"
	defaultFactCheckTemperature    = 0.95
	defaultFactCheckRequestsPerMin = 30
	defaultFactCheckTimeoutSeconds = 60
	defaultAPIBind                 = "127.0.0.1:8087"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 14
)

// Verdict policy names accepted by verdict.policy.
const (
	PolicyBand   = "band"
	PolicyGraded = "graded"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			VideosDir: defaultVideosDir,
			LogDir:    defaultLogDir,
		},
		Sampling: Sampling{
			Stride:    defaultSampleStride,
			MinFrames: defaultMinFrames,
		},
		Verdict: Verdict{
			Policy:            defaultVerdictPolicy,
			ArtifactLow:       defaultArtifactLow,
			ArtifactHigh:      defaultArtifactHigh,
			LowMotionFloor:    defaultLowMotionFloor,
			ArtifactThreshold: defaultArtifactThreshold,
			MotionThreshold:   defaultMotionThreshold,
		},
		Pipeline: Pipeline{
			TimeoutSeconds: defaultPipelineTimeoutSeconds,
		},
		Cache: Cache{
			MemoryTTLSeconds: defaultCacheMemoryTTLSeconds,
		},
		Acquire: Acquire{
			Binary:         defaultAcquireBinary,
			CookiesPath:    defaultAcquireCookiesPath,
			TimeoutSeconds: defaultAcquireTimeoutSeconds,
		},
		Transcription: Transcription{
			Binary:      defaultTranscriptionBinary,
			Model:       defaultTranscriptionModel,
			ComputeType: defaultTranscriptionCompute,
			Threads:     defaultTranscriptionThreads,
		},
		FactCheck: FactCheck{
			Model:             defaultFactCheckModel,
			Temperature:       defaultFactCheckTemperature,
			GoogleSearch:      true,
			RequestsPerMinute: defaultFactCheckRequestsPerMin,
			TimeoutSeconds:    defaultFactCheckTimeoutSeconds,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

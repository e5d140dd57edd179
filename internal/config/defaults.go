package config

const (
	defaultConfigPath              = "~/.config/podscript/config.toml"
	defaultOutputDir               = "~/podscript/episodes"
	defaultStateDir                = "~/.local/share/podscript"
	defaultLogDir                  = "~/.local/share/podscript/logs"
	defaultProfilesDir             = "~/.config/podscript/profiles"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLLMTimeoutSeconds       = 120
	defaultLLMReferer              = "https://github.com/podscript/podscript"
	defaultLLMTitle                = "podscript"
	defaultOutlineProvider         = "openai"
	defaultOutlineModel            = "gpt-4o-mini"
	defaultOutlineMaxTokens        = 3000
	defaultTranscriptProvider      = "anthropic"
	defaultTranscriptModel         = "claude-3-5-sonnet-latest"
	defaultTranscriptMaxTokens     = 5000
	defaultTemperature             = 0.7
	defaultRetryMaxAttempts        = 3
	defaultRetryWaitMultiplier     = 5
	defaultRetryWaitMax            = 30
	defaultNumSegments             = 3
	defaultMinTurns                = 3
	defaultValidationRetries       = 1
	defaultSegmentFailurePolicy    = PolicyAbort
	defaultOutlineTimeoutSeconds   = 300
	defaultSegmentTimeoutSeconds   = 600
	defaultLanguage                = "en"
	defaultBatchConcurrency        = 2
	defaultSpeakerProfile          = "ai_researchers"
	defaultPublishPrefix           = "podcasts"
	defaultTracingExporter         = "stdout"
	defaultTracingServiceName      = "podscript"
	defaultTracingSampleRatio      = 1.0
	maxSegments                    = 20
	maxTurnsPerSegment             = 50
	maxBatchConcurrency            = 16
	envRetryMaxAttempts            = "PODCAST_RETRY_MAX_ATTEMPTS"
	envRetryWaitMultiplier         = "PODCAST_RETRY_WAIT_MULTIPLIER"
	envRetryWaitMax                = "PODCAST_RETRY_WAIT_MAX"
	envGoogleApplicationCredential = "GOOGLE_APPLICATION_CREDENTIALS"
)

// Segment failure policies.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// Providers understood by the backend factory.
var supportedProviders = map[string]struct{}{
	"openai":            {},
	"anthropic":         {},
	"openrouter":        {},
	"ollama":            {},
	"openai-compatible": {},
}

// Default returns a Config populated with repository defaults. Retry values
// are left zero so normalization can apply environment fallbacks first.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:   defaultOutputDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			ProfilesDir: defaultProfilesDir,
		},
		LLM: LLM{
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Outline: Model{
			Provider:    defaultOutlineProvider,
			Model:       defaultOutlineModel,
			Temperature: defaultTemperature,
			MaxTokens:   defaultOutlineMaxTokens,
		},
		Transcript: Model{
			Provider:    defaultTranscriptProvider,
			Model:       defaultTranscriptModel,
			Temperature: defaultTemperature,
			MaxTokens:   defaultTranscriptMaxTokens,
		},
		Generation: Generation{
			NumSegments:          defaultNumSegments,
			MinTurns:             defaultMinTurns,
			ValidationRetries:    defaultValidationRetries,
			SegmentFailurePolicy: defaultSegmentFailurePolicy,
			OutlineTimeout:       defaultOutlineTimeoutSeconds,
			SegmentTimeout:       defaultSegmentTimeoutSeconds,
			Language:             defaultLanguage,
			BatchConcurrency:     defaultBatchConcurrency,
			SpeakerProfile:       defaultSpeakerProfile,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Publish: Publish{
			Prefix: defaultPublishPrefix,
		},
		Tracing: Tracing{
			Exporter:    defaultTracingExporter,
			ServiceName: defaultTracingServiceName,
			SampleRatio: defaultTracingSampleRatio,
		},
	}
}

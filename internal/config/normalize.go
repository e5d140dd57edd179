package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeModel(&c.Outline, defaultOutlineProvider, defaultOutlineModel, defaultOutlineMaxTokens)
	c.normalizeModel(&c.Transcript, defaultTranscriptProvider, defaultTranscriptModel, defaultTranscriptMaxTokens)
	if err := c.normalizeRetry(); err != nil {
		return err
	}
	if err := c.normalizeGeneration(); err != nil {
		return err
	}
	if err := c.normalizePublish(); err != nil {
		return err
	}
	c.normalizeTracing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ProfilesDir, err = expandPath(c.Paths.ProfilesDir); err != nil {
		return fmt.Errorf("paths.profiles_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.Proxy != nil {
		trimmed := strings.TrimSpace(*c.LLM.Proxy)
		c.LLM.Proxy = &trimmed
	}
}

func (c *Config) normalizeModel(m *Model, provider, model string, maxTokens int) {
	m.Provider = strings.ToLower(strings.TrimSpace(m.Provider))
	if m.Provider == "" {
		m.Provider = provider
	}
	m.Model = strings.TrimSpace(m.Model)
	if m.Model == "" && m.Provider == provider {
		m.Model = model
	}
	if m.MaxTokens == 0 {
		m.MaxTokens = maxTokens
	}
	m.BaseURL = strings.TrimSpace(m.BaseURL)
	m.APIKey = strings.TrimSpace(m.APIKey)
	if m.APIKey == "" {
		if envKey := providerAPIKeyEnv(m.Provider); envKey != "" {
			if value, ok := os.LookupEnv(envKey); ok {
				m.APIKey = strings.TrimSpace(value)
			}
		}
	}
}

func providerAPIKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}

func (c *Config) normalizeRetry() error {
	if c.Retry.MaxAttempts == 0 {
		value, ok, err := intEnv(envRetryMaxAttempts)
		if err != nil {
			return err
		}
		if ok {
			c.Retry.MaxAttempts = value
		} else {
			c.Retry.MaxAttempts = defaultRetryMaxAttempts
		}
	}
	if c.Retry.WaitMultiplier == 0 {
		value, ok, err := floatEnv(envRetryWaitMultiplier)
		if err != nil {
			return err
		}
		if ok {
			c.Retry.WaitMultiplier = value
		} else {
			c.Retry.WaitMultiplier = defaultRetryWaitMultiplier
		}
	}
	if c.Retry.WaitMax == 0 {
		value, ok, err := floatEnv(envRetryWaitMax)
		if err != nil {
			return err
		}
		if ok {
			c.Retry.WaitMax = value
		} else {
			c.Retry.WaitMax = defaultRetryWaitMax
		}
	}
	return nil
}

func (c *Config) normalizeGeneration() error {
	c.Generation.SegmentFailurePolicy = strings.ToLower(strings.TrimSpace(c.Generation.SegmentFailurePolicy))
	if c.Generation.SegmentFailurePolicy == "" {
		c.Generation.SegmentFailurePolicy = defaultSegmentFailurePolicy
	}
	c.Generation.SpeakerProfile = strings.TrimSpace(c.Generation.SpeakerProfile)
	if c.Generation.SpeakerProfile == "" {
		c.Generation.SpeakerProfile = defaultSpeakerProfile
	}
	lang := strings.TrimSpace(c.Generation.Language)
	if lang == "" {
		lang = defaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("generation.language: invalid BCP 47 tag %q: %w", lang, err)
	}
	c.Generation.Language = tag.String()
	return nil
}

func (c *Config) normalizePublish() error {
	c.Publish.GCSBucket = strings.TrimSpace(c.Publish.GCSBucket)
	c.Publish.Prefix = strings.Trim(strings.TrimSpace(c.Publish.Prefix), "/")
	c.Publish.CredentialsFile = strings.TrimSpace(c.Publish.CredentialsFile)
	if c.Publish.CredentialsFile == "" {
		if value, ok := os.LookupEnv(envGoogleApplicationCredential); ok {
			c.Publish.CredentialsFile = strings.TrimSpace(value)
		}
	}
	if c.Publish.CredentialsFile != "" {
		expanded, err := expandPath(c.Publish.CredentialsFile)
		if err != nil {
			return fmt.Errorf("publish.credentials_file: %w", err)
		}
		c.Publish.CredentialsFile = expanded
	}
	return nil
}

func (c *Config) normalizeTracing() {
	c.Tracing.Exporter = strings.ToLower(strings.TrimSpace(c.Tracing.Exporter))
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = defaultTracingExporter
	}
	c.Tracing.Endpoint = strings.TrimSpace(c.Tracing.Endpoint)
	if c.Tracing.Endpoint == "" {
		if value, ok := os.LookupEnv("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
			c.Tracing.Endpoint = strings.TrimSpace(value)
		}
	}
	c.Tracing.ServiceName = strings.TrimSpace(c.Tracing.ServiceName)
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaultTracingServiceName
	}
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

func intEnv(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false, fmt.Errorf("%s: invalid integer %q", name, raw)
	}
	return value, true, nil
}

func floatEnv(name string) (float64, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: invalid number %q", name, raw)
	}
	return value, true, nil
}

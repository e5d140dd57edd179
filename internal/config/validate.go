package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateModel("outline", c.Outline); err != nil {
		return err
	}
	if err := c.validateModel("transcript", c.Transcript); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateTracing(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateModel(section string, m Model) error {
	if _, ok := supportedProviders[m.Provider]; !ok {
		return fmt.Errorf("%s.provider %q is not supported (expected one of openai, anthropic, openrouter, ollama, openai-compatible)", section, m.Provider)
	}
	if strings.TrimSpace(m.Model) == "" {
		return fmt.Errorf("%s.model must be set", section)
	}
	if m.MaxTokens <= 0 {
		return fmt.Errorf("%s.max_tokens must be positive", section)
	}
	if (m.Provider == "ollama" || m.Provider == "openai-compatible") && m.BaseURL == "" && c.LLM.BaseURL == "" {
		return fmt.Errorf("%s.base_url must be set for provider %s", section, m.Provider)
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be positive")
	}
	if c.Retry.WaitMultiplier < 0 {
		return errors.New("retry.wait_multiplier must not be negative")
	}
	if c.Retry.WaitMax < 0 {
		return errors.New("retry.wait_max must not be negative")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	g := c.Generation
	if g.NumSegments <= 0 || g.NumSegments > maxSegments {
		return fmt.Errorf("generation.num_segments must be between 1 and %d", maxSegments)
	}
	if g.MinTurns <= 0 || g.MinTurns > maxTurnsPerSegment {
		return fmt.Errorf("generation.min_turns must be between 1 and %d", maxTurnsPerSegment)
	}
	if g.ValidationRetries < 0 {
		return errors.New("generation.validation_retries must not be negative")
	}
	switch g.SegmentFailurePolicy {
	case PolicyAbort, PolicySkip:
	default:
		return fmt.Errorf("generation.segment_failure_policy must be %q or %q", PolicyAbort, PolicySkip)
	}
	if err := ensurePositiveMap(map[string]int{
		"generation.outline_timeout": g.OutlineTimeout,
		"generation.segment_timeout": g.SegmentTimeout,
	}); err != nil {
		return err
	}
	if g.BatchConcurrency <= 0 || g.BatchConcurrency > maxBatchConcurrency {
		return fmt.Errorf("generation.batch_concurrency must be between 1 and %d", maxBatchConcurrency)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (expected console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}

func (c *Config) validatePublish() error {
	if !c.Publish.Enabled {
		return nil
	}
	if c.Publish.GCSBucket == "" {
		return errors.New("publish.gcs_bucket must be set when publish.enabled is true")
	}
	return nil
}

func (c *Config) validateTracing() error {
	if !c.Tracing.Enabled {
		return nil
	}
	switch c.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if c.Tracing.Endpoint == "" {
			return errors.New("tracing.endpoint must be set when tracing.exporter is otlp")
		}
	default:
		return fmt.Errorf("tracing.exporter %q is not supported (expected stdout or otlp)", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.New("tracing.sample_ratio must be between 0 and 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

package testsupport

import (
	"path/filepath"
	"testing"

	"podscript/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retries are collapsed to a single attempt with no backoff so failing
// backends return quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "episodes")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ProfilesDir = filepath.Join(base, "profiles")
	cfgVal.LLM.APIKey = "test"
	cfgVal.Retry.MaxAttempts = 1
	cfgVal.Retry.WaitMultiplier = 0
	cfgVal.Retry.WaitMax = 0

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

// WithSegments overrides generation.num_segments.
func WithSegments(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generation.NumSegments = n
	}
}

// WithMinTurns overrides generation.min_turns.
func WithMinTurns(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generation.MinTurns = n
	}
}

// WithSkipPolicy switches the segment failure policy to skip.
func WithSkipPolicy() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generation.SegmentFailurePolicy = config.PolicySkip
	}
}

// WithBaseURL points both stages at an OpenAI-compatible test server and
// disables proxy discovery so loopback requests go direct.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		noProxy := ""
		b.cfg.Outline.Provider = "openai-compatible"
		b.cfg.Transcript.Provider = "openai-compatible"
		b.cfg.LLM.BaseURL = url
		b.cfg.LLM.Proxy = &noProxy
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

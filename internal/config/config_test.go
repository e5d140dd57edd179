package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"podscript/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"OPENAI_API_KEY",
		"ANTHROPIC_API_KEY",
		"OPENROUTER_API_KEY",
		"PODCAST_RETRY_MAX_ATTEMPTS",
		"PODCAST_RETRY_WAIT_MULTIPLIER",
		"PODCAST_RETRY_WAIT_MAX",
		"GOOGLE_APPLICATION_CREDENTIALS",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
	return home
}

func writeConfig(t *testing.T, path string, payload any) {
	t.Helper()
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	home := isolateEnv(t)

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

	wantOutput := filepath.Join(home, "podscript", "episodes")
	if cfg.Paths.OutputDir != wantOutput {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, wantOutput)
	}
	if cfg.StorePath() != filepath.Join(home, ".local", "share", "podscript", "podscript.db") {
		t.Fatalf("unexpected store path: %q", cfg.StorePath())
	}
	if cfg.Outline.Provider != "openai" || cfg.Outline.Model != "gpt-4o-mini" || cfg.Outline.MaxTokens != 3000 {
		t.Fatalf("unexpected outline defaults: %+v", cfg.Outline)
	}
	if cfg.Transcript.Provider != "anthropic" || cfg.Transcript.Model != "claude-3-5-sonnet-latest" || cfg.Transcript.MaxTokens != 5000 {
		t.Fatalf("unexpected transcript defaults: %+v", cfg.Transcript)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.WaitMultiplier != 5 || cfg.Retry.WaitMax != 30 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Generation.NumSegments != 3 || cfg.Generation.MinTurns != 3 {
		t.Fatalf("unexpected generation defaults: %+v", cfg.Generation)
	}
	if cfg.Generation.ValidationRetries != 1 {
		t.Fatalf("expected one validation retry by default, got %d", cfg.Generation.ValidationRetries)
	}
	if cfg.Generation.SegmentFailurePolicy != config.PolicyAbort {
		t.Fatalf("expected abort policy by default, got %q", cfg.Generation.SegmentFailurePolicy)
	}
	if cfg.LLM.Proxy != nil {
		t.Fatalf("expected proxy to be unset, got %q", *cfg.LLM.Proxy)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
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
	isolateEnv(t)
	configPath := filepath.Join(t.TempDir(), "podscript.toml")

	type payload struct {
		Outline struct {
			Provider string `toml:"provider"`
			Model    string `toml:"model"`
		} `toml:"outline"`
		Generation struct {
			NumSegments          int    `toml:"num_segments"`
			SegmentFailurePolicy string `toml:"segment_failure_policy"`
			Language             string `toml:"language"`
		} `toml:"generation"`
		LLM struct {
			Proxy string `toml:"proxy"`
		} `toml:"llm"`
	}
	custom := payload{}
	custom.Outline.Provider = "OpenRouter"
	custom.Outline.Model = "google/gemini-flash"
	custom.Generation.NumSegments = 5
	custom.Generation.SegmentFailurePolicy = "Skip"
	custom.Generation.Language = "de-de"
	writeConfig(t, configPath, custom)

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Outline.Provider != "openrouter" {
		t.Fatalf("expected provider to be lowercased, got %q", cfg.Outline.Provider)
	}
	if cfg.Outline.MaxTokens != 3000 {
		t.Fatalf("expected default max tokens to survive, got %d", cfg.Outline.MaxTokens)
	}
	if cfg.Generation.NumSegments != 5 {
		t.Fatalf("expected 5 segments, got %d", cfg.Generation.NumSegments)
	}
	if cfg.Generation.SegmentFailurePolicy != config.PolicySkip {
		t.Fatalf("expected skip policy, got %q", cfg.Generation.SegmentFailurePolicy)
	}
	if cfg.Generation.Language != "de-DE" {
		t.Fatalf("expected canonical language tag, got %q", cfg.Generation.Language)
	}
	if cfg.LLM.Proxy == nil || *cfg.LLM.Proxy != "" {
		t.Fatalf("expected explicit empty proxy to be preserved, got %v", cfg.LLM.Proxy)
	}
}

func TestRetrySettingsPrecedence(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PODCAST_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("PODCAST_RETRY_WAIT_MULTIPLIER", "2")

	configPath := filepath.Join(t.TempDir(), "podscript.toml")
	type payload struct {
		Retry struct {
			MaxAttempts int `toml:"max_attempts"`
		} `toml:"retry"`
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Retry.MaxAttempts != 7 {
		t.Fatalf("expected env max attempts 7, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.WaitMultiplier != 2 {
		t.Fatalf("expected env wait multiplier 2, got %v", cfg.Retry.WaitMultiplier)
	}
	if cfg.Retry.WaitMax != 30 {
		t.Fatalf("expected default wait max 30, got %v", cfg.Retry.WaitMax)
	}

	custom := payload{}
	custom.Retry.MaxAttempts = 2
	writeConfig(t, configPath, custom)
	cfg, _, _, err = config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Retry.MaxAttempts != 2 {
		t.Fatalf("expected file value to win over env, got %d", cfg.Retry.MaxAttempts)
	}
	base, maxDelay := cfg.RetryBackoff()
	if base != 2*time.Second || maxDelay != 30*time.Second {
		t.Fatalf("unexpected backoff durations: %s %s", base, maxDelay)
	}
}

func TestRetryEnvRejectsGarbage(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PODCAST_RETRY_MAX_ATTEMPTS", "many")
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil || !strings.Contains(err.Error(), "PODCAST_RETRY_MAX_ATTEMPTS") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestStageLLMFallsBackToProviderEnvAndSharedKey(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic")
	t.Setenv("OPENROUTER_API_KEY", "env-shared")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	transcript := cfg.TranscriptLLM()
	if transcript.APIKey != "env-anthropic" {
		t.Fatalf("expected provider env key, got %q", transcript.APIKey)
	}
	outline := cfg.OutlineLLM()
	if outline.APIKey != "env-shared" {
		t.Fatalf("expected shared key fallback for outline, got %q", outline.APIKey)
	}
	if outline.TimeoutSeconds != 120 {
		t.Fatalf("expected shared timeout, got %d", outline.TimeoutSeconds)
	}
}

func TestDotEnvIsLoaded(t *testing.T) {
	isolateEnv(t)
	const key = "PODSCRIPT_TEST_DOTENV_KEY"
	prev, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)

	if _, _, _, err := config.Load(""); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := os.Getenv(key); got != "from-dotenv" {
		t.Fatalf("expected .env value to be exported, got %q", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "unknown provider",
			mutate: func(c *config.Config) { c.Outline.Provider = "bard" },
			want:   "outline.provider",
		},
		{
			name:   "segments out of range",
			mutate: func(c *config.Config) { c.Generation.NumSegments = 0 },
			want:   "generation.num_segments",
		},
		{
			name:   "bad policy",
			mutate: func(c *config.Config) { c.Generation.SegmentFailurePolicy = "retry" },
			want:   "generation.segment_failure_policy",
		},
		{
			name:   "publish without bucket",
			mutate: func(c *config.Config) { c.Publish.Enabled = true },
			want:   "publish.gcs_bucket",
		},
		{
			name: "otlp without endpoint",
			mutate: func(c *config.Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "otlp"
			},
			want: "tracing.endpoint",
		},
		{
			name:   "ollama without base url",
			mutate: func(c *config.Config) { c.Transcript.Provider = "ollama" },
			want:   "transcript.base_url",
		},
		{
			name:   "zero timeout",
			mutate: func(c *config.Config) { c.Generation.SegmentTimeout = 0 },
			want:   "generation.segment_timeout",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Retry = config.Retry{MaxAttempts: 3, WaitMultiplier: 5, WaitMax: 30}
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestInvalidLanguageFailsLoad(t *testing.T) {
	isolateEnv(t)
	configPath := filepath.Join(t.TempDir(), "podscript.toml")
	type payload struct {
		Generation struct {
			Language string `toml:"language"`
		} `toml:"generation"`
	}
	custom := payload{}
	custom.Generation.Language = "not a language"
	writeConfig(t, configPath, custom)
	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "generation.language") {
		t.Fatalf("expected language error, got %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	isolateEnv(t)
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Generation.SegmentFailurePolicy != config.PolicyAbort {
		t.Fatalf("unexpected sample policy %q", cfg.Generation.SegmentFailurePolicy)
	}
}

func TestWithProviderReResolvesKey(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	base := cfg.OutlineLLM()
	if base.APIKey != "env-openai" {
		t.Fatalf("expected openai key, got %q", base.APIKey)
	}

	switched := cfg.WithProvider(base, "Anthropic", "claude-3-haiku")
	if switched.Provider != "anthropic" || switched.Model != "claude-3-haiku" {
		t.Fatalf("unexpected stage %+v", switched)
	}
	if switched.APIKey != "env-anthropic" {
		t.Fatalf("expected key for new provider, got %q", switched.APIKey)
	}

	same := cfg.WithProvider(base, "", "gpt-4o")
	if same.Provider != "openai" || same.APIKey != "env-openai" || same.Model != "gpt-4o" {
		t.Fatalf("model-only override changed provider settings: %+v", same)
	}
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir   string `toml:"output_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	ProfilesDir string `toml:"profiles_dir"`
}

// LLM contains connection settings shared by the outline and transcript
// backends. Stage sections fall back to these values when left empty.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// Proxy is a pointer so an explicit empty string can disable proxy
	// discovery from the environment.
	Proxy *string `toml:"proxy"`
}

// Model configures the backend used by a single generation stage.
type Model struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
}

// Retry configures backoff for transient backend failures. Zero values fall
// back to the PODCAST_RETRY_* environment variables and then to defaults.
type Retry struct {
	MaxAttempts    int     `toml:"max_attempts"`
	WaitMultiplier float64 `toml:"wait_multiplier"`
	WaitMax        float64 `toml:"wait_max"`
}

// Generation controls the outline and transcript loop.
type Generation struct {
	NumSegments          int    `toml:"num_segments"`
	MinTurns             int    `toml:"min_turns"`
	ValidationRetries    int    `toml:"validation_retries"`
	SegmentFailurePolicy string `toml:"segment_failure_policy"`
	OutlineTimeout       int    `toml:"outline_timeout"`
	SegmentTimeout       int    `toml:"segment_timeout"`
	Language             string `toml:"language"`
	BatchConcurrency     int    `toml:"batch_concurrency"`
	SpeakerProfile       string `toml:"speaker_profile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Publish configures optional upload of finished episodes to object storage.
type Publish struct {
	Enabled         bool   `toml:"enabled"`
	GCSBucket       string `toml:"gcs_bucket"`
	Prefix          string `toml:"prefix"`
	CredentialsFile string `toml:"credentials_file"`
}

// Tracing configures OpenTelemetry span export for generation stages.
type Tracing struct {
	Enabled     bool    `toml:"enabled"`
	Exporter    string  `toml:"exporter"`
	Endpoint    string  `toml:"endpoint"`
	Insecure    bool    `toml:"insecure"`
	ServiceName string  `toml:"service_name"`
	SampleRatio float64 `toml:"sample_ratio"`
}

// Config encapsulates all configuration values for podscript.
//
// Configuration sections by subsystem:
//   - Paths: output, state, log, and profile directories
//   - LLM: shared backend connection settings
//   - Outline / Transcript: per-stage provider, model, and sampling
//   - Retry: transient failure backoff
//   - Generation: segment counts, turn minimums, timeouts, failure policy
//   - Logging: log format and level
//   - Publish: optional GCS upload of finished episodes
//   - Tracing: OpenTelemetry exporter settings
type Config struct {
	Paths      Paths      `toml:"paths"`
	LLM        LLM        `toml:"llm"`
	Outline    Model      `toml:"outline"`
	Transcript Model      `toml:"transcript"`
	Retry      Retry      `toml:"retry"`
	Generation Generation `toml:"generation"`
	Logging    Logging    `toml:"logging"`
	Publish    Publish    `toml:"publish"`
	Tracing    Tracing    `toml:"tracing"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is
// loaded first so its values participate in environment fallbacks.
func Load(path string) (*Config, string, bool, error) {
	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads ./.env when present. Variables already set in the process
// environment win.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat .env: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podscript.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output, state, and log directories.
// The profiles directory is optional; built-in profiles cover its absence.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the location of the run-history database.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.StateDir, "podscript.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// StageLLM is the resolved backend configuration for one generation stage,
// with shared [llm] settings folded in.
type StageLLM struct {
	Provider       string
	Model          string
	Temperature    float64
	MaxTokens      int
	APIKey         string
	BaseURL        string
	Referer        string
	Title          string
	TimeoutSeconds int
	Proxy          *string
}

// OutlineLLM returns the backend settings for outline generation.
func (c *Config) OutlineLLM() StageLLM {
	return c.stageLLM(c.Outline)
}

// TranscriptLLM returns the backend settings for transcript generation.
func (c *Config) TranscriptLLM() StageLLM {
	return c.stageLLM(c.Transcript)
}

func (c *Config) stageLLM(m Model) StageLLM {
	out := StageLLM{
		Provider:       strings.TrimSpace(m.Provider),
		Model:          strings.TrimSpace(m.Model),
		Temperature:    m.Temperature,
		MaxTokens:      m.MaxTokens,
		APIKey:         strings.TrimSpace(m.APIKey),
		BaseURL:        strings.TrimSpace(m.BaseURL),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
		Proxy:          c.LLM.Proxy,
	}
	if out.APIKey == "" {
		out.APIKey = strings.TrimSpace(c.LLM.APIKey)
	}
	if out.BaseURL == "" {
		out.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	}
	return out
}

// RetryBackoff returns the retry multiplier and cap as durations.
func (c *Config) RetryBackoff() (time.Duration, time.Duration) {
	return secondsToDuration(c.Retry.WaitMultiplier), secondsToDuration(c.Retry.WaitMax)
}

// OutlineTimeout returns the overall deadline for the outline stage.
func (c *Config) OutlineTimeout() time.Duration {
	return time.Duration(c.Generation.OutlineTimeout) * time.Second
}

// SegmentTimeout returns the deadline applied to each transcript segment.
func (c *Config) SegmentTimeout() time.Duration {
	return time.Duration(c.Generation.SegmentTimeout) * time.Second
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// WithProvider returns stage switched to another provider and model, as an
// episode profile or CLI flag would request. The API key is re-resolved for
// the new provider: provider env var first, then [llm].api_key. Empty
// arguments keep the current value.
func (c *Config) WithProvider(stage StageLLM, provider, model string) StageLLM {
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	if provider != "" && provider != stage.Provider {
		stage.Provider = provider
		stage.APIKey = ""
		if envKey := providerAPIKeyEnv(provider); envKey != "" {
			stage.APIKey = strings.TrimSpace(os.Getenv(envKey))
		}
		if stage.APIKey == "" {
			stage.APIKey = strings.TrimSpace(c.LLM.APIKey)
		}
	}
	if model != "" {
		stage.Model = model
	}
	return stage
}

package episode

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"podscript/internal/config"
	"podscript/internal/prompt"
	"podscript/internal/services/llm"
)

// BackendFactory builds a backend from stage settings. llm.NewBackend is the
// default; tests substitute fakes.
type BackendFactory func(cfg llm.BackendConfig) (llm.Backend, error)

// ConfigSource builds generators from configuration, applying per-job stage
// overrides. Backends are cached per provider/model/endpoint so a batch of
// jobs shares HTTP clients.
type ConfigSource struct {
	cfg        *config.Config
	registry   *prompt.Registry
	logger     *slog.Logger
	tracer     trace.Tracer
	newBackend BackendFactory

	mu       sync.Mutex
	backends map[string]llm.Backend
}

// SourceOption customizes a ConfigSource.
type SourceOption func(*ConfigSource)

// WithSourceLogger sets the logger handed to generators and invokers.
func WithSourceLogger(logger *slog.Logger) SourceOption {
	return func(s *ConfigSource) { s.logger = logger }
}

// WithSourceTracer sets the tracer handed to generators.
func WithSourceTracer(tracer trace.Tracer) SourceOption {
	return func(s *ConfigSource) { s.tracer = tracer }
}

// WithBackendFactory replaces llm.NewBackend.
func WithBackendFactory(factory BackendFactory) SourceOption {
	return func(s *ConfigSource) { s.newBackend = factory }
}

// NewConfigSource wires configuration to the generator constructors.
func NewConfigSource(cfg *config.Config, registry *prompt.Registry, opts ...SourceOption) *ConfigSource {
	s := &ConfigSource{
		cfg:      cfg,
		registry: registry,
		backends: make(map[string]llm.Backend),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.newBackend == nil {
		logger := s.logger
		s.newBackend = func(bc llm.BackendConfig) (llm.Backend, error) {
			return llm.NewBackend(bc, llm.WithBackendLogger(logger))
		}
	}
	return s
}

// Generators implements GeneratorSource.
func (s *ConfigSource) Generators(job Job) (Generators, error) {
	outlineStage := s.stage(s.cfg.OutlineLLM(), job.Outline)
	transcriptStage := s.stage(s.cfg.TranscriptLLM(), job.Transcript)

	outlineInvoker, err := s.invoker(outlineStage)
	if err != nil {
		return Generators{}, fmt.Errorf("outline backend: %w", err)
	}
	transcriptInvoker, err := s.invoker(transcriptStage)
	if err != nil {
		return Generators{}, fmt.Errorf("transcript backend: %w", err)
	}

	common := []GeneratorOption{
		WithValidationRetries(s.cfg.Generation.ValidationRetries),
		WithLanguage(s.cfg.Generation.Language),
		WithGeneratorLogger(s.logger),
	}
	if s.tracer != nil {
		common = append(common, WithTracer(s.tracer))
	}
	return Generators{
		Outline: NewOutlineGenerator(s.registry, outlineInvoker,
			slices.Concat(common, []GeneratorOption{WithStageTimeout(s.cfg.OutlineTimeout())})...),
		Transcript: NewTranscriptGenerator(s.registry, transcriptInvoker,
			slices.Concat(common, []GeneratorOption{WithStageTimeout(s.cfg.SegmentTimeout())})...),
	}, nil
}

func (s *ConfigSource) stage(base config.StageLLM, override StageOverride) config.StageLLM {
	stage := s.cfg.WithProvider(base, override.Provider, override.Model)
	if override.Temperature != nil {
		stage.Temperature = *override.Temperature
	}
	if override.MaxTokens > 0 {
		stage.MaxTokens = override.MaxTokens
	}
	return stage
}

func (s *ConfigSource) invoker(stage config.StageLLM) (*llm.Invoker, error) {
	backend, err := s.backend(stage)
	if err != nil {
		return nil, err
	}
	baseDelay, maxDelay := s.cfg.RetryBackoff()
	return llm.NewInvoker(backend,
		llm.WithLogger(s.logger),
		llm.WithRetryPolicy(llm.RetryPolicy{
			MaxAttempts: s.cfg.Retry.MaxAttempts,
			BaseDelay:   baseDelay,
			MaxDelay:    maxDelay,
		}),
		llm.WithTemperature(stage.Temperature),
		llm.WithMaxTokens(stage.MaxTokens),
		llm.WithJSONMode(stage.Provider == llm.ProviderOpenAI),
	), nil
}

func (s *ConfigSource) backend(stage config.StageLLM) (llm.Backend, error) {
	key := stage.Provider + "|" + stage.Model + "|" + stage.BaseURL
	s.mu.Lock()
	defer s.mu.Unlock()
	if backend, ok := s.backends[key]; ok {
		return backend, nil
	}
	backend, err := s.newBackend(BackendConfigFor(stage))
	if err != nil {
		return nil, err
	}
	s.backends[key] = backend
	return backend, nil
}

// BackendConfigFor converts resolved stage settings into llm.BackendConfig.
func BackendConfigFor(stage config.StageLLM) llm.BackendConfig {
	return llm.BackendConfig{
		Provider:       stage.Provider,
		Model:          stage.Model,
		APIKey:         stage.APIKey,
		BaseURL:        stage.BaseURL,
		Referer:        stage.Referer,
		Title:          stage.Title,
		TimeoutSeconds: stage.TimeoutSeconds,
		Proxy:          stage.Proxy,
	}
}

package episode_test

import (
	"context"
	"sync"
	"testing"

	"podscript/internal/episode"
	"podscript/internal/services/llm"
	"podscript/internal/testsupport"
)

type backendFactory struct {
	mu      sync.Mutex
	configs []llm.BackendConfig
	fake    *testsupport.FakeBackend
}

func (f *backendFactory) build(cfg llm.BackendConfig) (llm.Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	return f.fake, nil
}

func TestConfigSourceAppliesStageOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "sk-or")
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeBackend()
	fake.Respond = scriptedRespond(1, 3)
	factory := &backendFactory{fake: fake}
	source := episode.NewConfigSource(cfg, registry(t), episode.WithBackendFactory(factory.build))

	temp := 1.1
	job := baseJob()
	job.NumSegments = 1
	job.Transcript = episode.StageOverride{Provider: "OpenRouter", Model: "meta-llama/llama-3.1-70b", Temperature: &temp}

	gens, err := source.Generators(job)
	if err != nil {
		t.Fatalf("Generators: %v", err)
	}
	if gens.Outline == nil || gens.Transcript == nil {
		t.Fatalf("expected both generators, got %+v", gens)
	}
	if len(factory.configs) != 2 {
		t.Fatalf("expected two backends, got %d", len(factory.configs))
	}
	outline, transcript := factory.configs[0], factory.configs[1]
	if outline.Provider != "openai" || outline.Model != "gpt-4o-mini" || outline.APIKey != "test" {
		t.Fatalf("unexpected outline backend %+v", outline)
	}
	if transcript.Provider != "openrouter" || transcript.Model != "meta-llama/llama-3.1-70b" || transcript.APIKey != "sk-or" {
		t.Fatalf("unexpected transcript backend %+v", transcript)
	}

	runner := episode.NewRunner(source)
	result, err := runner.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Transcript.Params == nil || result.Transcript.Params.Temperature != 1.1 {
		t.Fatalf("expected overridden temperature, got %+v", result.Transcript.Params)
	}
	if result.Outline.Params == nil || result.Outline.Params.Temperature != 0.7 {
		t.Fatalf("expected configured outline temperature, got %+v", result.Outline.Params)
	}
}

func TestConfigSourceCachesBackends(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcript.Provider = cfg.Outline.Provider
	cfg.Transcript.Model = cfg.Outline.Model
	factory := &backendFactory{fake: testsupport.NewFakeBackend()}
	source := episode.NewConfigSource(cfg, registry(t), episode.WithBackendFactory(factory.build))

	for range 3 {
		if _, err := source.Generators(baseJob()); err != nil {
			t.Fatalf("Generators: %v", err)
		}
	}
	if len(factory.configs) != 1 {
		t.Fatalf("expected one cached backend, built %d", len(factory.configs))
	}
}

func TestConfigSourceReportsBackendErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Outline.Model = ""
	source := episode.NewConfigSource(cfg, registry(t))

	if _, err := source.Generators(baseJob()); err == nil {
		t.Fatal("expected missing model to fail backend construction")
	}
}

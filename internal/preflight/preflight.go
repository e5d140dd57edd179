package preflight

import (
	"context"

	"podscript/internal/config"
	"podscript/internal/episode"
	"podscript/internal/services/llm"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Option customizes RunAll.
type Option func(*options)

type options struct {
	skipBackends bool
	newBackend   episode.BackendFactory
}

// WithoutBackends skips the model round trips. Configuration errors in the
// stage settings are still reported.
func WithoutBackends() Option {
	return func(o *options) { o.skipBackends = true }
}

// WithBackendFactory replaces llm.NewBackend for the backend checks.
func WithBackendFactory(factory episode.BackendFactory) Option {
	return func(o *options) { o.newBackend = factory }
}

// RunAll executes every preflight check for cfg. The transcript backend is
// only probed separately when it differs from the outline backend.
func RunAll(ctx context.Context, cfg *config.Config, opts ...Option) []Result {
	if cfg == nil {
		return nil
	}
	o := options{newBackend: func(bc llm.BackendConfig) (llm.Backend, error) { return llm.NewBackend(bc) }}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckStore(ctx, cfg),
		CheckProfiles(cfg.Paths.ProfilesDir),
	}

	outline := cfg.OutlineLLM()
	transcript := cfg.TranscriptLLM()
	results = append(results, checkStage(ctx, "Outline model", outline, o))
	if stageKey(outline) != stageKey(transcript) {
		results = append(results, checkStage(ctx, "Transcript model", transcript, o))
	}
	return results
}

func checkStage(ctx context.Context, name string, stage config.StageLLM, o options) Result {
	backend, err := o.newBackend(episode.BackendConfigFor(stage))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if o.skipBackends {
		return Result{Name: name, Passed: true, Detail: describeBackend(backend) + " (not probed)"}
	}
	return CheckLLM(ctx, name, backend)
}

func stageKey(stage config.StageLLM) string {
	return stage.Provider + "|" + stage.Model + "|" + stage.BaseURL + "|" + stage.APIKey
}

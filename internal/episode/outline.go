package episode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"podscript/internal/logging"
	"podscript/internal/podcast"
	"podscript/internal/prompt"
	"podscript/internal/services"
	"podscript/internal/services/llm"
)

// OutlineRequest is the input to the outline stage.
type OutlineRequest struct {
	Briefing    string
	Context     []string
	Speakers    []podcast.Speaker
	NumSegments int
}

// OutlineGenerator turns a briefing into a validated outline.
type OutlineGenerator struct {
	cfg generatorConfig
}

// NewOutlineGenerator wires a generator to a prompt registry and model invoker.
func NewOutlineGenerator(registry *prompt.Registry, invoker *llm.Invoker, opts ...GeneratorOption) *OutlineGenerator {
	return &OutlineGenerator{cfg: newGeneratorConfig(registry, invoker, "outline", opts)}
}

// Generate renders the outline prompt, invokes the model, and validates the
// reply. A reply rejected by the validator is retried with an amended prompt
// up to the configured budget. Backend and template errors are not retried
// here.
func (g *OutlineGenerator) Generate(ctx context.Context, req OutlineRequest) (podcast.Outline, error) {
	if err := g.cfg.ready(); err != nil {
		return podcast.Outline{}, &OutlineGenerationError{Err: err}
	}
	if err := validateOutlineRequest(req); err != nil {
		return podcast.Outline{}, &OutlineGenerationError{Err: err}
	}

	ctx = services.WithStage(ctx, stageOutline)
	ctx, span := g.cfg.tracer.Start(ctx, "episode.outline", trace.WithAttributes(
		attribute.Int("outline.segments", req.NumSegments),
		attribute.String("llm.provider", g.cfg.invoker.Backend().Name()),
		attribute.String("llm.model", g.cfg.invoker.Backend().Model()),
	))
	defer span.End()

	stageCtx, cancel, classify := g.cfg.stageContext(ctx, stageOutline)
	defer cancel()

	logger := logging.WithContext(ctx, g.cfg.logger)
	start := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("segments_requested", req.NumSegments),
		logging.Int("context_items", len(req.Context)),
	)

	values := g.cfg.baseValues(req.Briefing, req.Context, req.Speakers, podcast.OutlineSchema)
	values["num_segments"] = req.NumSegments

	outline, attempts, err := g.attempt(stageCtx, values, req.NumSegments, classify)
	span.SetAttributes(attribute.Int("outline.attempts", attempts))
	if err != nil {
		genErr := &OutlineGenerationError{Attempts: attempts, Err: err}
		span.RecordError(genErr)
		span.SetStatus(codes.Error, "outline generation failed")
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.Int(logging.FieldAttempt, attempts),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, outlineHint(err)),
		)
		return podcast.Outline{}, genErr
	}

	outline.Params = g.cfg.params()
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("segments", len(outline.Segments)),
		logging.Int(logging.FieldAttempt, attempts),
		logging.Duration("stage_duration", time.Since(start)),
	)
	return outline, nil
}

func (g *OutlineGenerator) attempt(ctx context.Context, values prompt.Values, want int, classify func(error) error) (podcast.Outline, int, error) {
	logger := logging.WithContext(ctx, g.cfg.logger)
	attempts := 0
	for {
		rendered, err := g.cfg.registry.Render(prompt.Outline, values)
		if err != nil {
			return podcast.Outline{}, attempts, services.Wrap(services.ErrConfiguration, stageOutline, "render prompt", "", err)
		}
		attempts++
		raw, err := g.cfg.invoker.Invoke(ctx, rendered, podcast.OutlineSchema)
		if err != nil {
			return podcast.Outline{}, attempts, classify(err)
		}
		outline, err := podcast.ParseOutline(raw, want)
		if err == nil {
			return outline, attempts, nil
		}
		if !isValidationError(err) || attempts > g.cfg.validationRetries {
			return podcast.Outline{}, attempts, err
		}
		logging.WarnWithContext(logger, "outline rejected by validator; retrying with amended prompt", "validation_retry",
			logging.Int(logging.FieldAttempt, attempts),
			logging.Error(err),
			logging.String("response_snippet", podcast.Snippet(raw, 200)),
			logging.String(logging.FieldErrorHint, "try a stronger outline model if this repeats"),
			logging.String(logging.FieldImpact, "one more model call is made for the outline"),
		)
		values = withRetryNote(values, err)
	}
}

func validateOutlineRequest(req OutlineRequest) error {
	if strings.TrimSpace(req.Briefing) == "" {
		return services.Wrap(services.ErrValidation, stageOutline, "validate request", "", podcast.ErrEmptyBriefing)
	}
	if req.NumSegments < 1 {
		return services.Wrap(services.ErrValidation, stageOutline, "validate request",
			fmt.Sprintf("num_segments must be at least 1 (got %d)", req.NumSegments), nil)
	}
	if err := podcast.ValidateSpeakers(req.Speakers); err != nil {
		return services.Wrap(services.ErrValidation, stageOutline, "validate request", "", err)
	}
	return nil
}

// withRetryNote copies values and sets the retry note so earlier renders keep
// their inputs.
func withRetryNote(values prompt.Values, cause error) prompt.Values {
	next := make(prompt.Values, len(values)+1)
	for k, v := range values {
		next[k] = v
	}
	next[prompt.FieldRetryNote] = retryNote(cause)
	return next
}

func outlineHint(err error) string {
	switch {
	case isValidationError(err):
		return "the model kept returning malformed outlines; try another outline model or fewer segments"
	case services.IsRetryable(err):
		return "the backend stayed unavailable; check provider status and retry"
	default:
		return "check provider credentials and configuration"
	}
}

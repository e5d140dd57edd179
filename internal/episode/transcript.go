package episode

import (
	"context"
	"fmt"
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

// FailurePolicy decides what happens after a segment exhausts its retries.
type FailurePolicy string

const (
	// PolicyAbort stops the episode and returns the partial transcript.
	PolicyAbort FailurePolicy = "abort"
	// PolicySkip records the segment as skipped and moves on.
	PolicySkip FailurePolicy = "skip"
)

// ParsePolicy maps a config value onto a FailurePolicy. Unknown values abort.
func ParsePolicy(value string) FailurePolicy {
	if FailurePolicy(value) == PolicySkip {
		return PolicySkip
	}
	return PolicyAbort
}

// TranscriptRequest is the input to the transcript stage.
type TranscriptRequest struct {
	Briefing string
	Context  []string
	Speakers []podcast.Speaker
	Outline  podcast.Outline
	MinTurns int
	Policy   FailurePolicy
}

// TranscriptResult is the accumulated dialogue plus the indexes of skipped
// segments.
type TranscriptResult struct {
	Transcript podcast.Transcript
	Skipped    []int
}

// Observer is told about segment progress. Callbacks run on the generating
// goroutine in segment order.
type Observer interface {
	SegmentStarted(index int)
	SegmentCompleted(index, turns int)
	SegmentFailed(index int, err error)
}

type nopObserver struct{}

func (nopObserver) SegmentStarted(int)       {}
func (nopObserver) SegmentCompleted(int, int) {}
func (nopObserver) SegmentFailed(int, error)  {}

// TranscriptGenerator writes dialogue one outline segment at a time.
type TranscriptGenerator struct {
	cfg generatorConfig
}

// NewTranscriptGenerator wires a generator to a prompt registry and model invoker.
func NewTranscriptGenerator(registry *prompt.Registry, invoker *llm.Invoker, opts ...GeneratorOption) *TranscriptGenerator {
	return &TranscriptGenerator{cfg: newGeneratorConfig(registry, invoker, "transcript", opts)}
}

// Generate walks the outline in order. Each segment sees the transcript
// produced so far, and its validated turns are appended before the next
// segment starts. Segments never run concurrently.
//
// When a segment fails, PolicyAbort returns the partial result with a
// *SegmentGenerationError and PolicySkip records the index and continues.
func (g *TranscriptGenerator) Generate(ctx context.Context, req TranscriptRequest, observer Observer) (TranscriptResult, error) {
	if observer == nil {
		observer = nopObserver{}
	}
	result := TranscriptResult{Transcript: podcast.Transcript{Turns: []podcast.Turn{}}}
	if err := g.cfg.ready(); err != nil {
		return result, err
	}
	if err := validateTranscriptRequest(req); err != nil {
		return result, err
	}
	result.Transcript.Params = g.cfg.params()

	names := podcast.SpeakerNames(req.Speakers)
	total := len(req.Outline.Segments)
	for i, segment := range req.Outline.Segments {
		observer.SegmentStarted(i)
		if err := ctx.Err(); err != nil {
			segErr := &SegmentGenerationError{Index: i, Name: segment.Name, Err: err}
			observer.SegmentFailed(i, segErr)
			return result, segErr
		}
		turns, attempts, err := g.segment(ctx, req, names, result.Transcript.Turns, i, i == total-1)
		if err != nil {
			segErr := &SegmentGenerationError{Index: i, Name: segment.Name, Attempts: attempts, Err: err}
			observer.SegmentFailed(i, segErr)
			if req.Policy == PolicySkip && ctx.Err() == nil {
				logging.WarnWithContext(logging.WithContext(services.WithSegmentIndex(ctx, i), g.cfg.logger),
					"segment skipped after repeated failures", "segment_skipped",
					logging.String("segment_name", segment.Name),
					logging.Error(segErr),
					logging.String(logging.FieldErrorHint, "inspect the segment error; rerun with --skip-failed-segments off to stop on failures"),
					logging.String(logging.FieldImpact, "the episode is missing this segment's dialogue"),
				)
				result.Skipped = append(result.Skipped, i)
				continue
			}
			return result, segErr
		}
		result.Transcript.Append(turns...)
		observer.SegmentCompleted(i, len(turns))
	}
	return result, nil
}

func (g *TranscriptGenerator) segment(ctx context.Context, req TranscriptRequest, names []string, sofar []podcast.Turn, index int, final bool) ([]podcast.Turn, int, error) {
	segment := req.Outline.Segments[index]
	ctx = services.WithSegmentIndex(services.WithStage(ctx, stageTranscript), index)
	ctx, span := g.cfg.tracer.Start(ctx, "episode.segment", trace.WithAttributes(
		attribute.Int("segment.index", index),
		attribute.Bool("segment.final", final),
		attribute.String("segment.name", segment.Name),
		attribute.String("segment.size", string(segment.Size)),
	))
	defer span.End()

	stageCtx, cancel, classify := g.cfg.stageContext(ctx, stageTranscript)
	defer cancel()

	logger := logging.WithContext(ctx, g.cfg.logger)
	start := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("segment_name", segment.Name),
		logging.Bool("final", final),
		logging.Int("transcript_turns", len(sofar)),
	)

	values := g.cfg.baseValues(req.Briefing, req.Context, req.Speakers, podcast.TranscriptSchema)
	values["outline"] = req.Outline
	values["segment"] = segment
	values["transcript"] = sofar
	values["is_final"] = final
	values["turns"] = req.MinTurns
	values["speaker_names"] = names

	turns, attempts, err := g.attempt(stageCtx, values, names, req.MinTurns, classify)
	span.SetAttributes(attribute.Int("segment.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "segment generation failed")
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.String("segment_name", segment.Name),
			logging.Int(logging.FieldAttempt, attempts),
			logging.Error(err),
		)
		return nil, attempts, err
	}
	span.SetAttributes(attribute.Int("segment.turns", len(turns)))
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("segment_name", segment.Name),
		logging.Int("turns", len(turns)),
		logging.Int(logging.FieldAttempt, attempts),
		logging.Duration("stage_duration", time.Since(start)),
	)
	return turns, attempts, nil
}

func (g *TranscriptGenerator) attempt(ctx context.Context, values prompt.Values, names []string, minTurns int, classify func(error) error) ([]podcast.Turn, int, error) {
	logger := logging.WithContext(ctx, g.cfg.logger)
	attempts := 0
	// Each attempt re-renders the same segment; is_final never moves to
	// another index.
	for {
		rendered, err := g.cfg.registry.Render(prompt.Transcript, values)
		if err != nil {
			return nil, attempts, services.Wrap(services.ErrConfiguration, stageTranscript, "render prompt", "", err)
		}
		attempts++
		raw, err := g.cfg.invoker.Invoke(ctx, rendered, podcast.TranscriptSchema)
		if err != nil {
			return nil, attempts, classify(err)
		}
		turns, err := podcast.ParseTranscript(raw, names, minTurns)
		if err == nil {
			return turns, attempts, nil
		}
		if !isValidationError(err) || attempts > g.cfg.validationRetries {
			return nil, attempts, err
		}
		logging.WarnWithContext(logger, "segment rejected by validator; retrying with amended prompt", "validation_retry",
			logging.Int(logging.FieldAttempt, attempts),
			logging.Error(err),
			logging.String("response_snippet", podcast.Snippet(raw, 200)),
			logging.String(logging.FieldErrorHint, "try a stronger transcript model if this repeats"),
			logging.String(logging.FieldImpact, "one more model call is made for this segment"),
		)
		values = withRetryNote(values, err)
	}
}

func validateTranscriptRequest(req TranscriptRequest) error {
	if len(req.Outline.Segments) == 0 {
		return services.Wrap(services.ErrValidation, stageTranscript, "validate request", "outline has no segments", nil)
	}
	if req.MinTurns < 1 {
		return services.Wrap(services.ErrValidation, stageTranscript, "validate request",
			fmt.Sprintf("min_turns must be at least 1 (got %d)", req.MinTurns), nil)
	}
	if err := podcast.ValidateSpeakers(req.Speakers); err != nil {
		return services.Wrap(services.ErrValidation, stageTranscript, "validate request", "", err)
	}
	return nil
}

package episode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"podscript/internal/logging"
	"podscript/internal/podcast"
	"podscript/internal/services"
)

// Run statuses.
const (
	StatusComplete = "complete"
	StatusPartial  = services.StatusPartial
	StatusFailed   = services.StatusFailed
)

// StageOverride replaces the configured backend for one stage of one job.
// Zero values keep the configured setting.
type StageOverride struct {
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Job describes one episode to generate.
type Job struct {
	RunID       string
	Name        string
	Briefing    string
	Context     []string
	Speakers    []podcast.Speaker
	NumSegments int
	MinTurns    int
	Policy      FailurePolicy
	OutputDir   string
	Outline     StageOverride
	Transcript  StageOverride
}

// Validate checks the job before any model call is made.
func (j Job) Validate() error {
	if strings.TrimSpace(j.Briefing) == "" {
		return services.Wrap(services.ErrValidation, "episode", "validate job", "", podcast.ErrEmptyBriefing)
	}
	if j.NumSegments < 1 {
		return services.Wrap(services.ErrValidation, "episode", "validate job", fmt.Sprintf("num_segments must be at least 1 (got %d)", j.NumSegments), nil)
	}
	if j.MinTurns < 1 {
		return services.Wrap(services.ErrValidation, "episode", "validate job", fmt.Sprintf("min_turns must be at least 1 (got %d)", j.MinTurns), nil)
	}
	if err := podcast.ValidateSpeakers(j.Speakers); err != nil {
		return services.Wrap(services.ErrValidation, "episode", "validate job", "", err)
	}
	return nil
}

// Result is what a run produced. On failure it still carries whatever was
// generated before the failure.
type Result struct {
	RunID      string
	Name       string
	Outline    podcast.Outline
	Transcript podcast.Transcript
	Skipped    []int
	State      State
	Status     string
	Duration   time.Duration
}

// Generators is the pair of stage generators used for one job.
type Generators struct {
	Outline    *OutlineGenerator
	Transcript *TranscriptGenerator
}

// GeneratorSource supplies generators for a job, applying any per-job
// overrides.
type GeneratorSource interface {
	Generators(job Job) (Generators, error)
}

// StaticGenerators ignores job overrides and always returns the same pair.
type StaticGenerators Generators

// Generators implements GeneratorSource.
func (s StaticGenerators) Generators(Job) (Generators, error) {
	if s.Outline == nil || s.Transcript == nil {
		return Generators{}, services.Wrap(services.ErrConfiguration, "episode", "generators", "outline and transcript generators are required", nil)
	}
	return Generators(s), nil
}

// Runner drives episodes through the state machine.
type Runner struct {
	source GeneratorSource
	sinks  []StateSink
	logger *slog.Logger
	tracer trace.Tracer
	newID  func() string
	now    func() time.Time
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithSinks adds state sinks. Sinks are called in order for every transition.
func WithSinks(sinks ...StateSink) RunnerOption {
	return func(r *Runner) { r.sinks = append(r.sinks, sinks...) }
}

// WithRunnerLogger sets the runner logger. A LogSink using it is always added.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithRunnerTracer overrides the global tracer.
func WithRunnerTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = tracer }
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(fn func() string) RunnerOption {
	return func(r *Runner) { r.newID = fn }
}

// NewRunner builds a runner over source.
func NewRunner(source GeneratorSource, opts ...RunnerOption) *Runner {
	r := &Runner{
		source: source,
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = logging.NewComponentLogger(r.logger, "episode")
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	r.sinks = append([]StateSink{LogSink{Logger: r.logger}}, r.sinks...)
	return r
}

// Run generates one episode: the outline, then every segment in order.
// Transitions are published to the runner's sinks as they happen.
func (r *Runner) Run(ctx context.Context, job Job) (Result, error) {
	runID := strings.TrimSpace(job.RunID)
	if runID == "" {
		runID = r.newID()
	}
	result := Result{RunID: runID, Name: job.Name, State: StateIdle, Status: StatusFailed}
	start := time.Now()

	if err := job.Validate(); err != nil {
		return result, err
	}
	if r.source == nil {
		return result, services.Wrap(services.ErrConfiguration, "episode", "run", "generator source not configured", nil)
	}
	gens, err := r.source.Generators(job)
	if err != nil {
		return result, err
	}

	ctx = services.WithRunID(ctx, runID)
	ctx, span := r.tracer.Start(ctx, "episode.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("episode.name", job.Name),
		attribute.Int("episode.segments", job.NumSegments),
		attribute.String("episode.policy", string(job.Policy)),
	))
	defer span.End()

	logger := logging.WithContext(ctx, r.logger)
	m := newMachine(runMeta(runID, job, gens), r.sinks, logger, r.now)

	finish := func(status string, runErr error) (Result, error) {
		result.State = m.current()
		result.Status = status
		result.Duration = time.Since(start)
		span.SetAttributes(attribute.String("episode.status", status))
		if runErr != nil {
			span.RecordError(runErr)
			span.SetStatus(codes.Error, status)
		}
		return result, runErr
	}
	fail := func(status string, runErr error) (Result, error) {
		if ctx.Err() != nil {
			status = StatusFailed
		}
		if err := m.advance(ctx, StateFailed, -1, status, runErr); err != nil {
			logger.Error("state machine rejected failure", logging.Error(err))
		}
		return finish(status, runErr)
	}

	for _, state := range []State{StateOutlineRequested, StateOutlinePending} {
		if err := m.advance(ctx, state, -1, "", nil); err != nil {
			return finish(StatusFailed, err)
		}
	}

	outline, err := gens.Outline.Generate(ctx, OutlineRequest{
		Briefing:    job.Briefing,
		Context:     job.Context,
		Speakers:    job.Speakers,
		NumSegments: job.NumSegments,
	})
	if err != nil {
		return fail(StatusFailed, err)
	}
	result.Outline = outline
	m.setSegmentCount(len(outline.Segments))
	if err := m.advance(ctx, StateOutlineReady, -1, "", nil); err != nil {
		return finish(StatusFailed, err)
	}

	observer := &machineObserver{ctx: ctx, machine: m, policy: job.Policy, logger: logger}
	transcript, err := gens.Transcript.Generate(ctx, TranscriptRequest{
		Briefing: job.Briefing,
		Context:  job.Context,
		Speakers: job.Speakers,
		Outline:  outline,
		MinTurns: job.MinTurns,
		Policy:   job.Policy,
	}, observer)
	result.Transcript = transcript.Transcript
	result.Skipped = transcript.Skipped
	if err != nil {
		return fail(services.FailureStatus(err), err)
	}
	if observer.err != nil {
		return fail(StatusFailed, observer.err)
	}

	status := StatusComplete
	if len(transcript.Skipped) > 0 {
		status = StatusPartial
	}
	if err := m.advance(ctx, StateComplete, -1, status, nil); err != nil {
		return finish(StatusFailed, err)
	}
	span.SetAttributes(attribute.Int("episode.turns", transcript.Transcript.Len()))
	return finish(status, nil)
}

func runMeta(runID string, job Job, gens Generators) RunMeta {
	meta := RunMeta{RunID: runID, Name: job.Name, OutputDir: job.OutputDir}
	if p := gens.Outline.cfg.params(); p != nil {
		meta.OutlineProvider, meta.OutlineModel = p.Provider, p.Model
	}
	if p := gens.Transcript.cfg.params(); p != nil {
		meta.TranscriptProvider, meta.TranscriptModel = p.Provider, p.Model
	}
	return meta
}

// machineObserver maps transcript progress onto state transitions.
type machineObserver struct {
	ctx     context.Context
	machine *machine
	policy  FailurePolicy
	logger  *slog.Logger
	err     error
}

func (o *machineObserver) SegmentStarted(index int) {
	o.record(o.machine.advance(o.ctx, StateSegmentPending, index, "", nil))
}

func (o *machineObserver) SegmentCompleted(index, _ int) {
	o.record(o.machine.advance(o.ctx, StateSegmentReady, index, "", nil))
}

func (o *machineObserver) SegmentFailed(index int, err error) {
	if o.policy == PolicySkip && o.ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		o.machine.skip(index)
	}
}

func (o *machineObserver) record(err error) {
	if err != nil && o.err == nil {
		o.err = err
		o.logger.Error("state machine rejected transition", logging.Error(err))
	}
}

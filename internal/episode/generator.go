package episode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"podscript/internal/logging"
	"podscript/internal/podcast"
	"podscript/internal/prompt"
	"podscript/internal/services"
	"podscript/internal/services/llm"
)

const (
	stageOutline    = "outline"
	stageTranscript = "transcript"
	tracerName      = "podscript/episode"
)

// DefaultValidationRetries is how many amended-prompt retries a stage gets
// after the validator rejects a reply.
const DefaultValidationRetries = 1

// GeneratorOption customizes OutlineGenerator and TranscriptGenerator.
type GeneratorOption func(*generatorConfig)

type generatorConfig struct {
	registry          *prompt.Registry
	invoker           *llm.Invoker
	validationRetries int
	timeout           time.Duration
	language          string
	logger            *slog.Logger
	tracer            trace.Tracer
	now               func() time.Time
}

// WithValidationRetries sets the amended-prompt retry budget. Negative values
// are treated as zero.
func WithValidationRetries(n int) GeneratorOption {
	return func(c *generatorConfig) {
		if n < 0 {
			n = 0
		}
		c.validationRetries = n
	}
}

// WithStageTimeout bounds a whole stage (the outline, or one segment)
// including its validation retries. Zero disables the bound.
func WithStageTimeout(d time.Duration) GeneratorOption {
	return func(c *generatorConfig) { c.timeout = d }
}

// WithLanguage asks for output in the given BCP-47 language.
func WithLanguage(tag string) GeneratorOption {
	return func(c *generatorConfig) { c.language = tag }
}

// WithGeneratorLogger sets the generator logger.
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(c *generatorConfig) { c.logger = logger }
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) GeneratorOption {
	return func(c *generatorConfig) { c.tracer = tracer }
}

// WithClock overrides the timestamp source for GenerationParams.
func WithClock(now func() time.Time) GeneratorOption {
	return func(c *generatorConfig) { c.now = now }
}

func newGeneratorConfig(registry *prompt.Registry, invoker *llm.Invoker, component string, opts []GeneratorOption) generatorConfig {
	cfg := generatorConfig{
		registry:          registry,
		invoker:           invoker,
		validationRetries: DefaultValidationRetries,
		now:               time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.logger = logging.NewComponentLogger(cfg.logger, component)
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}
	return cfg
}

func (c *generatorConfig) params() *podcast.GenerationParams {
	if c.invoker == nil || c.invoker.Backend() == nil {
		return nil
	}
	return &podcast.GenerationParams{
		Provider:    c.invoker.Backend().Name(),
		Model:       c.invoker.Backend().Model(),
		Temperature: c.invoker.Temperature(),
		Timestamp:   c.now().UTC(),
	}
}

func (c *generatorConfig) ready() error {
	if c.registry == nil {
		return services.Wrap(services.ErrConfiguration, "", "generate", "prompt registry not configured", nil)
	}
	if c.invoker == nil || c.invoker.Backend() == nil {
		return services.Wrap(services.ErrConfiguration, "", "generate", "model invoker not configured", nil)
	}
	return nil
}

// stageContext applies the stage timeout. The returned classify function
// marks errors caused by that deadline with services.ErrTimeout.
func (c *generatorConfig) stageContext(ctx context.Context, stage string) (context.Context, context.CancelFunc, func(error) error) {
	if c.timeout <= 0 {
		return ctx, func() {}, func(err error) error { return err }
	}
	stageCtx, cancel := context.WithTimeout(ctx, c.timeout)
	classify := func(err error) error {
		if err == nil || ctx.Err() != nil {
			return err
		}
		if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, stage, "invoke", fmt.Sprintf("exceeded %s", c.timeout), err)
		}
		return err
	}
	return stageCtx, cancel, classify
}

func (c *generatorConfig) baseValues(briefing string, context []string, speakers []podcast.Speaker, schema podcast.Schema) prompt.Values {
	values := prompt.Values{
		"briefing":            briefing,
		"context":             context,
		"speakers":            speakers,
		"format_instructions": schema.Description(),
	}
	if name := languageName(c.language); name != "" {
		values[prompt.FieldLanguage] = name
	}
	return values
}

// retryNote tells the model what was wrong with its previous reply.
func retryNote(err error) string {
	var unknown *podcast.UnknownSpeakerError
	if errors.As(err, &unknown) {
		return fmt.Sprintf("%s. Use only these speaker names: %s.", err.Error(), strings.Join(unknown.Known, ", "))
	}
	return err.Error() + "."
}

func isValidationError(err error) bool {
	return errors.Is(err, podcast.ErrSchemaValidation)
}

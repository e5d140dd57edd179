package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"podscript/internal/logging"
	"podscript/internal/prompt"
)

// Schema describes the JSON shape expected from the model.
type Schema interface {
	Name() string
	Description() string
}

const formatInstruction = "Respond with a single JSON object matching the following schema, with no markdown code fences and no commentary."

// Invoker sends rendered prompts to a Backend, retrying transient failures and
// stripping reasoning blocks from the reply. It never inspects the JSON itself.
type Invoker struct {
	backend     Backend
	logger      *slog.Logger
	policy      RetryPolicy
	sleeper     func(time.Duration)
	temperature float64
	maxTokens   int
	jsonMode    bool
}

// InvokerOption customizes an Invoker.
type InvokerOption func(*Invoker)

// WithLogger sets the invoker logger.
func WithLogger(logger *slog.Logger) InvokerOption {
	return func(inv *Invoker) { inv.logger = logger }
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(policy RetryPolicy) InvokerOption {
	return func(inv *Invoker) { inv.policy = policy }
}

// WithSleeper replaces the timer used between attempts. Tests use it to skip
// real waits.
func WithSleeper(sleeper func(time.Duration)) InvokerOption {
	return func(inv *Invoker) { inv.sleeper = sleeper }
}

// WithTemperature sets the sampling temperature. It is clamped on construction.
func WithTemperature(t float64) InvokerOption {
	return func(inv *Invoker) { inv.temperature = t }
}

// WithMaxTokens caps the completion length. Zero leaves it to the backend.
func WithMaxTokens(n int) InvokerOption {
	return func(inv *Invoker) { inv.maxTokens = n }
}

// WithJSONMode asks backends that support it for a JSON-only response.
func WithJSONMode(enabled bool) InvokerOption {
	return func(inv *Invoker) { inv.jsonMode = enabled }
}

// NewInvoker wraps backend.
func NewInvoker(backend Backend, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		backend:     backend,
		policy:      DefaultRetryPolicy(),
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(inv)
		}
	}
	inv.logger = logging.NewComponentLogger(inv.logger, "llm")
	if backend != nil {
		inv.logger = inv.logger.With(
			logging.String(logging.FieldProvider, backend.Name()),
			logging.String(logging.FieldModel, backend.Model()),
		)
	}
	inv.temperature = ValidateTemperature(inv.logger, inv.temperature)
	return inv
}

// Backend returns the wrapped backend.
func (inv *Invoker) Backend() Backend { return inv.backend }

// Temperature returns the effective sampling temperature.
func (inv *Invoker) Temperature() float64 { return inv.temperature }

// Invoke sends rendered to the backend with format instructions for schema
// appended, and returns the reply with any <think> blocks removed.
func (inv *Invoker) Invoke(ctx context.Context, rendered prompt.Rendered, schema Schema) (string, error) {
	if inv == nil || inv.backend == nil {
		return "", fmt.Errorf("llm invoke: backend not configured")
	}
	req := Request{
		System:      rendered.System,
		User:        appendFormatInstructions(rendered.User, schema),
		Temperature: inv.temperature,
		MaxTokens:   inv.maxTokens,
		JSONMode:    inv.jsonMode,
	}
	logger := logging.WithContext(ctx, inv.logger)
	schemaName := ""
	if schema != nil {
		schemaName = schema.Name()
	}

	maxAttempts := inv.policy.attempts()
	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("llm invoke %s: %w", inv.backend.Name(), err)
		}
		start := time.Now()
		raw, err := inv.backend.Complete(ctx, req)
		if err == nil {
			thinking, cleaned := ParseThinking(raw)
			if thinking != "" {
				logger.Debug("stripped reasoning block from model reply",
					logging.Int("thinking_chars", len(thinking)),
				)
			}
			if cleaned != "" {
				logger.Debug("model call completed",
					logging.String(logging.FieldEventType, "backend_call_complete"),
					logging.String("schema", schemaName),
					logging.Int(logging.FieldAttempt, attempt),
					logging.Duration("duration", time.Since(start)),
					logging.Int("response_chars", len(cleaned)),
				)
				return cleaned, nil
			}
			err = &BackendError{Provider: inv.backend.Name(), Op: "complete", Transient: true, Err: errEmptyContent}
		}
		lastErr = err

		delay, retry := inv.policy.retryDelay(ctx, err, attempt)
		if !retry || attempt >= maxAttempts {
			break
		}
		logging.WarnWithContext(logger, "model call failed; retrying", "backend_retry",
			logging.String("schema", schemaName),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Duration("retry_in", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check provider status, quota, and network connectivity"),
			logging.String(logging.FieldImpact, "generation is delayed until the backend responds"),
		)
		if err := sleepContext(ctx, delay, inv.sleeper); err != nil {
			return "", fmt.Errorf("llm invoke %s: %w", inv.backend.Name(), err)
		}
	}
	return "", fmt.Errorf("llm invoke %s: failed after %d attempt(s): %w", inv.backend.Name(), attempt, lastErr)
}

func appendFormatInstructions(user string, schema Schema) string {
	if schema == nil {
		return user
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(user, "\n"))
	b.WriteString("\n\n")
	b.WriteString(formatInstruction)
	// Templates usually render the schema themselves; it is sent once.
	if desc := strings.TrimSpace(schema.Description()); desc != "" && !strings.Contains(user, desc) {
		b.WriteString("\n")
		b.WriteString(desc)
	}
	return b.String()
}

package podcast

import (
	"errors"
	"fmt"
	"strings"

	"podscript/internal/services"
)

var (
	// ErrSchemaValidation matches every validation failure of model output.
	ErrSchemaValidation = errors.New("schema validation failed")
	// ErrUnknownSpeaker matches turns attributed to a speaker outside the episode.
	ErrUnknownSpeaker = errors.New("unknown speaker")
)

// SchemaValidationError names the first field of a model response that failed
// validation.
type SchemaValidationError struct {
	Field  string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema validation: %s", e.Reason)
	}
	return fmt.Sprintf("schema validation: %s: %s", e.Field, e.Reason)
}

// Is lets callers match on ErrSchemaValidation and the generic validation marker.
func (e *SchemaValidationError) Is(target error) bool {
	return target == ErrSchemaValidation || target == services.ErrValidation
}

// UnknownSpeakerError is the schema violation raised when a turn names a
// speaker outside the configured set. It also satisfies errors.As for
// *SchemaValidationError.
type UnknownSpeakerError struct {
	Field   string
	Speaker string
	Known   []string
}

func (e *UnknownSpeakerError) Error() string {
	return fmt.Sprintf("schema validation: %s: unknown speaker %q (expected one of %s)", e.Field, e.Speaker, strings.Join(e.Known, ", "))
}

func (e *UnknownSpeakerError) Is(target error) bool {
	return target == ErrUnknownSpeaker || target == ErrSchemaValidation || target == services.ErrValidation
}

func (e *UnknownSpeakerError) As(target any) bool {
	if t, ok := target.(**SchemaValidationError); ok {
		*t = &SchemaValidationError{
			Field:  e.Field,
			Reason: fmt.Sprintf("unknown speaker %q", e.Speaker),
		}
		return true
	}
	return false
}

func fieldError(field, format string, args ...any) *SchemaValidationError {
	return &SchemaValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

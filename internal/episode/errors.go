package episode

import (
	"errors"
	"fmt"
)

var (
	// ErrOutlineGeneration matches every *OutlineGenerationError.
	ErrOutlineGeneration = errors.New("outline generation failed")
	// ErrSegmentGeneration matches every *SegmentGenerationError.
	ErrSegmentGeneration = errors.New("segment generation failed")
)

// OutlineGenerationError reports that the outline stage gave up. Attempts
// counts model invocations, including amended-prompt retries.
type OutlineGenerationError struct {
	Attempts int
	Err      error
}

func (e *OutlineGenerationError) Error() string {
	return fmt.Sprintf("outline: generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *OutlineGenerationError) Unwrap() error { return e.Err }

func (e *OutlineGenerationError) Is(target error) bool { return target == ErrOutlineGeneration }

// SegmentGenerationError reports that one transcript segment gave up.
type SegmentGenerationError struct {
	Index    int
	Name     string
	Attempts int
	Err      error
}

func (e *SegmentGenerationError) Error() string {
	return fmt.Sprintf("transcript: segment %d (%s) failed after %d attempt(s): %v", e.Index, e.Name, e.Attempts, e.Err)
}

func (e *SegmentGenerationError) Unwrap() error { return e.Err }

func (e *SegmentGenerationError) Is(target error) bool { return target == ErrSegmentGeneration }

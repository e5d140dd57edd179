// Package podcast defines the episode data model (speakers, outline segments,
// transcript turns) and the validator that turns raw model output into typed
// values.
//
// Parsing is permissive about wrappers: code fences, surrounding prose, and
// <think> reasoning blocks are stripped before decoding. Validation is strict:
// required keys, JSON types, the segment size enum, exact segment counts, and
// speaker membership are all checked, and the first violation is reported as
// a *SchemaValidationError naming the offending field. Decoded string values
// are never trimmed or case folded.
package podcast

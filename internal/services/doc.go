// Package services defines shared utilities consumed by the generation stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, segment indexes, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent run statuses (failed vs partial).
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services

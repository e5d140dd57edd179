// Package logging assembles structured slog loggers and formatting helpers used
// across podscript.
//
// It owns the console and JSON handlers, mirrors terminal output into a JSON
// log file under the configured log directory, and exposes context-aware
// helpers so generation code can tag log lines with run IDs, stages, and
// segment indexes. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging

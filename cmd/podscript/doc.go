// Package main hosts the podscript CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into episode runs,
// run-history queries, profile inspection, preflight checks, and
// configuration scaffolding. Configuration, logging, tracing, and the
// history store are resolved once per invocation in commandContext so
// subcommands only describe what they do.
//
// Keep this package thin: generation, validation, and persistence live in
// internal packages; commands here collect flags and render results.
package main

// Package preflight provides readiness checks for the directories, state
// store, profile catalog, and model backends podscript depends on.
//
// The CLI "podscript check" command runs RunAll and prints one row per
// Result. Identical outline and transcript backends are probed once.
package preflight

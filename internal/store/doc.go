// Package store keeps episode run history in a SQLite database under
// paths.state_dir.
//
// Each run is a single row in the episodes table keyed by its run id. The
// episode runner creates the row when an outline is requested, updates state
// and segment progress on every transition, and finally marks the run
// complete, partial, or failed. The CLI reads the same rows for
// `podscript episodes`.
//
// The schema is embedded (schema.sql) and versioned. A database created by a
// different schema version is rejected with ErrSchemaMismatch instead of
// being migrated in place.
//
// Writes retry briefly on SQLITE_BUSY so concurrent batch episodes can share
// one database file.
package store

// Package config loads, normalizes, and validates podscript configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a local .env file, and honours
// environment fallbacks such as OPENAI_API_KEY or PODCAST_RETRY_MAX_ATTEMPTS.
// The Config type centralizes every knob the CLI and generation pipeline
// need, so backend credentials, retry policy, and output locations are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical language tags, and clear validation errors.
package config

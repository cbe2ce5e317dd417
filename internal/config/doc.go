// Package config loads, normalizes, and validates coursepipe configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a local .env file, and honours
// environment fallbacks for object storage credentials. The Config type
// centralizes every knob the CLI and pipeline need so runtime directories,
// tool binaries, and storage endpoints are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

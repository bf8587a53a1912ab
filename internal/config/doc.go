// Package config loads, normalizes, and validates soundcheck configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, overlays a project-level .env file, and honours
// the environment switches the browser suite already exports (REF_VERSION,
// FINGERPRINT_STRICT, SKIP_AUDIO). The Config type centralizes every knob the
// task gateway, decoder, and CLI need so paths and thresholds are resolved in
// one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

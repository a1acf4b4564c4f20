// Package config loads, normalizes, and validates veritas configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GEMINI_API_KEY. The Config type centralizes every knob the CLI, the HTTP
// server, and the scoring pipeline need, including the verdict thresholds,
// which are heuristic and have never been calibrated against labelled data.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

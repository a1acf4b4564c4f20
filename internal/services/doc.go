// Package services defines shared utilities consumed by the analysis pipeline
// and its external integrations.
//
// It provides context helpers that stamp canonical URLs, stage names, and
// correlation identifiers for logging, plus the error markers and Wrap helper
// that let the CLI and HTTP layers classify failures without string matching.
package services

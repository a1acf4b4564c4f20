// Package logging assembles the structured slog loggers used across veritas.
//
// It owns the console and JSON handlers, level parsing, and the fan-out that
// mirrors terminal output into the log directory. Context helpers tag lines
// with the request ID, canonical URL, and pipeline stage carried on the
// context so pipeline code does not have to thread those fields by hand.
package logging

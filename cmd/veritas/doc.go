// Command veritas scores videos for signs of synthetic generation.
//
// It downloads a video (or reads a local file), samples frames, computes an
// artifact score and a motion score, applies the configured verdict policy,
// and stores the result in a local SQLite cache. The serve subcommand exposes
// the same pipeline over HTTP.
package main

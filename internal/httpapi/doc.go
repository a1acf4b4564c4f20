// Package httpapi exposes the analysis pipeline, the record store, and
// standalone text verification over a small JSON HTTP API. Failures are
// reported as {"error": "..."} bodies with a status code derived from the
// services error classification.
package httpapi

// Package factcheck asks Gemini whether a transcript's claims hold up.
//
// A Verifier owns one genai client per configured API key and rotates
// through them with a keypool. Requests are paced by a shared rate limiter
// and retried with backoff on throttling or server errors. Responses are
// decoded leniently: code fences and surrounding prose are stripped before
// the JSON payload is parsed.
package factcheck

// Package pipeline runs an end-to-end analysis: canonicalise the URL, serve
// a cached record when one exists, otherwise acquire the video, sample and
// score frames, decide a verdict, run the optional transcription and
// fact-check collaborators, and persist the result.
//
// Concurrent requests for the same canonical URL share a single run.
// Collaborator failures are logged and leave their fields empty; they never
// change the verdict.
package pipeline

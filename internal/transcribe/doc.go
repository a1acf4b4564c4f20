// Package transcribe runs faster-whisper (via the whisper-ctranslate2 CLI)
// over a video's audio track and renders the result as plain text and SRT.
//
// A Service is built once at start-up and shared; it holds no model state of
// its own, the CLI loads the model per invocation.
package transcribe

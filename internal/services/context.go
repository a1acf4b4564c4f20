package services

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	canonicalURLKey
	videoIDKey
	stageKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithRequestID annotates ctx with the identifier shared by every log line
// of one analysis.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, requestIDKey)
}

// WithCanonicalURL annotates ctx with the canonical URL under analysis.
func WithCanonicalURL(ctx context.Context, url string) context.Context {
	return withValue(ctx, canonicalURLKey, url)
}

func CanonicalURLFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, canonicalURLKey)
}

// WithVideoID annotates ctx with the platform video id once it is known.
func WithVideoID(ctx context.Context, id string) context.Context {
	return withValue(ctx, videoIDKey, id)
}

func VideoIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, videoIDKey)
}

// WithStage annotates ctx with the pipeline stage (acquire, sample, score,
// transcribe, factcheck, persist).
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, stageKey)
}

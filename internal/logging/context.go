package logging

import (
	"context"
	"log/slog"

	"veritas/internal/services"
)

const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldCanonicalURL = "canonical_url"
	FieldVideoID      = "video_id"
	FieldStage        = "stage"
	FieldEventType    = "event_type"
	FieldErrorHint    = "error_hint"
	FieldImpact       = "impact"
)

// ContextFields returns the correlation attributes stored on ctx by the
// services context helpers.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	lookups := []struct {
		key string
		get func(context.Context) (string, bool)
	}{
		{FieldRequestID, services.RequestIDFromContext},
		{FieldCanonicalURL, services.CanonicalURLFromContext},
		{FieldVideoID, services.VideoIDFromContext},
		{FieldStage, services.StageFromContext},
	}
	fields := make([]Attr, 0, len(lookups))
	for _, l := range lookups {
		if value, ok := l.get(ctx); ok {
			fields = append(fields, slog.String(l.key, value))
		}
	}
	return fields
}

// WithContext returns logger extended with ContextFields(ctx).
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(args(fields)...)
}

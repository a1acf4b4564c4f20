package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"veritas/internal/cache"
	"veritas/internal/logging"
	"veritas/internal/services"
)

// VerificationStore records text verifications.
type VerificationStore interface {
	InsertVerification(ctx context.Context, v cache.Verification) (*cache.Verification, error)
}

// TextChecker fact-checks free text and records every result.
type TextChecker struct {
	checker FactChecker
	store   VerificationStore
	logger  *slog.Logger
}

// NewTextChecker builds a TextChecker. A nil checker means fact checking is
// disabled and VerifyText fails with a configuration error.
func NewTextChecker(checker FactChecker, store VerificationStore, logger *slog.Logger) *TextChecker {
	return &TextChecker{
		checker: checker,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "verify"),
	}
}

// Enabled reports whether a fact checker is configured.
func (t *TextChecker) Enabled() bool {
	return t != nil && t.checker != nil
}

// VerifyText checks text and returns the stored verification, including the
// raw model reply.
func (t *TextChecker) VerifyText(ctx context.Context, text string) (*cache.Verification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "verify", "input", "text is required", nil)
	}
	if !t.Enabled() {
		return nil, services.Wrap(services.ErrConfiguration, "verify", "factcheck", "fact checking is disabled", nil)
	}
	ctx = withRequestID(services.WithStage(ctx, "factcheck"))
	logger := logging.WithContext(ctx, t.logger)
	logger.Info("verification started",
		logging.String(logging.FieldEventType, "verification_started"),
		logging.Int("characters", len(text)),
	)

	result, err := t.checker.Verify(ctx, text)
	if err != nil {
		if services.Classify(err) == services.CategoryInternal {
			err = services.Wrap(services.ErrExternalTool, "verify", "factcheck", "", err)
		}
		return nil, err
	}

	stored, err := t.store.InsertVerification(services.WithStage(ctx, "persist"), cache.Verification{
		InputText:        text,
		Accuracy:         result.Accuracy,
		AccuracyReason:   result.AccuracyReason,
		Reason:           result.Reason,
		URLs:             result.URLs,
		RawModelResponse: result.Raw,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "persist", "insert verification", "", err)
	}
	logger.Info("verification complete",
		logging.String(logging.FieldEventType, "verification_complete"),
		logging.String("verification_id", stored.ID),
		logging.String("accuracy", stored.Accuracy),
		logging.Int("sources", len(stored.URLs)),
	)
	return stored, nil
}

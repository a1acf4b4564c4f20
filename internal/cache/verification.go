package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Verification is one stored fact-check of free text.
type Verification struct {
	ID               string    `json:"id"`
	InputText        string    `json:"input_text"`
	Accuracy         string    `json:"accuracy"`
	AccuracyReason   string    `json:"accuracy_reason,omitempty"`
	Reason           string    `json:"reason"`
	URLs             []string  `json:"urls"`
	RawModelResponse string    `json:"raw_model_response,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

const verificationColumns = "id, input_text, accuracy, accuracy_reason, reason, urls_json, raw_model_response, created_at"

// InsertVerification stores v under a fresh id and returns the stored row.
func (s *Store) InsertVerification(ctx context.Context, v Verification) (*Verification, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(v.InputText) == "" {
		return nil, errors.New("insert verification: input text is required")
	}
	urlsJSON, err := json.Marshal(nonNilStrings(v.URLs))
	if err != nil {
		return nil, fmt.Errorf("marshal verification urls: %w", err)
	}
	query := `INSERT INTO verifications (` + verificationColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING ` + verificationColumns
	args := []any{
		uuid.NewString(),
		v.InputText,
		v.Accuracy,
		nullableString(v.AccuracyReason),
		v.Reason,
		string(urlsJSON),
		nullableString(v.RawModelResponse),
		s.now().UTC().UnixNano(),
	}

	var stored *Verification
	err = retryOnBusy(ctx, func() error {
		var scanErr error
		stored, scanErr = scanVerification(s.db.QueryRowContext(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		return nil, fmt.Errorf("insert verification: %w", err)
	}
	return stored, nil
}

// GetVerification fetches a verification by id. A miss returns nil, nil.
func (s *Store) GetVerification(ctx context.Context, id string) (*Verification, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+verificationColumns+` FROM verifications WHERE id = ?`, id)
	v, err := scanVerification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verification: %w", err)
	}
	return v, nil
}

func scanVerification(scanner interface{ Scan(dest ...any) error }) (*Verification, error) {
	var (
		v              Verification
		accuracyReason sql.NullString
		urlsJSON       string
		raw            sql.NullString
		createdNanos   int64
	)
	if err := scanner.Scan(&v.ID, &v.InputText, &v.Accuracy, &accuracyReason, &v.Reason, &urlsJSON, &raw, &createdNanos); err != nil {
		return nil, err
	}
	v.AccuracyReason = accuracyReason.String
	v.RawModelResponse = raw.String
	if err := json.Unmarshal([]byte(urlsJSON), &v.URLs); err != nil {
		return nil, fmt.Errorf("verification %s: decode urls: %w", v.ID, err)
	}
	v.CreatedAt = time.Unix(0, createdNanos).UTC()
	return &v, nil
}

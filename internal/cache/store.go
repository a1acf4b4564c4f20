package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"veritas/internal/config"
	"veritas/internal/verdict"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Older databases must
// be deleted; analyses are reproducible.
const schemaVersion = 2

// ErrSchemaMismatch indicates the database was created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrConflict is returned when a write would give a video id to a second
// record, for example a URL whose stored row differs from the row that
// already owns the video id.
var ErrConflict = errors.New("record conflicts with an existing analysis")

const (
	sqliteBusyCode          = 5
	sqliteConstraintCode    = 19
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const recordColumns = "id, canonical_url, video_id, original_url, local_path, title, artifact_score, motion_score, verdict, policy, sampled_frames, transcript, subtitle_srt, duration_seconds, accuracy, accuracy_reason, reason, source_urls_json, raw_fact_check, created_at, updated_at"

// Store persists analysis records in SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or connects to the analysis database under the data directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	// busy_timeout goes through the DSN so every pooled connection gets it.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Lookup finds a record by canonical URL, falling back to the video id when
// one is supplied. A miss returns nil, nil.
func (s *Store) Lookup(ctx context.Context, canonicalURL, videoID string) (*Record, error) {
	ctx = ensureContext(ctx)
	canonicalURL = strings.TrimSpace(canonicalURL)
	videoID = strings.TrimSpace(videoID)

	if canonicalURL != "" {
		rec, err := s.queryOne(ctx, `SELECT `+recordColumns+` FROM analyses WHERE canonical_url = ?`, canonicalURL)
		if err != nil {
			return nil, fmt.Errorf("lookup by url: %w", err)
		}
		if rec != nil {
			return rec, nil
		}
	}
	if videoID == "" {
		return nil, nil
	}
	rec, err := s.queryOne(ctx, `SELECT `+recordColumns+` FROM analyses WHERE video_id = ?`, videoID)
	if err != nil {
		return nil, fmt.Errorf("lookup by video id: %w", err)
	}
	return rec, nil
}

// Get fetches a record by its id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.queryOne(ensureContext(ctx), `SELECT `+recordColumns+` FROM analyses WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// List returns the most recently updated records first. A limit of zero or
// less returns every record.
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + recordColumns + ` FROM analyses ORDER BY updated_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM analyses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Upsert inserts rec or overwrites the record already stored for its
// canonical URL (or, failing that, its video id) in a single statement.
// The stored id and created_at survive the overwrite and updated_at always
// moves forward. The returned record is the stored snapshot.
func (s *Store) Upsert(ctx context.Context, rec Record) (*Record, error) {
	ctx = ensureContext(ctx)
	rec.CanonicalURL = strings.TrimSpace(rec.CanonicalURL)
	if rec.CanonicalURL == "" {
		return nil, errors.New("upsert: canonical url is required")
	}
	if !rec.Verdict.Valid() {
		return nil, fmt.Errorf("upsert: invalid verdict %q", rec.Verdict)
	}
	urlsJSON, err := json.Marshal(nonNilStrings(rec.SourceURLs))
	if err != nil {
		return nil, fmt.Errorf("marshal source urls: %w", err)
	}

	now := s.now().UTC().UnixNano()
	const set = `
            video_id = COALESCE(excluded.video_id, analyses.video_id),
            original_url = excluded.original_url,
            local_path = excluded.local_path,
            title = excluded.title,
            artifact_score = excluded.artifact_score,
            motion_score = excluded.motion_score,
            verdict = excluded.verdict,
            policy = excluded.policy,
            sampled_frames = excluded.sampled_frames,
            transcript = excluded.transcript,
            subtitle_srt = excluded.subtitle_srt,
            duration_seconds = excluded.duration_seconds,
            accuracy = excluded.accuracy,
            accuracy_reason = excluded.accuracy_reason,
            reason = excluded.reason,
            source_urls_json = excluded.source_urls_json,
            raw_fact_check = excluded.raw_fact_check,
            updated_at = MAX(excluded.updated_at, analyses.updated_at + 1)`
	query := `INSERT INTO analyses (` + recordColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(canonical_url) DO UPDATE SET` + set + `
        ON CONFLICT(video_id) WHERE video_id IS NOT NULL DO UPDATE SET` + set + `
        RETURNING ` + recordColumns

	args := []any{
		uuid.NewString(),
		rec.CanonicalURL,
		nullableString(rec.VideoID),
		nullableString(rec.OriginalURL),
		nullableString(rec.LocalPath),
		nullableString(rec.Title),
		rec.ArtifactScore,
		rec.MotionScore,
		string(rec.Verdict),
		rec.Policy,
		rec.SampledFrames,
		nullableString(rec.Transcript),
		nullableString(rec.SubtitleSRT),
		nullableFloat(rec.DurationSeconds),
		nullableString(rec.Accuracy),
		nullableString(rec.AccuracyReason),
		nullableString(rec.Reason),
		string(urlsJSON),
		nullableString(rec.RawFactCheck),
		now,
		now,
	}

	var stored *Record
	err = retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, args...)
		var scanErr error
		stored, scanErr = scanRecord(row)
		return scanErr
	})
	if isSQLiteConstraint(err) {
		return nil, fmt.Errorf("upsert %s: %w: %v", rec.CanonicalURL, ErrConflict, err)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert record: %w", err)
	}
	return stored, nil
}

func (s *Store) queryOne(ctx context.Context, query string, args ...any) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec            Record
		videoID        sql.NullString
		originalURL    sql.NullString
		localPath      sql.NullString
		title          sql.NullString
		verdictRaw     string
		transcript     sql.NullString
		subtitle       sql.NullString
		duration       sql.NullFloat64
		accuracy       sql.NullString
		accuracyReason sql.NullString
		reason         sql.NullString
		urlsJSON       sql.NullString
		rawFactCheck   sql.NullString
		createdNanos   int64
		updatedNanos   int64
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.CanonicalURL,
		&videoID,
		&originalURL,
		&localPath,
		&title,
		&rec.ArtifactScore,
		&rec.MotionScore,
		&verdictRaw,
		&rec.Policy,
		&rec.SampledFrames,
		&transcript,
		&subtitle,
		&duration,
		&accuracy,
		&accuracyReason,
		&reason,
		&urlsJSON,
		&rawFactCheck,
		&createdNanos,
		&updatedNanos,
	); err != nil {
		return nil, err
	}

	v, err := verdict.Parse(verdictRaw)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.Verdict = v
	rec.VideoID = videoID.String
	rec.OriginalURL = originalURL.String
	rec.LocalPath = localPath.String
	rec.Title = title.String
	rec.Transcript = transcript.String
	rec.SubtitleSRT = subtitle.String
	rec.DurationSeconds = duration.Float64
	rec.Accuracy = accuracy.String
	rec.AccuracyReason = accuracyReason.String
	rec.Reason = reason.String
	rec.RawFactCheck = rawFactCheck.String
	if urlsJSON.Valid && urlsJSON.String != "" {
		if err := json.Unmarshal([]byte(urlsJSON.String), &rec.SourceURLs); err != nil {
			return nil, fmt.Errorf("record %s: decode source urls: %w", rec.ID, err)
		}
	}
	rec.CreatedAt = time.Unix(0, createdNanos).UTC()
	rec.UpdatedAt = time.Unix(0, updatedNanos).UTC()
	return &rec, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isSQLiteConstraint(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteConstraintCode {
		return true
	}
	return strings.Contains(err.Error(), "constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableFloat(value float64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

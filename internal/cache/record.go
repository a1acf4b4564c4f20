package cache

import (
	"slices"
	"time"

	"veritas/internal/verdict"
)

// Record is one stored analysis. At most one record exists per canonical URL.
type Record struct {
	ID              string          `json:"id"`
	CanonicalURL    string          `json:"canonical_url"`
	VideoID         string          `json:"video_id,omitempty"`
	OriginalURL     string          `json:"original_url,omitempty"`
	LocalPath       string          `json:"local_path,omitempty"`
	Title           string          `json:"title,omitempty"`
	ArtifactScore   float64         `json:"artifact_score"`
	MotionScore     float64         `json:"motion_score"`
	Verdict         verdict.Verdict `json:"verdict"`
	Policy          string          `json:"policy"`
	SampledFrames   int             `json:"sampled_frames"`
	Transcript      string          `json:"transcript,omitempty"`
	SubtitleSRT     string          `json:"subtitle_srt,omitempty"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
	Accuracy        string          `json:"accuracy,omitempty"`
	AccuracyReason  string          `json:"accuracy_reason,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	SourceURLs      []string        `json:"source_urls,omitempty"`
	RawFactCheck    string          `json:"raw_fact_check,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers never share slices with the cache.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.SourceURLs = slices.Clone(r.SourceURLs)
	return &out
}

// VerdictLabel returns the human-readable verdict.
func (r *Record) VerdictLabel() string {
	if r == nil {
		return ""
	}
	return r.Verdict.Label()
}

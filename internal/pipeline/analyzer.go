package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"veritas/internal/acquire"
	"veritas/internal/cache"
	"veritas/internal/canonical"
	"veritas/internal/config"
	"veritas/internal/factcheck"
	"veritas/internal/frames"
	"veritas/internal/logging"
	"veritas/internal/scoring"
	"veritas/internal/services"
	"veritas/internal/transcribe"
	"veritas/internal/verdict"
)

// ErrTooFewSamples is returned when decoding yields fewer frames than
// sampling.min_frames.
var ErrTooFewSamples = errors.New("too few sampled frames")

// Fetcher makes a remote video available locally.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (acquire.Result, error)
}

// FrameSampler decodes every stride-th frame of a file.
type FrameSampler interface {
	Sample(ctx context.Context, path string, stride int) ([]frames.Frame, error)
}

// Store reads and writes analysis records.
type Store interface {
	Lookup(ctx context.Context, canonicalURL, videoID string) (*cache.Record, error)
	Upsert(ctx context.Context, rec cache.Record) (*cache.Record, error)
}

// Transcriber produces a transcript for a local video.
type Transcriber interface {
	Transcribe(ctx context.Context, videoPath string) (transcribe.Result, error)
}

// FactChecker verifies the claims in a transcript.
type FactChecker interface {
	Verify(ctx context.Context, transcript string) (factcheck.Result, error)
}

// Dependencies are the collaborators an Analyzer is built from. Transcriber
// and FactChecker are optional.
type Dependencies struct {
	Fetcher     Fetcher
	Sampler     FrameSampler
	Policy      verdict.Policy
	Store       Store
	Transcriber Transcriber
	FactChecker FactChecker
	Logger      *slog.Logger
}

// Request asks for the analysis of a URL. Force skips the cache lookup.
type Request struct {
	URL   string `json:"url"`
	Force bool   `json:"force"`
}

// FileRequest asks for the analysis of an already-downloaded file. URL
// defaults to the file:// form of the absolute path.
type FileRequest struct {
	Path    string
	URL     string
	VideoID string
	Title   string
}

// Response carries the stored record and whether it came from the cache.
type Response struct {
	Record *cache.Record `json:"record"`
	Cached bool          `json:"cached"`
}

// Scores holds the signals computed from a frame sequence. HasMotion is
// false when motion could not be computed.
type Scores struct {
	Artifact  float64
	Motion    float64
	HasMotion bool
	Frames    int
}

// Analyzer runs analyses. It is safe for concurrent use.
type Analyzer struct {
	deps      Dependencies
	scorer    scoring.Scorer
	stride    int
	minFrames int
	timeout   time.Duration
	logger    *slog.Logger
	flights   singleflight.Group
}

// New validates deps and builds an Analyzer.
func New(cfg *config.Config, deps Dependencies) (*Analyzer, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Sampler == nil:
		return nil, errors.New("pipeline: frame sampler is required")
	case deps.Policy == nil:
		return nil, errors.New("pipeline: verdict policy is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	}
	minFrames := cfg.Sampling.MinFrames
	if minFrames < 2 {
		minFrames = 2
	}
	return &Analyzer{
		deps:      deps,
		scorer:    scoring.Scorer{Workers: cfg.Pipeline.ScoringWorkers},
		stride:    cfg.Sampling.Stride,
		minFrames: minFrames,
		timeout:   cfg.PipelineTimeout(),
		logger:    logging.NewComponentLogger(deps.Logger, "pipeline"),
	}, nil
}

// Analyze returns the record for req.URL, computing and storing it when no
// cached record exists or req.Force is set.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (Response, error) {
	canon, err := canonical.Canonicalize(req.URL)
	if err != nil {
		return Response{}, services.Wrap(services.ErrValidation, "analyze", "canonicalize", "invalid url", err)
	}
	ctx = withRequestID(services.WithCanonicalURL(ctx, canon.URL))
	logger := logging.WithContext(ctx, a.logger)

	if !req.Force {
		rec, err := a.deps.Store.Lookup(ctx, canon.URL, canon.VideoID)
		if err != nil {
			return Response{}, services.Wrap(services.ErrTransient, "analyze", "cache lookup", canon.URL, err)
		}
		if rec != nil {
			logger.Info("analysis served from cache",
				logging.String(logging.FieldEventType, "cache_hit"),
				logging.String("verdict", string(rec.Verdict)),
			)
			return Response{Record: rec, Cached: true}, nil
		}
	}

	rec, err := a.shared(ctx, canon.URL, func(runCtx context.Context) (*cache.Record, error) {
		return a.analyzeURL(runCtx, req.URL, canon)
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Record: rec}, nil
}

// AnalyzeFile scores a local file and stores the result under req.URL.
func (a *Analyzer) AnalyzeFile(ctx context.Context, req FileRequest) (Response, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return Response{}, services.Wrap(services.ErrValidation, "analyze", "input", "file path required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Response{}, services.Wrap(services.ErrValidation, "analyze", "resolve path", path, err)
	}
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		rawURL = "file://" + filepath.ToSlash(abs)
	}
	canon, err := canonical.Canonicalize(rawURL)
	if err != nil {
		return Response{}, services.Wrap(services.ErrValidation, "analyze", "canonicalize", "invalid url", err)
	}
	videoID := strings.TrimSpace(req.VideoID)
	if videoID == "" {
		videoID = canon.VideoID
	}
	ctx = withRequestID(services.WithCanonicalURL(ctx, canon.URL))
	ctx = services.WithVideoID(ctx, videoID)

	rec, err := a.shared(ctx, canon.URL, func(runCtx context.Context) (*cache.Record, error) {
		return a.analyzeLocal(runCtx, acquire.Result{
			OriginalURL: rawURL,
			URL:         canon.URL,
			Path:        abs,
			VideoID:     videoID,
			Title:       strings.TrimSpace(req.Title),
		})
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Record: rec}, nil
}

// shared runs fn once per key for all concurrent callers. The run is
// detached from any single caller's cancellation and bounded by the pipeline
// timeout; each caller still stops waiting when its own context ends.
func (a *Analyzer) shared(ctx context.Context, key string, fn func(context.Context) (*cache.Record, error)) (*cache.Record, error) {
	ch := a.flights.DoChan(key, func() (any, error) {
		runCtx := context.WithoutCancel(ctx)
		if a.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, a.timeout)
			defer cancel()
		}
		rec, err := fn(runCtx)
		if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
			err = services.Wrap(services.ErrTimeout, "analyze", "pipeline", fmt.Sprintf("exceeded %s", a.timeout), err)
		}
		return rec, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		rec, _ := res.Val.(*cache.Record)
		return rec.Clone(), nil
	}
}

func (a *Analyzer) analyzeURL(ctx context.Context, rawURL string, canon canonical.Result) (*cache.Record, error) {
	stageCtx := services.WithStage(ctx, "acquire")
	logger := logging.WithContext(stageCtx, a.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	fetched, err := a.deps.Fetcher.Fetch(stageCtx, rawURL)
	if err != nil {
		return nil, err
	}
	if fetched.URL == "" {
		fetched.URL = canon.URL
	}
	if fetched.VideoID == "" {
		fetched.VideoID = canon.VideoID
	}
	return a.analyzeLocal(services.WithVideoID(ctx, fetched.VideoID), fetched)
}

func (a *Analyzer) analyzeLocal(ctx context.Context, src acquire.Result) (*cache.Record, error) {
	started := time.Now()
	seq, err := a.sample(ctx, src.Path)
	if err != nil {
		return nil, err
	}

	scoreCtx := services.WithStage(ctx, "score")
	scores, err := a.ScoreFrames(scoreCtx, seq)
	if err != nil {
		return nil, err
	}
	decided := a.deps.Policy.Decide(scores.Artifact, scores.Motion)
	logging.WithContext(scoreCtx, a.logger).Info("scores computed",
		logging.String(logging.FieldEventType, "scores"),
		logging.Scores(scores.Artifact, scores.Motion),
		logging.Int("frames", scores.Frames),
		logging.String("verdict", string(decided)),
		logging.String("policy", a.deps.Policy.Name()),
	)

	rec := cache.Record{
		CanonicalURL:    src.URL,
		VideoID:         src.VideoID,
		OriginalURL:     src.OriginalURL,
		LocalPath:       src.Path,
		Title:           src.Title,
		ArtifactScore:   scores.Artifact,
		MotionScore:     scores.Motion,
		Verdict:         decided,
		Policy:          a.deps.Policy.Name(),
		SampledFrames:   scores.Frames,
		DurationSeconds: src.DurationSeconds,
	}
	a.enrich(ctx, &rec)

	stored, err := a.deps.Store.Upsert(services.WithStage(ctx, "persist"), rec)
	if errors.Is(err, cache.ErrConflict) {
		return nil, services.Wrap(services.ErrValidation, "persist", "upsert", rec.CanonicalURL, err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "persist", "upsert", rec.CanonicalURL, err)
	}
	logging.WithContext(ctx, a.logger).Info("analysis complete",
		logging.String(logging.FieldEventType, "analysis_complete"),
		logging.String("record_id", stored.ID),
		logging.String("verdict", string(stored.Verdict)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return stored, nil
}

func (a *Analyzer) sample(ctx context.Context, path string) ([]frames.Frame, error) {
	stageCtx := services.WithStage(ctx, "sample")
	seq, err := a.deps.Sampler.Sample(stageCtx, path, a.stride)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, services.Wrap(services.ErrTimeout, "sample", "decode", path, ctxErr)
		}
		var mediaErr *frames.MediaOpenError
		if errors.As(err, &mediaErr) || errors.Is(err, frames.ErrInvalidStride) {
			return nil, services.Wrap(services.ErrValidation, "sample", "open media", path, err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "sample", "decode", path, err)
	}
	if len(seq) < a.minFrames {
		return nil, services.Wrap(services.ErrValidation, "sample", "count", path,
			fmt.Errorf("%w: got %d, need at least %d", ErrTooFewSamples, len(seq), a.minFrames))
	}
	return seq, nil
}

// ScoreFrames computes the artifact score and then the motion score. When
// motion fails the returned Scores still carries the artifact score and the
// error is the motion error.
func (a *Analyzer) ScoreFrames(ctx context.Context, seq []frames.Frame) (Scores, error) {
	scores := Scores{Frames: len(seq)}
	artifact, err := a.scorer.ArtifactScore(ctx, seq)
	if err != nil {
		return Scores{Frames: len(seq)}, classifyScoringError("artifact", err)
	}
	scores.Artifact = artifact

	motion, err := a.scorer.MotionScore(ctx, seq)
	if err != nil {
		return scores, classifyScoringError("motion", err)
	}
	scores.Motion = motion
	scores.HasMotion = true
	return scores, nil
}

func classifyScoringError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return services.Wrap(services.ErrTimeout, "score", op, "", err)
	case errors.Is(err, scoring.ErrEmptyFrameSequence),
		errors.Is(err, scoring.ErrInsufficientFramesForMotion),
		errors.Is(err, scoring.ErrFrameSizeMismatch):
		return services.Wrap(services.ErrValidation, "score", op, "", err)
	default:
		return services.Wrap(services.ErrTransient, "score", op, "", err)
	}
}

// enrich runs the optional collaborators. Their failures are warnings.
func (a *Analyzer) enrich(ctx context.Context, rec *cache.Record) {
	if a.deps.Transcriber == nil {
		return
	}
	stageCtx := services.WithStage(ctx, "transcribe")
	logger := logging.WithContext(stageCtx, a.logger)
	transcript, err := a.deps.Transcriber.Transcribe(stageCtx, rec.LocalPath)
	if err != nil {
		logging.WarnWithContext(logger, "transcription failed", "transcription_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the whisper-ctranslate2 installation and model"),
			logging.String(logging.FieldImpact, "record stored without transcript"),
		)
		return
	}
	rec.Transcript = transcript.Text
	rec.SubtitleSRT = transcript.SRT
	if rec.DurationSeconds <= 0 {
		rec.DurationSeconds = transcript.DurationSeconds
	}

	if a.deps.FactChecker == nil || strings.TrimSpace(rec.Transcript) == "" {
		return
	}
	stageCtx = services.WithStage(ctx, "factcheck")
	logger = logging.WithContext(stageCtx, a.logger)
	checked, err := a.deps.FactChecker.Verify(stageCtx, rec.Transcript)
	if err != nil {
		logging.WarnWithContext(logger, "fact-check failed", "factcheck_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check factcheck api keys and quota"),
			logging.String(logging.FieldImpact, "record stored without fact-check"),
		)
		return
	}
	rec.Accuracy = checked.Accuracy
	rec.AccuracyReason = checked.AccuracyReason
	rec.Reason = checked.Reason
	rec.SourceURLs = checked.URLs
	rec.RawFactCheck = checked.Raw
}

func withRequestID(ctx context.Context) context.Context {
	if _, ok := services.RequestIDFromContext(ctx); ok {
		return ctx
	}
	return services.WithRequestID(ctx, uuid.NewString())
}

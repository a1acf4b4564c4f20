package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"veritas/internal/canonical"
	"veritas/internal/config"
	"veritas/internal/logging"
	"veritas/internal/services"
)

const (
	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	formatSelector   = "b[ext=mp4]/b"
	lockRetryDelay   = 250 * time.Millisecond
	videoExtension   = ".mp4"
	partialExtension = ".part"
)

// Result describes a locally available video.
type Result struct {
	OriginalURL     string
	URL             string
	Path            string
	VideoID         string
	Title           string
	DurationSeconds float64
	Cached          bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRunner replaces the command runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(f *Fetcher) {
		if r != nil {
			f.runner = r
		}
	}
}

// WithLogger sets the fetcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logging.NewComponentLogger(logger, "acquire")
	}
}

// Fetcher resolves URLs to local files via yt-dlp.
type Fetcher struct {
	binary      string
	videosDir   string
	cookiesPath string
	timeout     time.Duration
	runner      Runner
	logger      *slog.Logger
}

// New builds a Fetcher from the acquire and paths configuration.
func New(cfg *config.Config, opts ...Option) *Fetcher {
	f := &Fetcher{
		binary:      cfg.Acquire.Binary,
		videosDir:   cfg.Paths.VideosDir,
		cookiesPath: cfg.Acquire.CookiesPath,
		timeout:     time.Duration(cfg.Acquire.TimeoutSeconds) * time.Second,
		runner:      commandRunner{},
		logger:      logging.NewComponentLogger(nil, "acquire"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type metadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Ext      string  `json:"ext"`
}

// Fetch makes the video at rawURL available locally, downloading it only when
// no file for its id exists yet.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	canon, err := canonical.Canonicalize(rawURL)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "acquire", "canonicalize", "invalid url", err)
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	if err := os.MkdirAll(f.videosDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "acquire", "ensure videos dir", f.videosDir, err)
	}

	meta, err := f.metadata(ctx, canon.URL)
	if err != nil {
		return Result{}, err
	}
	videoID := sanitizeID(meta.ID)
	if videoID == "" {
		videoID = sanitizeID(canon.VideoID)
	}
	if videoID == "" {
		videoID = uuid.NewString()
	}

	result := Result{
		OriginalURL:     strings.TrimSpace(rawURL),
		URL:             canon.URL,
		VideoID:         videoID,
		Title:           strings.TrimSpace(meta.Title),
		DurationSeconds: meta.Duration,
		Path:            filepath.Join(f.videosDir, videoID+videoExtension),
	}

	lock := flock.New(filepath.Join(f.videosDir, "."+videoID+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "acquire", "lock", videoID, err)
	}
	if !locked {
		return Result{}, services.Wrap(services.ErrTransient, "acquire", "lock", videoID, errors.New("lock not acquired"))
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if fileExists(result.Path) {
		result.Cached = true
		f.logger.Debug("reusing downloaded video",
			logging.String(logging.FieldVideoID, videoID),
			logging.String("path", result.Path),
		)
		return result, nil
	}

	f.logger.Info("downloading video",
		logging.String(logging.FieldVideoID, videoID),
		logging.String(logging.FieldCanonicalURL, canon.URL),
	)
	started := time.Now()
	if _, err := f.runner.Run(ctx, f.binary, f.downloadArgs(canon.URL, videoID)); err != nil {
		if ctx.Err() != nil {
			return Result{}, services.Wrap(services.ErrTimeout, "acquire", "yt-dlp download", canon.URL, ctx.Err())
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "acquire", "yt-dlp download", canon.URL, err)
	}

	path, err := f.locateDownload(videoID)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "acquire", "locate download", videoID, err)
	}
	result.Path = path
	f.logger.Info("video downloaded",
		logging.String(logging.FieldVideoID, videoID),
		logging.String("path", path),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (f *Fetcher) metadata(ctx context.Context, url string) (metadata, error) {
	args := append(f.commonArgs(), "--dump-single-json", "--skip-download", url)
	out, err := f.runner.Run(ctx, f.binary, args)
	if err != nil {
		if ctx.Err() != nil {
			return metadata{}, services.Wrap(services.ErrTimeout, "acquire", "yt-dlp metadata", url, ctx.Err())
		}
		return metadata{}, services.Wrap(services.ErrExternalTool, "acquire", "yt-dlp metadata", url, err)
	}
	var meta metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return metadata{}, services.Wrap(services.ErrExternalTool, "acquire", "parse metadata", url, err)
	}
	return meta, nil
}

func (f *Fetcher) commonArgs() []string {
	args := []string{
		"--no-playlist",
		"--force-ipv4",
		"--no-progress",
		"--add-header", "User-Agent:" + userAgent,
	}
	if f.cookiesPath != "" && fileExists(f.cookiesPath) {
		args = append(args, "--cookies", f.cookiesPath)
	}
	return args
}

func (f *Fetcher) downloadArgs(url, videoID string) []string {
	template := filepath.Join(f.videosDir, videoID+".%(ext)s")
	return append(f.commonArgs(),
		"-f", formatSelector,
		"-o", template,
		url,
	)
}

// locateDownload finds the file yt-dlp wrote for videoID, preferring mp4.
func (f *Fetcher) locateDownload(videoID string) (string, error) {
	preferred := filepath.Join(f.videosDir, videoID+videoExtension)
	if fileExists(preferred) {
		return preferred, nil
	}
	matches, err := filepath.Glob(filepath.Join(f.videosDir, videoID+".*"))
	if err != nil {
		return "", err
	}
	for _, match := range matches {
		ext := filepath.Ext(match)
		if ext == partialExtension || ext == ".lock" || ext == ".ytdl" {
			continue
		}
		if fileExists(match) {
			return match, nil
		}
	}
	return "", fmt.Errorf("no file for %s in %s", videoID, f.videosDir)
}

func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, id)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

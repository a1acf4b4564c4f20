// Package canonical maps the many spellings of a video URL onto one key.
package canonical

import (
	"errors"
	"net/url"
	"strings"
)

// ErrEmptyURL is returned for blank input.
var ErrEmptyURL = errors.New("url is empty")

const youtubeWatchPrefix = "https://www.youtube.com/watch?v="

// Result is a canonicalised URL and, for recognised hosts, the video id.
type Result struct {
	URL     string
	VideoID string
}

// Canonicalize rewrites YouTube watch, short-link, embed, and shorts URLs to
// https://www.youtube.com/watch?v=<id>. Any other URL is returned trimmed,
// without a video id.
func Canonicalize(raw string) (Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{}, ErrEmptyURL
	}
	if id := YouTubeID(trimmed); id != "" {
		return Result{URL: youtubeWatchPrefix + id, VideoID: id}, nil
	}
	return Result{URL: trimmed}, nil
}

// YouTubeID extracts the video id from a YouTube URL, or returns "".
func YouTubeID(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	path := parsed.EscapedPath()

	if host == "youtu.be" || host == "www.youtu.be" {
		return firstSegment(strings.TrimPrefix(path, "/"))
	}
	if host != "youtube.com" && !strings.HasSuffix(host, ".youtube.com") {
		return ""
	}
	switch {
	case path == "/watch":
		return strings.TrimSpace(parsed.Query().Get("v"))
	case strings.HasPrefix(path, "/embed/"):
		return firstSegment(strings.TrimPrefix(path, "/embed/"))
	case strings.HasPrefix(path, "/shorts/"):
		return firstSegment(strings.TrimPrefix(path, "/shorts/"))
	}
	return ""
}

func firstSegment(path string) string {
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		path = path[:idx]
	}
	return strings.TrimSpace(path)
}

package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	NBReadFrames string `json:"nb_read_frames"`
	Duration     string `json:"duration"`
	StartTime    string `json:"start_time"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Options selects optional ffprobe behaviour.
type Options struct {
	// CountFrames decodes the first video stream to fill nb_read_frames.
	// Slow; use only when the container does not record nb_frames.
	CountFrames bool
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary, path string, opts Options) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	args := []string{"-v", "error", "-hide_banner"}
	if opts.CountFrames {
		args = append(args, "-count_frames", "-select_streams", "v:0")
	}
	args = append(args, "-show_format", "-show_streams", "-of", "json", "--", path)

	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return Parse(output)
}

// Parse decodes an ffprobe JSON document.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream, if any.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// FrameRate returns the stream's frames per second, preferring the average
// rate over the base rate. Returns 0 when neither is usable.
func (s Stream) FrameRate() float64 {
	for _, value := range []string{s.AvgFrameRate, s.RFrameRate} {
		if rate := parseRational(value); rate > 0 {
			return rate
		}
	}
	return 0
}

// StartSeconds returns the presentation time of the stream's first frame, or
// 0 when ffprobe did not report one.
func (s Stream) StartSeconds() float64 {
	start := parseFloat(s.StartTime)
	if math.IsNaN(start) || math.IsInf(start, 0) {
		return 0
	}
	return start
}

// FrameCount returns the number of frames in the stream. The container's
// nb_frames wins; nb_read_frames (from CountFrames) is the fallback. The
// boolean is false when neither is present.
func (s Stream) FrameCount() (int64, bool) {
	for _, value := range []string{s.NBFrames, s.NBReadFrames} {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || trimmed == "N/A" {
			continue
		}
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil && n >= 0 {
			return n, true
		}
	}
	return 0, false
}

// EstimatedFrameCount derives a frame count from duration and rate when the
// container carries neither nb_frames nor nb_read_frames.
func (r Result) EstimatedFrameCount(s Stream) int64 {
	duration := parseFloat(s.Duration)
	if duration <= 0 || math.IsNaN(duration) {
		duration = r.DurationSeconds()
	}
	rate := s.FrameRate()
	if duration <= 0 || math.IsNaN(duration) || rate <= 0 {
		return 0
	}
	return int64(math.Round(duration * rate))
}

func parseRational(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	if !found {
		f := parseFloat(value)
		if math.IsNaN(f) {
			return 0
		}
		return f
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if math.IsNaN(n) || math.IsNaN(d) || d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

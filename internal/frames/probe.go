package frames

import (
	"context"
	"errors"
	"fmt"
	"os"

	"veritas/internal/media/ffprobe"
)

// ErrNoVideoStream marks a container with no decodable video stream.
var ErrNoVideoStream = errors.New("no video stream")

// Info describes the first video stream of a file.
type Info struct {
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int64
	Duration   float64
	// StartTime is the presentation time of the first frame in seconds.
	StartTime float64
}

// Probe inspects path with ffprobe. When the container does not record a
// frame count, a second pass counts decoded frames; if that also fails the
// count is estimated from duration and rate.
func Probe(ctx context.Context, ffprobeBinary, path string) (Info, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Info{}, &MediaOpenError{Path: path, Err: err}
	}
	if info.IsDir() {
		return Info{}, &MediaOpenError{Path: path, Err: errors.New("is a directory")}
	}

	result, err := ffprobe.Inspect(ctx, ffprobeBinary, path, ffprobe.Options{})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Info{}, ctxErr
		}
		return Info{}, &MediaOpenError{Path: path, Err: err}
	}
	stream, ok := result.VideoStream()
	if !ok {
		return Info{}, &MediaOpenError{Path: path, Err: ErrNoVideoStream}
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return Info{}, &MediaOpenError{Path: path, Err: fmt.Errorf("%w: invalid geometry %dx%d", ErrNoVideoStream, stream.Width, stream.Height)}
	}

	count, ok := stream.FrameCount()
	if !ok {
		counted, err := ffprobe.Inspect(ctx, ffprobeBinary, path, ffprobe.Options{CountFrames: true})
		if err == nil {
			if cs, found := counted.VideoStream(); found {
				count, ok = cs.FrameCount()
			}
		} else if ctxErr := ctx.Err(); ctxErr != nil {
			return Info{}, ctxErr
		}
	}
	if !ok {
		count = result.EstimatedFrameCount(stream)
	}

	return Info{
		Width:      stream.Width,
		Height:     stream.Height,
		FrameRate:  stream.FrameRate(),
		FrameCount: count,
		Duration:   result.DurationSeconds(),
		StartTime:  stream.StartSeconds(),
	}, nil
}

// SampleCount returns how many indices 0, stride, 2*stride, ... fall below total.
func SampleCount(total int64, stride int) int64 {
	if total <= 0 || stride < 1 {
		return 0
	}
	return (total + int64(stride) - 1) / int64(stride)
}

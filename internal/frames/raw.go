package frames

import (
	"errors"
	"io"
	"math"
)

// ErrMissingFrameTime is returned when a decoded frame arrives without a
// presentation time to place it in the source.
var ErrMissingFrameTime = errors.New("decoded frame has no presentation time")

// FrameTimes yields the presentation time, in seconds, of each frame in
// stream order. ok is false once no more times will arrive.
type FrameTimes interface {
	Next() (seconds float64, ok bool)
}

// RawReader splits a stream of packed 8-bit grayscale frames, as produced by
// ffmpeg's "-pix_fmt gray -f rawvideo", into Frames.
type RawReader struct {
	r       io.Reader
	width   int
	height  int
	stride  int
	fps     float64
	limit   int64
	ordinal int64
	times   FrameTimes
	origin  float64
}

// NewRawReader reads frames of width x height from r. Each frame is stamped
// as the next sample of a stride-spaced sequence at fps. A limit above zero
// caps the number of frames returned.
func NewRawReader(r io.Reader, width, height, stride int, fps float64, limit int64) *RawReader {
	if stride < 1 {
		stride = 1
	}
	return &RawReader{r: r, width: width, height: height, stride: stride, fps: fps, limit: limit}
}

// WithTimes stamps frames from their presentation times instead of the
// stride grid: the index is the source position nearest (seconds-origin)*fps.
// It has no effect without a positive fps.
func (r *RawReader) WithTimes(times FrameTimes, origin float64) *RawReader {
	if r.fps > 0 {
		r.times = times
		r.origin = origin
	}
	return r
}

// Next returns the next full frame, or io.EOF once the stream ends. A
// truncated trailing frame is discarded.
func (r *RawReader) Next() (Frame, error) {
	if r.limit > 0 && r.ordinal >= r.limit {
		return Frame{}, io.EOF
	}
	pix := make([]uint8, r.width*r.height)
	if _, err := io.ReadFull(r.r, pix); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, err
	}
	index := r.ordinal * int64(r.stride)
	if r.times != nil {
		seconds, ok := r.times.Next()
		if !ok {
			return Frame{}, ErrMissingFrameTime
		}
		index = int64(math.Round((seconds - r.origin) * r.fps))
	}
	r.ordinal++
	return Frame{
		Index:     index,
		Timestamp: timestampFor(index, r.fps),
		Width:     r.width,
		Height:    r.height,
		Pix:       pix,
	}, nil
}

// Count returns the number of frames returned so far.
func (r *RawReader) Count() int64 {
	return r.ordinal
}

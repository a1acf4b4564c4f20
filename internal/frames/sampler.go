package frames

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"veritas/internal/logging"
)

// Sampler decodes frames with configured ffmpeg and ffprobe binaries.
type Sampler struct {
	FFmpegBinary  string
	FFprobeBinary string
	Logger        *slog.Logger
}

// NewSampler returns a Sampler using the given binaries.
func NewSampler(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Sampler {
	return &Sampler{
		FFmpegBinary:  ffmpegBinary,
		FFprobeBinary: ffprobeBinary,
		Logger:        logging.NewComponentLogger(logger, "sampler"),
	}
}

// Sample returns frames at indices 0, stride, 2*stride, ... below the stream's
// frame count, in order.
func (s *Sampler) Sample(ctx context.Context, path string, stride int) ([]Frame, error) {
	reader, err := Open(ctx, path, Options{
		Stride:        stride,
		FFmpegBinary:  s.FFmpegBinary,
		FFprobeBinary: s.FFprobeBinary,
	})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	info := reader.Info()
	expected := SampleCount(info.FrameCount, stride)
	out := make([]Frame, 0, expected)
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, frame)
	}

	logger := s.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if int64(len(out)) < expected {
		logging.WarnWithContext(logging.WithContext(ctx, logger), "frames skipped during decode", "frames_skipped",
			logging.String("path", path),
			logging.Int64("expected", expected),
			logging.Int("decoded", len(out)),
			logging.String(logging.FieldImpact, "scores computed over fewer samples"),
			logging.String(logging.FieldErrorHint, "the file may be truncated or partially corrupt"),
		)
	}
	logger.Debug("frames sampled",
		logging.String("path", path),
		logging.Int("count", len(out)),
		logging.Int("width", info.Width),
		logging.Int("height", info.Height),
		logging.Float64("fps", info.FrameRate),
	)
	return out, nil
}

// Sample decodes with ffmpeg and ffprobe from PATH.
func Sample(ctx context.Context, path string, stride int) ([]Frame, error) {
	return NewSampler("", "", nil).Sample(ctx, path, stride)
}

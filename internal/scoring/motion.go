package scoring

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"veritas/internal/frames"
	"veritas/internal/opticalflow"
)

var (
	// ErrInsufficientFramesForMotion is returned when fewer than two frames
	// are available to form a pair.
	ErrInsufficientFramesForMotion = errors.New("motion needs at least two frames")
	// ErrFrameSizeMismatch is returned when consecutive frames differ in size.
	ErrFrameSizeMismatch = opticalflow.ErrSizeMismatch
)

// PairMotion returns the mean flow magnitude from a to b.
func PairMotion(a, b frames.Frame) (float64, error) {
	field, err := opticalflow.Farneback(a, b, opticalflow.DefaultParams())
	if err != nil {
		return 0, err
	}
	return field.MeanMagnitude(), nil
}

// MotionScore averages PairMotion over consecutive frames. Pairs are computed
// concurrently but summed in sequence order.
func (s Scorer) MotionScore(ctx context.Context, seq []frames.Frame) (float64, error) {
	if len(seq) < 2 {
		return 0, fmt.Errorf("%w: got %d", ErrInsufficientFramesForMotion, len(seq))
	}
	for i := 1; i < len(seq); i++ {
		if !seq[i].SameSize(seq[0]) {
			return 0, fmt.Errorf("%w: frame %d is %dx%d, frame 0 is %dx%d",
				ErrFrameSizeMismatch, i, seq[i].Width, seq[i].Height, seq[0].Width, seq[0].Height)
		}
	}

	pairs := make([]float64, len(seq)-1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit())
	for i := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			value, err := PairMotion(seq[i], seq[i+1])
			if err != nil {
				return fmt.Errorf("pair %d: %w", i, err)
			}
			pairs[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0.0
	for _, v := range pairs {
		total += v
	}
	return total / float64(len(pairs)), nil
}

// MotionScore scores frames with the default Scorer.
func MotionScore(ctx context.Context, seq []frames.Frame) (float64, error) {
	return Scorer{}.MotionScore(ctx, seq)
}

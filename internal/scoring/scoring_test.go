package scoring_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"veritas/internal/frames"
	"veritas/internal/scoring"
	"veritas/internal/testsupport"
)

func TestFrameArtifactRatioZeroFrame(t *testing.T) {
	frame := testsupport.UniformFrame(16, 16, 0)
	if got := scoring.FrameArtifactRatio(frame); got != 0 {
		t.Fatalf("expected 0.0 for all-zero frame, got %v", got)
	}
}

func TestFrameArtifactRatioUniformFrameIsAllLowFrequency(t *testing.T) {
	// A constant image has energy only at DC, which sits inside the window.
	frame := testsupport.UniformFrame(32, 32, 128)
	if got := scoring.FrameArtifactRatio(frame); math.Abs(got) > 1e-9 {
		t.Fatalf("expected ~0 for uniform frame, got %v", got)
	}
}

func TestFrameArtifactRatioCheckerboardIsHighFrequency(t *testing.T) {
	w, h := 32, 32
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				pix[y*w+x] = 255
			}
		}
	}
	got := scoring.FrameArtifactRatio(frames.Frame{Width: w, Height: h, Pix: pix})
	// Half the energy is DC, half at the Nyquist corner outside the window.
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5 for checkerboard, got %v", got)
	}
}

func TestFrameArtifactRatioWithinUnitInterval(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		got := scoring.FrameArtifactRatio(testsupport.NoiseFrame(24, 18, seed))
		if got < 0 || got > 1 {
			t.Fatalf("ratio %v outside [0, 1]", got)
		}
	}
}

func TestArtifactScoreEmptyInput(t *testing.T) {
	if _, err := scoring.ArtifactScore(context.Background(), nil); !errors.Is(err, scoring.ErrEmptyFrameSequence) {
		t.Fatalf("expected ErrEmptyFrameSequence, got %v", err)
	}
}

func TestArtifactScoreIsOrderInvariant(t *testing.T) {
	seq := []frames.Frame{
		testsupport.NoiseFrame(24, 24, 1),
		testsupport.UniformFrame(24, 24, 90),
		testsupport.BlobFrame(24, 24, 12, 12, 4),
		testsupport.NoiseFrame(24, 24, 2),
	}
	reversed := make([]frames.Frame, len(seq))
	for i := range seq {
		reversed[len(seq)-1-i] = seq[i]
	}

	scorer := scoring.Scorer{Workers: 2}
	a, err := scorer.ArtifactScore(context.Background(), seq)
	if err != nil {
		t.Fatalf("ArtifactScore: %v", err)
	}
	b, err := scorer.ArtifactScore(context.Background(), reversed)
	if err != nil {
		t.Fatalf("ArtifactScore reversed: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical scores, got %v and %v", a, b)
	}
}

func TestMotionScoreSingleFrame(t *testing.T) {
	_, err := scoring.MotionScore(context.Background(), []frames.Frame{testsupport.UniformFrame(8, 8, 1)})
	if !errors.Is(err, scoring.ErrInsufficientFramesForMotion) {
		t.Fatalf("expected ErrInsufficientFramesForMotion, got %v", err)
	}
}

func TestMotionScoreMismatchedSizes(t *testing.T) {
	seq := []frames.Frame{testsupport.UniformFrame(8, 8, 1), testsupport.UniformFrame(8, 6, 1)}
	if _, err := scoring.MotionScore(context.Background(), seq); !errors.Is(err, scoring.ErrFrameSizeMismatch) {
		t.Fatalf("expected ErrFrameSizeMismatch, got %v", err)
	}
}

func TestMotionScoreIdenticalSequenceIsZero(t *testing.T) {
	seq := testsupport.Repeat(testsupport.NoiseFrame(40, 40, 3), 10, 30)
	got, err := scoring.MotionScore(context.Background(), seq)
	if err != nil {
		t.Fatalf("MotionScore: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected zero motion, got %v", got)
	}
}

func TestMotionScoreIsOrderSensitive(t *testing.T) {
	a := testsupport.BlobFrame(48, 48, 20, 24, 5)
	b := testsupport.BlobFrame(48, 48, 23, 24, 5)

	ctx := context.Background()
	aab, err := scoring.MotionScore(ctx, []frames.Frame{a, a, b})
	if err != nil {
		t.Fatalf("MotionScore aab: %v", err)
	}
	aba, err := scoring.MotionScore(ctx, []frames.Frame{a, b, a})
	if err != nil {
		t.Fatalf("MotionScore aba: %v", err)
	}
	if aab == aba {
		t.Fatalf("expected order to matter, both scored %v", aab)
	}
	if aab <= 0 || aba <= 0 {
		t.Fatalf("expected positive motion, got %v and %v", aab, aba)
	}
}

func TestPairMotionIsApproximatelySymmetric(t *testing.T) {
	a := testsupport.BlobFrame(64, 64, 30, 32, 6)
	b := testsupport.BlobFrame(64, 64, 32, 32, 6)

	forward, err := scoring.PairMotion(a, b)
	if err != nil {
		t.Fatalf("PairMotion forward: %v", err)
	}
	backward, err := scoring.PairMotion(b, a)
	if err != nil {
		t.Fatalf("PairMotion backward: %v", err)
	}
	if forward <= 0 || backward <= 0 {
		t.Fatalf("expected positive motion, got %v and %v", forward, backward)
	}
	if ratio := forward / backward; ratio < 0.5 || ratio > 2 {
		t.Fatalf("expected similar magnitudes, got %v and %v", forward, backward)
	}
}

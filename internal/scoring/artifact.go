package scoring

import (
	"context"
	"errors"
	"math/cmplx"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"veritas/internal/frames"
)

// ErrEmptyFrameSequence is returned when no frames were supplied.
var ErrEmptyFrameSequence = errors.New("empty frame sequence")

// Scorer computes artifact and motion scores. Workers bounds per-frame
// parallelism; zero means one worker per CPU.
type Scorer struct {
	Workers int
}

func (s Scorer) limit() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// FrameArtifactRatio returns the share of spectral magnitude lying outside a
// square low-frequency window centred on DC. The window spans a quarter of
// the smaller half-dimension on each side of centre. A frame with no spectral
// energy scores 0.
func FrameArtifactRatio(frame frames.Frame) float64 {
	h, w := frame.Height, frame.Width
	if h <= 0 || w <= 0 || len(frame.Pix) < h*w {
		return 0
	}

	spectrum := make([]complex128, h*w)
	rowFFT := fourier.NewCmplxFFT(w)
	row := make([]complex128, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			row[x] = complex(float64(frame.Pix[y*w+x]), 0)
		}
		rowFFT.Coefficients(spectrum[y*w:(y+1)*w], row)
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	out := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = spectrum[y*w+x]
		}
		colFFT.Coefficients(out, col)
		for y := 0; y < h; y++ {
			spectrum[y*w+x] = out[y]
		}
	}

	ch, cw := h/2, w/2
	r := min(ch, cw) / 4
	var total, inside float64
	for y := 0; y < h; y++ {
		// Position of this row after shifting DC to the centre.
		sy := (y + ch) % h
		rowInside := sy >= ch-r && sy < ch+r
		for x := 0; x < w; x++ {
			mag := cmplx.Abs(spectrum[y*w+x])
			total += mag
			if !rowInside {
				continue
			}
			sx := (x + cw) % w
			if sx >= cw-r && sx < cw+r {
				inside += mag
			}
		}
	}
	if total == 0 {
		return 0
	}
	return (total - inside) / total
}

// ArtifactScore returns the mean per-frame artifact ratio. Ratios are sorted
// before averaging so the result does not depend on frame order.
func (s Scorer) ArtifactScore(ctx context.Context, seq []frames.Frame) (float64, error) {
	if len(seq) == 0 {
		return 0, ErrEmptyFrameSequence
	}
	ratios := make([]float64, len(seq))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit())
	for i := range seq {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ratios[i] = FrameArtifactRatio(seq[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	sort.Float64s(ratios)
	return stat.Mean(ratios, nil), nil
}

// ArtifactScore scores frames with the default Scorer.
func ArtifactScore(ctx context.Context, seq []frames.Frame) (float64, error) {
	return Scorer{}.ArtifactScore(ctx, seq)
}

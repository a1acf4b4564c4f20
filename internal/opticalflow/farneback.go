package opticalflow

import (
	"bytes"
	"fmt"
	"math"

	"veritas/internal/frames"
)

const (
	minPyramidSize = 32
	borderWidth    = 5
)

// borderScale attenuates constraints near the image edge, where the
// polynomial fit sees replicated pixels.
var borderScale = [borderWidth]float64{0.14, 0.14, 0.4472, 0.4472, 0.4472}

// Farneback estimates dense flow from prev to next.
func Farneback(prev, next frames.Frame, p Params) (*Field, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !prev.SameSize(next) {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, prev.Width, prev.Height, next.Width, next.Height)
	}
	if prev.Width <= 0 || prev.Height <= 0 || len(prev.Pix) != prev.Width*prev.Height || len(next.Pix) != next.Width*next.Height {
		return nil, fmt.Errorf("invalid frame buffer %dx%d", prev.Width, prev.Height)
	}

	// Unchanged pixels carry no displacement; the edge handling below would
	// otherwise report small spurious flow along the right and bottom borders.
	if bytes.Equal(prev.Pix, next.Pix) {
		return newField(prev.Width, prev.Height), nil
	}

	kernel, err := newExpansionKernel(p.PolyN, p.PolySigma)
	if err != nil {
		return nil, err
	}

	images := [2][]float64{toFloat(prev.Pix), toFloat(next.Pix)}
	w0, h0 := prev.Width, prev.Height

	levels := 0
	for scale := 1.0; levels < p.Levels; levels++ {
		scale *= p.PyrScale
		if float64(w0)*scale < minPyramidSize || float64(h0)*scale < minPyramidSize {
			break
		}
	}

	var (
		flow        *Field
		prevFlow    *Field
		blurWindow  = 2*(p.WindowSize/2) + 1
		boxScale    = 1 / float64(blurWindow*blurWindow)
		boxHalfSize = p.WindowSize / 2
	)
	for k := levels; k >= 0; k-- {
		scale := math.Pow(p.PyrScale, float64(k))
		sigma := (1/scale - 1) * 0.5
		smooth := int(math.RoundToEven(sigma*5)) | 1
		if smooth < 3 {
			smooth = 3
		}
		width := int(math.RoundToEven(float64(w0) * scale))
		height := int(math.RoundToEven(float64(h0) * scale))

		if prevFlow == nil {
			flow = newField(width, height)
		} else {
			flow = &Field{
				Width:  width,
				Height: height,
				Flow:   resizeBilinear(prevFlow.Flow, prevFlow.Width, prevFlow.Height, 2, width, height),
			}
			for i := range flow.Flow {
				flow.Flow[i] /= p.PyrScale
			}
		}

		var R [2][]float64
		for i, img := range images {
			blurred := gaussianBlur(img, w0, h0, smooth, sigma)
			level := resizeBilinear(blurred, w0, h0, 1, width, height)
			R[i] = kernel.expand(level, width, height)
		}

		M := updateMatrices(R[0], R[1], flow)
		for it := 0; it < p.Iterations; it++ {
			updateFlow(flow, M, boxHalfSize, boxScale)
			if it < p.Iterations-1 {
				M = updateMatrices(R[0], R[1], flow)
			}
		}
		prevFlow = flow
	}
	return flow, nil
}

func toFloat(pix []uint8) []float64 {
	out := make([]float64, len(pix))
	for i, v := range pix {
		out[i] = float64(v)
	}
	return out
}

// updateMatrices builds, per pixel, the symmetric 2x2 system G d = h relating
// the expansion of the first image to the second image's expansion sampled at
// the current flow estimate. Five values per pixel: g11, g12, g22, h1, h2.
func updateMatrices(R0, R1 []float64, flow *Field) []float64 {
	width, height := flow.Width, flow.Height
	const nc = numPolyChannels
	M := make([]float64, width*height*5)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := flow.At(x, y)
			fx, fy := float64(x)+dx, float64(y)+dy
			x1, y1 := int(math.Floor(fx)), int(math.Floor(fy))
			fx -= float64(x1)
			fy -= float64(y1)

			r0 := R0[(y*width+x)*nc:]
			var r2, r3, r4, r5, r6 float64
			if x1 >= 0 && x1 < width-1 && y1 >= 0 && y1 < height-1 {
				a00 := (1 - fx) * (1 - fy)
				a01 := fx * (1 - fy)
				a10 := (1 - fx) * fy
				a11 := fx * fy
				p00 := R1[(y1*width+x1)*nc:]
				p01 := R1[(y1*width+x1+1)*nc:]
				p10 := R1[((y1+1)*width+x1)*nc:]
				p11 := R1[((y1+1)*width+x1+1)*nc:]
				sample := func(c int) float64 {
					return a00*p00[c] + a01*p01[c] + a10*p10[c] + a11*p11[c]
				}
				r2 = sample(chY)
				r3 = sample(chX)
				r4 = (r0[chYY] + sample(chYY)) * 0.5
				r5 = (r0[chXX] + sample(chXX)) * 0.5
				r6 = (r0[chXY] + sample(chXY)) * 0.25
			} else {
				r4 = r0[chYY]
				r5 = r0[chXX]
				r6 = r0[chXY] * 0.5
			}

			r2 = (r0[chY] - r2) * 0.5
			r3 = (r0[chX] - r3) * 0.5
			r2 += r4*dy + r6*dx
			r3 += r6*dy + r5*dx

			if x < borderWidth || x >= width-borderWidth || y < borderWidth || y >= height-borderWidth {
				s := 1.0
				if x < borderWidth {
					s *= borderScale[x]
				}
				if x >= width-borderWidth {
					s *= borderScale[width-x-1]
				}
				if y < borderWidth {
					s *= borderScale[y]
				}
				if y >= height-borderWidth {
					s *= borderScale[height-y-1]
				}
				r2 *= s
				r3 *= s
				r4 *= s
				r5 *= s
				r6 *= s
			}

			m := M[(y*width+x)*5:]
			m[0] = r4*r4 + r6*r6
			m[1] = (r4 + r5) * r6
			m[2] = r5*r5 + r6*r6
			m[3] = r4*r2 + r6*r3
			m[4] = r6*r2 + r5*r3
		}
	}
	return M
}

// updateFlow averages M over a (2*half+1)^2 box with replicated borders and
// solves each pixel's regularised 2x2 system for the new flow.
func updateFlow(flow *Field, M []float64, half int, scale float64) {
	width, height := flow.Width, flow.Height
	blurred := boxBlur(M, width, height, 5, half)
	for i := 0; i < width*height; i++ {
		b := blurred[i*5:]
		g11 := b[0] * scale
		g12 := b[1] * scale
		g22 := b[2] * scale
		h1 := b[3] * scale
		h2 := b[4] * scale
		idet := 1 / (g11*g22 - g12*g12 + 1e-3)
		flow.Flow[2*i] = (g11*h2 - g12*h1) * idet
		flow.Flow[2*i+1] = (g22*h1 - g12*h2) * idet
	}
}

// boxBlur returns unnormalised window sums of an interleaved image using
// running sums along each axis.
func boxBlur(src []float64, width, height, channels, half int) []float64 {
	tmp := make([]float64, len(src))
	sums := make([]float64, channels)

	for y := 0; y < height; y++ {
		base := y * width
		for c := range sums {
			sums[c] = 0
		}
		for o := -half; o <= half; o++ {
			p := (base + clampIndex(o, width)) * channels
			for c := range sums {
				sums[c] += src[p+c]
			}
		}
		for x := 0; x < width; x++ {
			copy(tmp[(base+x)*channels:], sums)
			add := (base + clampIndex(x+half+1, width)) * channels
			sub := (base + clampIndex(x-half, width)) * channels
			for c := range sums {
				sums[c] += src[add+c] - src[sub+c]
			}
		}
	}

	out := make([]float64, len(src))
	for x := 0; x < width; x++ {
		for c := range sums {
			sums[c] = 0
		}
		for o := -half; o <= half; o++ {
			p := (clampIndex(o, height)*width + x) * channels
			for c := range sums {
				sums[c] += tmp[p+c]
			}
		}
		for y := 0; y < height; y++ {
			copy(out[(y*width+x)*channels:], sums)
			add := (clampIndex(y+half+1, height)*width + x) * channels
			sub := (clampIndex(y-half, height)*width + x) * channels
			for c := range sums {
				sums[c] += tmp[add+c] - tmp[sub+c]
			}
		}
	}
	return out
}

package testsupport

import (
	"math"
	"math/rand/v2"

	"veritas/internal/frames"
)

// UniformFrame returns a frame filled with a single intensity.
func UniformFrame(width, height int, value uint8) frames.Frame {
	pix := make([]uint8, width*height)
	for i := range pix {
		pix[i] = value
	}
	return frames.Frame{Width: width, Height: height, Pix: pix}
}

// BlobFrame returns a dark frame with a bright Gaussian blob centred at
// (cx, cy). Shifting the centre between frames produces smooth motion.
func BlobFrame(width, height int, cx, cy, sigma float64) frames.Frame {
	pix := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			v := 20 + 200*math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
			pix[y*width+x] = uint8(math.Round(v))
		}
	}
	return frames.Frame{Width: width, Height: height, Pix: pix}
}

// NoiseFrame returns a frame of deterministic uniform noise.
func NoiseFrame(width, height int, seed uint64) frames.Frame {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pix := make([]uint8, width*height)
	for i := range pix {
		pix[i] = uint8(rng.IntN(256))
	}
	return frames.Frame{Width: width, Height: height, Pix: pix}
}

// Repeat returns n copies of frame with source indices spaced by stride.
func Repeat(frame frames.Frame, n, stride int) []frames.Frame {
	out := make([]frames.Frame, n)
	for i := range out {
		f := frame
		f.Index = int64(i * stride)
		out[i] = f
	}
	return out
}

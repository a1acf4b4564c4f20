package opticalflow

import "math"

// smallGaussian holds the fixed binomial kernels used when no sigma is given.
var smallGaussian = map[int][]float64{
	1: {1},
	3: {0.25, 0.5, 0.25},
	5: {0.0625, 0.25, 0.375, 0.25, 0.0625},
	7: {0.03125, 0.109375, 0.21875, 0.28125, 0.21875, 0.109375, 0.03125},
}

// gaussianKernel returns a normalised 1-D kernel of odd length ksize.
func gaussianKernel(ksize int, sigma float64) []float64 {
	if sigma <= 0 {
		if k, ok := smallGaussian[ksize]; ok {
			return append([]float64(nil), k...)
		}
		sigma = 0.3*((float64(ksize)-1)*0.5-1) + 0.8
	}
	kernel := make([]float64, ksize)
	center := float64(ksize-1) / 2
	sum := 0.0
	for i := range kernel {
		d := float64(i) - center
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflect101 maps an out-of-range index into [0, n) mirroring about the edge
// pixels without repeating them (dcb|abcd|cba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// gaussianBlur smooths a single-channel image separably with reflected borders.
func gaussianBlur(src []float64, width, height, ksize int, sigma float64) []float64 {
	kernel := gaussianKernel(ksize, sigma)
	half := ksize / 2

	tmp := make([]float64, len(src))
	for y := 0; y < height; y++ {
		row := src[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			acc := 0.0
			for k, w := range kernel {
				acc += w * row[reflect101(x+k-half, width)]
			}
			tmp[y*width+x] = acc
		}
	}

	out := make([]float64, len(src))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			acc := 0.0
			for k, w := range kernel {
				acc += w * tmp[reflect101(y+k-half, height)*width+x]
			}
			out[y*width+x] = acc
		}
	}
	return out
}

// resizeBilinear resamples an interleaved image with channels values per
// pixel, mapping pixel centres between the two grids.
func resizeBilinear(src []float64, sw, sh, channels, dw, dh int) []float64 {
	out := make([]float64, dw*dh*channels)
	if sw == dw && sh == dh {
		copy(out, src)
		return out
	}

	xs := make([]int, dw)
	xw := make([]float64, dw)
	sx := float64(sw) / float64(dw)
	for x := 0; x < dw; x++ {
		fx := (float64(x)+0.5)*sx - 0.5
		x0 := int(math.Floor(fx))
		w := fx - float64(x0)
		if x0 < 0 {
			x0, w = 0, 0
		}
		if x0 >= sw-1 {
			x0, w = sw-1, 0
		}
		xs[x], xw[x] = x0, w
	}

	sy := float64(sh) / float64(dh)
	for y := 0; y < dh; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		y0 := int(math.Floor(fy))
		wy := fy - float64(y0)
		if y0 < 0 {
			y0, wy = 0, 0
		}
		if y0 >= sh-1 {
			y0, wy = sh-1, 0
		}
		y1 := clampIndex(y0+1, sh)
		for x := 0; x < dw; x++ {
			x0, wx := xs[x], xw[x]
			x1 := clampIndex(x0+1, sw)
			for c := 0; c < channels; c++ {
				p00 := src[(y0*sw+x0)*channels+c]
				p01 := src[(y0*sw+x1)*channels+c]
				p10 := src[(y1*sw+x0)*channels+c]
				p11 := src[(y1*sw+x1)*channels+c]
				top := p00 + (p01-p00)*wx
				bottom := p10 + (p11-p10)*wx
				out[(y*dw+x)*channels+c] = top + (bottom-top)*wy
			}
		}
	}
	return out
}

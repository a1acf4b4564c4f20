package opticalflow

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Field is a dense displacement field. Flow holds (dx, dy) pairs in
// row-major pixel order.
type Field struct {
	Width  int
	Height int
	Flow   []float64
}

func newField(width, height int) *Field {
	return &Field{Width: width, Height: height, Flow: make([]float64, width*height*2)}
}

// At returns the displacement at column x, row y.
func (f *Field) At(x, y int) (dx, dy float64) {
	i := (y*f.Width + x) * 2
	return f.Flow[i], f.Flow[i+1]
}

// Magnitudes returns the per-pixel displacement length.
func (f *Field) Magnitudes() []float64 {
	out := make([]float64, f.Width*f.Height)
	for i := range out {
		out[i] = math.Hypot(f.Flow[2*i], f.Flow[2*i+1])
	}
	return out
}

// MeanMagnitude returns the mean displacement length over all pixels.
func (f *Field) MeanMagnitude() float64 {
	if f.Width*f.Height == 0 {
		return 0
	}
	return stat.Mean(f.Magnitudes(), nil)
}

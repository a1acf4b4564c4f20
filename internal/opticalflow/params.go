package opticalflow

import (
	"errors"
	"fmt"
)

// Params tunes the flow estimate.
type Params struct {
	// PyrScale is the size ratio between pyramid levels, in (0, 1).
	PyrScale float64
	// Levels is the number of pyramid levels above the full-resolution image.
	Levels int
	// WindowSize is the side of the box window used to average constraints.
	WindowSize int
	// Iterations is the number of flow refinements per level.
	Iterations int
	// PolyN is the half-size of the neighbourhood used for polynomial expansion.
	PolyN int
	// PolySigma is the Gaussian sigma weighting the expansion neighbourhood.
	PolySigma float64
}

// DefaultParams returns pyramid scale 0.5, 3 levels, window 15,
// 3 iterations, poly n 5, poly sigma 1.2.
func DefaultParams() Params {
	return Params{
		PyrScale:   0.5,
		Levels:     3,
		WindowSize: 15,
		Iterations: 3,
		PolyN:      5,
		PolySigma:  1.2,
	}
}

// ErrSizeMismatch is returned when the two images differ in size.
var ErrSizeMismatch = errors.New("frame sizes differ")

// Validate reports parameters the estimator cannot run with.
func (p Params) Validate() error {
	switch {
	case p.PyrScale <= 0 || p.PyrScale >= 1:
		return fmt.Errorf("pyramid scale %v must be in (0, 1)", p.PyrScale)
	case p.Levels < 0:
		return fmt.Errorf("levels %d must be non-negative", p.Levels)
	case p.WindowSize < 1:
		return fmt.Errorf("window size %d must be positive", p.WindowSize)
	case p.Iterations < 1:
		return fmt.Errorf("iterations %d must be positive", p.Iterations)
	case p.PolyN < 1:
		return fmt.Errorf("poly n %d must be positive", p.PolyN)
	case p.PolySigma < 0:
		return fmt.Errorf("poly sigma %v must be non-negative", p.PolySigma)
	}
	return nil
}

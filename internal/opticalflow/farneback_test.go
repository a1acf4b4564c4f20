package opticalflow

import (
	"errors"
	"math"
	"testing"

	"veritas/internal/frames"
	"veritas/internal/testsupport"
)

func TestFarnebackIdenticalFramesHaveNoMotion(t *testing.T) {
	frame := testsupport.NoiseFrame(48, 40, 7)
	field, err := Farneback(frame, frame, DefaultParams())
	if err != nil {
		t.Fatalf("Farneback: %v", err)
	}
	if got := field.MeanMagnitude(); got != 0 {
		t.Fatalf("expected zero motion, got %v", got)
	}
}

func TestFarnebackUniformChangeHasNoMotion(t *testing.T) {
	a := testsupport.UniformFrame(40, 40, 50)
	b := testsupport.UniformFrame(40, 40, 90)
	field, err := Farneback(a, b, DefaultParams())
	if err != nil {
		t.Fatalf("Farneback: %v", err)
	}
	if got := field.MeanMagnitude(); got != 0 {
		t.Fatalf("expected zero motion for flat frames, got %v", got)
	}
}

func TestFarnebackTracksHorizontalShift(t *testing.T) {
	prev := testsupport.BlobFrame(64, 64, 30, 32, 6)
	next := testsupport.BlobFrame(64, 64, 32, 32, 6)

	field, err := Farneback(prev, next, DefaultParams())
	if err != nil {
		t.Fatalf("Farneback: %v", err)
	}
	if field.Width != 64 || field.Height != 64 {
		t.Fatalf("unexpected field size %dx%d", field.Width, field.Height)
	}

	var sumDX, sumDY float64
	count := 0
	for y := 24; y < 40; y++ {
		for x := 23; x < 39; x++ {
			dx, dy := field.At(x, y)
			sumDX += dx
			sumDY += dy
			count++
		}
	}
	meanDX := sumDX / float64(count)
	meanDY := sumDY / float64(count)
	if meanDX <= 0.5 || meanDX >= 4 {
		t.Fatalf("expected rightward flow near 2px, got dx=%v", meanDX)
	}
	if math.Abs(meanDY) >= meanDX/2 {
		t.Fatalf("expected mostly horizontal flow, got dx=%v dy=%v", meanDX, meanDY)
	}
}

func TestFarnebackRejectsMismatchedSizes(t *testing.T) {
	a := testsupport.UniformFrame(32, 32, 0)
	b := testsupport.UniformFrame(32, 16, 0)
	if _, err := Farneback(a, b, DefaultParams()); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
}

func TestFarnebackRejectsInvalidInput(t *testing.T) {
	frame := testsupport.UniformFrame(8, 8, 1)
	bad := DefaultParams()
	bad.PyrScale = 1
	if _, err := Farneback(frame, frame, bad); err == nil {
		t.Fatal("expected parameter error")
	}
	short := frames.Frame{Width: 8, Height: 8, Pix: make([]uint8, 10)}
	if _, err := Farneback(short, short, DefaultParams()); err == nil {
		t.Fatal("expected buffer error")
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"scale zero", func(p *Params) { p.PyrScale = 0 }},
		{"negative levels", func(p *Params) { p.Levels = -1 }},
		{"zero window", func(p *Params) { p.WindowSize = 0 }},
		{"zero iterations", func(p *Params) { p.Iterations = 0 }},
		{"zero poly n", func(p *Params) { p.PolyN = 0 }},
		{"negative sigma", func(p *Params) { p.PolySigma = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
}

func TestFieldMeanMagnitude(t *testing.T) {
	field := &Field{Width: 2, Height: 1, Flow: []float64{3, 4, 0, 0}}
	if got := field.MeanMagnitude(); got != 2.5 {
		t.Fatalf("MeanMagnitude = %v, want 2.5", got)
	}
}

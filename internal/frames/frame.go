package frames

import (
	"fmt"
	"time"
)

// Frame is a single-channel 8-bit grayscale image in row-major order.
type Frame struct {
	// Index is the frame's position in the source stream.
	Index int64
	// Timestamp is Index divided by the source frame rate.
	Timestamp time.Duration
	Width     int
	Height    int
	Pix       []uint8
}

// New builds a frame over pix, which must hold exactly width*height bytes.
func New(width, height int, pix []uint8) (Frame, error) {
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("frame size %dx%d: dimensions must be positive", width, height)
	}
	if len(pix) != width*height {
		return Frame{}, fmt.Errorf("frame size %dx%d: got %d bytes, want %d", width, height, len(pix), width*height)
	}
	return Frame{Width: width, Height: height, Pix: pix}, nil
}

// At returns the intensity at column x, row y.
func (f Frame) At(x, y int) uint8 {
	return f.Pix[y*f.Width+x]
}

// SameSize reports whether two frames share dimensions.
func (f Frame) SameSize(other Frame) bool {
	return f.Width == other.Width && f.Height == other.Height
}

func timestampFor(index int64, fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(index) / fps * float64(time.Second))
}

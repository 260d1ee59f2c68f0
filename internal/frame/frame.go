// Package frame defines the frame source adapter seam (spec §4.A): the
// core never depends on a concrete screen-capture backend, only on this
// interface, since capture permission flow and platform capture are
// explicitly out of scope (spec §1).
package frame

import (
	"context"
	"time"
)

// Frame is an immutable, timestamped BGRA pixel buffer handed to the core
// by the frame source adapter (spec §3 "Frame context").
type Frame struct {
	Width, Height int
	Stride        int // bytes per row; may exceed 4*Width
	Pixels        []byte // BGRA8, little-endian, len >= Stride*Height
	PTS           time.Time
}

// Source hands the core one frame at a time. Implementations deliver
// frames at 15-120 Hz (spec §1); NextFrame blocks until the next frame is
// available or ctx is cancelled.
type Source interface {
	NextFrame(ctx context.Context) (Frame, error)
	Close() error
}

// ClampDT clamps a frame-to-frame delta to the [1ms, 100ms] range the
// physics/Kalman stages assume (spec §3 "Frame context").
func ClampDT(dt time.Duration) time.Duration {
	const min = time.Millisecond
	const max = 100 * time.Millisecond
	if dt < min {
		return min
	}
	if dt > max {
		return max
	}
	return dt
}

// At returns the byte offset of pixel (x, y) within f.Pixels.
func (f Frame) At(x, y int) int {
	return y*f.Stride + x*4
}

// BGRA reads the (B, G, R, A) bytes at pixel (x, y).
func (f Frame) BGRA(x, y int) (b, g, r, a byte) {
	off := f.At(x, y)
	return f.Pixels[off], f.Pixels[off+1], f.Pixels[off+2], f.Pixels[off+3]
}

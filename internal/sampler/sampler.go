// Package sampler implements the saliency sampler (spec §4.C): a
// quarter-resolution pass over a BGRA frame that accumulates a
// perceptually-weighted colour moment per zone.
package sampler

import (
	"math"

	"github.com/sunaitech/polarflux/internal/frame"
	"github.com/sunaitech/polarflux/internal/geometry"
)

// Accumulator holds one zone's per-frame saliency-weighted moments
// (spec §4.C.4).
type Accumulator struct {
	R, G, B, Weight float64

	PeakR, PeakG, PeakB float64
	PeakSaliency        float64

	SumSW   float64 // Sigma(saliency*weight), for CV estimation
	SumSW2  float64 // Sigma((saliency*weight)^2)
	Pixels  int
}

// Saliency computes sigma for one pixel given its linear RGB channels in
// [0, 255] (spec §4.C.1).
func Saliency(r, g, b float64) float64 {
	avg := (r + g + b) / 3
	dev := math.Abs(r-avg) + math.Abs(g-avg) + math.Abs(b-avg)
	y := 0.299*r*r + 0.587*g*g + 0.114*b*b

	var s float64
	if avg > 0 {
		s = dev / avg
	}

	sigmoid := 1 / (1 + math.Exp(-15*(s-0.4)))
	lumaClamp := math.Min(1, y/1600)
	return sigmoid * lumaClamp
}

// Sample traverses f with a stride of 2 in both axes (spec §4.C) and
// accumulates per-zone moments into one Accumulator per geometry zone.
func Sample(f frame.Frame, g *geometry.Geometry) []Accumulator {
	accs := make([]Accumulator, g.N)

	ox, oy := g.Origin.X, g.Origin.Y
	diag := math.Hypot(float64(f.Width), float64(f.Height))
	halfDiag := diag / 2

	for y := 0; y < f.Height; y += 2 {
		for x := 0; x < f.Width; x += 2 {
			bb, gg, rr, _ := f.BGRA(x, y)
			r, gr, b := float64(rr), float64(gg), float64(bb)

			sal := Saliency(r, gr, b)

			dx := float64(x) - ox
			dy := float64(y) - oy
			theta := math.Atan2(dy, dx)
			idx := g.ZoneIndex(theta)

			dist := math.Hypot(dx, dy)
			w := 1 + 0.6*math.Min(1, dist/halfDiag)

			sw := sal * w
			a := &accs[idx]
			a.R += r * sw
			a.G += gr * sw
			a.B += b * sw
			a.Weight += sw
			a.SumSW += sw
			a.SumSW2 += sw * sw
			a.Pixels++

			if sal > a.PeakSaliency {
				a.PeakSaliency = sal
				a.PeakR, a.PeakG, a.PeakB = r, gr, b
			}
		}
	}

	return accs
}

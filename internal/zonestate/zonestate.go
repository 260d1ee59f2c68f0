// Package zonestate implements the persistent per-zone state, the
// temporal-accumulation/hybrid-mixing measurement pipeline, and the
// adaptive 1-D Kalman filter that stabilises it (spec §3 "ZoneState",
// §4.D).
package zonestate

import (
	"math"
	"sort"

	"github.com/sunaitech/polarflux/internal/sampler"
	"gonum.org/v1/gonum/stat"
)

// Color is an RGB triple in the 0..255 domain, stored as float64 so the
// Kalman/physics stages can operate without repeated rounding.
type Color struct {
	R, G, B float64
}

// kalmanChannel holds the adaptive 1-D Kalman state for one colour
// channel (spec §3 "Kalman state").
type kalmanChannel struct {
	Est float64
	P   float64
	Q   float64
	R   float64
	Alpha float64
}

func newKalmanChannel() kalmanChannel {
	return kalmanChannel{Est: 0, P: 1, Q: 0.1, R: 1, Alpha: 0.2}
}

// State is the persistent per-zone state carried across frames
// (spec §3 "ZoneState"). Construct it with New: the zero value is not a
// valid initial state, since its Kalman channels have P = R = 0.
type State struct {
	// Accumulated mean (spec §3).
	AccR, AccG, AccB, AccWeight float64

	// Accumulated peak (spec §3).
	PeakR, PeakG, PeakB, PeakSaliency float64

	// Saliency statistics: smoothed mean/variance of per-pixel saliency.
	SalMean, SalVar float64

	kalman [3]kalmanChannel

	// alpha is the single shared temporal-blend factor (spec §3 "scalar
	// alpha"): the accumulator EMA above uses it directly, and it is
	// refreshed each frame from the Kalman channels' own adaptive alpha
	// (kalmanChannel.step) so a motion-driven filter response feeds back
	// into how eagerly the accumulator itself follows new frames.
	alpha float64

	// Last output, for per-frame scene-change distance (spec §4.F note).
	LastR, LastG, LastB float64

	initialized bool
}

// New returns a fresh zero-state ZoneState with Kalman channels seeded to
// their documented defaults (spec §3 invariants: 0<=alpha<=1, P>0, Q,R>0).
func New() *State {
	s := &State{alpha: kalmanAlphaSeed}
	for i := range s.kalman {
		s.kalman[i] = newKalmanChannel()
	}
	return s
}

// Update folds one frame's Accumulator into the persistent state and
// returns the stabilised colour for this frame (spec §4.D).
func (s *State) Update(acc sampler.Accumulator) Color {
	if acc.Weight <= 0 {
		// Accumulators with zero weight leave state untouched (spec §4.D.1).
		return Color{R: s.kalman[0].Est, G: s.kalman[1].Est, B: s.kalman[2].Est}
	}

	frameMeanR := acc.R / acc.Weight
	frameMeanG := acc.G / acc.Weight
	frameMeanB := acc.B / acc.Weight

	frameSalMean, frameSalVar := saliencyMoments(acc)

	alpha := s.alpha
	if !s.initialized {
		alpha = 1 // first frame: acc = frame, no history to blend with
		s.initialized = true
	}

	s.AccR = (1-alpha)*s.AccR + alpha*frameMeanR*acc.Weight
	s.AccG = (1-alpha)*s.AccG + alpha*frameMeanG*acc.Weight
	s.AccB = (1-alpha)*s.AccB + alpha*frameMeanB*acc.Weight
	s.AccWeight = (1-alpha)*s.AccWeight + alpha*acc.Weight

	s.PeakR = (1-alpha)*s.PeakR + alpha*acc.PeakR
	s.PeakG = (1-alpha)*s.PeakG + alpha*acc.PeakG
	s.PeakB = (1-alpha)*s.PeakB + alpha*acc.PeakB
	s.PeakSaliency = (1-alpha)*s.PeakSaliency + alpha*acc.PeakSaliency

	s.SalMean = (1-alpha)*s.SalMean + alpha*frameSalMean
	s.SalVar = (1-alpha)*s.SalVar + alpha*frameSalVar

	// Hybrid mixing (spec §4.D.2).
	var cv float64
	if s.SalMean > 0 {
		cv = math.Sqrt(s.SalVar) / s.SalMean
	}
	m := clamp((cv-0.3)*2, 0, 1)

	var meanR, meanG, meanB float64
	if s.AccWeight > 0 {
		meanR = s.AccR / s.AccWeight
		meanG = s.AccG / s.AccWeight
		meanB = s.AccB / s.AccWeight
	}

	z := Color{
		R: (1-m)*meanR + m*s.PeakR,
		G: (1-m)*meanG + m*s.PeakG,
		B: (1-m)*meanB + m*s.PeakB,
	}

	out := Color{
		R: s.kalman[0].step(z.R),
		G: s.kalman[1].step(z.G),
		B: s.kalman[2].step(z.B),
	}

	s.alpha = (s.kalman[0].Alpha + s.kalman[1].Alpha + s.kalman[2].Alpha) / 3

	s.LastR, s.LastG, s.LastB = out.R, out.G, out.B
	return out
}

// kalmanAlphaSeed is State.alpha's initial value, used only until the first
// frame's Kalman step produces a real, motion-driven alpha (spec §4.D).
const kalmanAlphaSeed = 0.2

// step runs one adaptive Kalman update for a single channel (spec §4.D.3).
func (k *kalmanChannel) step(z float64) float64 {
	pPred := k.P + k.Q

	residual := z - k.Est
	rho := math.Abs(residual)
	t := clamp((rho-2)/38, 0, 1)

	k.Alpha = 0.2 + 0.3*t
	k.Q = 0.1 + 0.3*t
	rAdaptive := k.R / (1 + 0.1*rho)

	gain := pPred / (pPred + rAdaptive)
	k.Est += gain * residual
	k.P = (1 - gain) * pPred

	return k.Est
}

// saliencyMoments derives the per-pixel saliency mean/variance for one
// frame's accumulator from its running sums (spec §4.C.4, §4.D.2).
func saliencyMoments(acc sampler.Accumulator) (mean, variance float64) {
	if acc.Pixels == 0 {
		return 0, 0
	}
	n := float64(acc.Pixels)
	mean = acc.SumSW / n
	ex2 := acc.SumSW2 / n
	variance = ex2 - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SceneIntensity tracks the reactive-on-increase, smooth-on-decay scalar I
// used by the physics engine's spring stiffness (spec §4.F "Scene
// intensity I").
type SceneIntensity struct {
	I float64
}

// Update folds this frame's median per-zone Euclidean distance between the
// Kalman outputs and the previously emitted colours into I.
func (si *SceneIntensity) Update(outputs, lastOutputs []Color) {
	dists := make([]float64, len(outputs))
	for i := range outputs {
		dr := outputs[i].R - lastOutputs[i].R
		dg := outputs[i].G - lastOutputs[i].G
		db := outputs[i].B - lastOutputs[i].B
		dists[i] = math.Sqrt(dr*dr + dg*dg + db*db)
	}

	var d float64
	if len(dists) > 0 {
		d = stat.Quantile(0.5, stat.Empirical, sortedCopy(dists), nil)
	}

	iNew := clamp(d/120, 0, 1)
	if iNew > si.I {
		si.I = iNew
	} else {
		si.I = 0.85*si.I + 0.15*iNew
	}
}

func sortedCopy(v []float64) []float64 {
	out := append([]float64(nil), v...)
	sort.Float64s(out)
	return out
}

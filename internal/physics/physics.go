// Package physics implements the fluid physics engine (spec §4.F): a
// second-order spring-damper integrator per channel per LED, coupled
// across neighbouring zones by a small advective drift, with snap-on-cut
// for scene changes.
package physics

import "math"

// Spring is one channel's physical state (spec §3 "Spring").
type Spring struct {
	Position float64
	Velocity float64
	Target   float64
}

// AdvectionPhaseRate controls how fast the flow phase used for lateral
// drift accumulates; see spec §9 "Advection magnitude" (the source pins
// only the 0.1*k upper bound, not this rate, so it is a tunable constant).
const AdvectionPhaseRate = 0.8

// KPhase is the per-LED phase offset multiplier for the advection term
// (spec §4.F.4).
const KPhase = 0.35

const snapThreshold = 120.0

// Engine runs the coupled spring array for one colour channel across all
// N LEDs (spec §4.F, §9 "flat vector indexed by zone id").
type Engine struct {
	Springs []Spring
	phase   float64
}

// NewEngine allocates an Engine for n LEDs, one channel's worth of
// springs, all at rest at zero.
func NewEngine(n int) *Engine {
	return &Engine{Springs: make([]Spring, n)}
}

// Step advances the engine by dt seconds given this frame's targets and
// scene intensity I in [0,1] (spec §4.F). targets must have the same
// length as e.Springs.
func (e *Engine) Step(targets []float64, dt, intensity float64) []float64 {
	n := len(e.Springs)
	out := make([]float64, n)

	k := 0.02 + (0.2-0.02)*intensity
	zeta := 1.0
	damp := 2 * zeta * math.Sqrt(k)

	e.phase += AdvectionPhaseRate * dt

	for i := range e.Springs {
		s := &e.Springs[i]
		s.Target = targets[i]

		if math.Abs(s.Target-s.Position) > snapThreshold {
			s.Position = s.Target
			s.Velocity = 0
			out[i] = clampByte(s.Position)
			continue
		}

		fAtt := k * (s.Target - s.Position)
		fDamp := -s.Velocity * damp
		fAdv := advectionPull(e.Springs, i, e.phase, k)

		s.Velocity += (fAtt + fDamp + fAdv) * dt
		s.Position += s.Velocity * dt

		out[i] = clampByte(s.Position)
	}

	return out
}

// advectionPull computes the organic lateral drift a spring at index i
// feels from its neighbours (i-1, i+1), weighted by sin(phase+i*KPhase)
// and signed towards the neighbours' average position, strictly capped at
// 0.1*k in magnitude (spec §4.F.4, §9 "Advection magnitude").
func advectionPull(springs []Spring, i int, phase, k float64) float64 {
	n := len(springs)
	var sum float64
	var count int
	if i > 0 {
		sum += springs[i-1].Position
		count++
	}
	if i < n-1 {
		sum += springs[i+1].Position
		count++
	}
	if count == 0 {
		return 0
	}
	neighborAvg := sum / float64(count)

	mag := 0.1 * k * math.Sin(phase+float64(i)*KPhase)
	if neighborAvg < springs[i].Position {
		return -math.Abs(mag)
	}
	return math.Abs(mag)
}

func clampByte(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

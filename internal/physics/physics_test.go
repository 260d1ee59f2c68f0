package physics

import "testing"

func TestSnapOnCutIsIdempotentOfDT(t *testing.T) {
	for _, dt := range []float64{1.0 / 120, 1.0 / 60, 1.0 / 15, 0.1} {
		e := NewEngine(60)
		targets := make([]float64, 60)
		for i := range targets {
			targets[i] = 255 // starts at 0, so |target-pos| = 255 > 120
		}

		out := e.Step(targets, dt, 0.5)

		for i, v := range out {
			if v != 255 {
				t.Fatalf("dt=%.4f zone %d: output %.4f, want exactly 255", dt, i, v)
			}
			if e.Springs[i].Velocity != 0 {
				t.Fatalf("dt=%.4f zone %d: velocity %.4f, want 0 after snap", dt, i, e.Springs[i].Velocity)
			}
		}
	}
}

func TestOutputStaysWithinByteRange(t *testing.T) {
	e := NewEngine(8)
	targets := make([]float64, 8)
	for i := range targets {
		targets[i] = 200
	}
	for frame := 0; frame < 300; frame++ {
		out := e.Step(targets, 1.0/60, 1.0)
		for _, v := range out {
			if v < 0 || v > 255 {
				t.Fatalf("frame %d: output %.4f out of [0,255]", frame, v)
			}
		}
	}
}

func TestAdvectionMagnitudeBounded(t *testing.T) {
	e := NewEngine(10)
	targets := make([]float64, 10) // all at rest, target == position == 0
	for frame := 0; frame < 1000; frame++ {
		e.Step(targets, 1.0/60, 0.0) // I=0 -> k at its minimum, smallest cap
		for _, s := range e.Springs {
			if s.Position < -1 || s.Position > 1 {
				t.Fatalf("frame %d: position %.4f drifted beyond a sane bound for a static scene", frame, s.Position)
			}
		}
	}
}

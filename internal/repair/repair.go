// Package repair implements orientation remapping and the 3-tap spatial
// consistency fix applied to the final LED colour sequence (spec §4.G).
package repair

import "math"

// RGB is an 8-bit colour triple.
type RGB struct {
	R, G, B uint8
}

// Orientation selects the output ordering.
type Orientation int

const (
	Standard Orientation = iota
	Reverse
)

// Reorient applies the orientation remap (spec §4.G). In Reverse mode the
// whole sequence is reversed, then the last `bottom` entries are moved to
// the end so the sequence still begins at the bottom-start wiring
// convention. Standard mode returns seq unchanged.
func Reorient(seq []RGB, orientation Orientation, bottom int) []RGB {
	if orientation == Standard {
		return seq
	}

	n := len(seq)
	reversed := make([]RGB, n)
	for i, v := range seq {
		reversed[n-1-i] = v
	}

	if bottom <= 0 || bottom >= n {
		return reversed
	}

	out := make([]RGB, 0, n)
	out = append(out, reversed[bottom:]...)
	out = append(out, reversed[:bottom]...)
	return out
}

// SpatialConsistency detects and softens lone outliers: for each i, if c
// differs strongly from both neighbours but the neighbours agree with each
// other, c is replaced by the midpoint of itself and the neighbour average
// (spec §4.G "Spatial consistency").
func SpatialConsistency(seq []RGB) []RGB {
	n := len(seq)
	if n < 3 {
		return seq
	}

	out := make([]RGB, n)
	copy(out, seq)

	for i := 0; i < n; i++ {
		p := seq[(i-1+n)%n]
		c := seq[i]
		next := seq[(i+1)%n]

		if dist(c, p) > 50 && dist(c, next) > 50 && dist(p, next) < 50 {
			avgR := (float64(p.R) + float64(next.R)) / 2
			avgG := (float64(p.G) + float64(next.G)) / 2
			avgB := (float64(p.B) + float64(next.B)) / 2

			out[i] = RGB{
				R: round((float64(c.R) + avgR) / 2),
				G: round((float64(c.G) + avgG) / 2),
				B: round((float64(c.B) + avgB) / 2),
			}
		}
	}

	return out
}

func dist(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func round(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}

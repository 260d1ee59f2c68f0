// Package geometry builds the zone boundary polygon and per-zone angular
// ranges from a ZoneConfig and capture rectangle (spec §3, §4.B).
package geometry

import (
	"fmt"
	"math"
)

// ZoneConfig is the per-side LED count configuration (spec §3).
type ZoneConfig struct {
	Left, Top, Right, Bottom int
}

// Total returns the total LED count across all four sides.
func (z ZoneConfig) Total() int {
	return z.Left + z.Top + z.Right + z.Bottom
}

// OriginMode selects how the perspective origin's y coordinate is derived.
type OriginMode int

const (
	OriginAuto OriginMode = iota
	OriginManual
)

// Rect is the capture rectangle the zone polygon is built against.
type Rect struct {
	Width, Height float64
}

// Point is a 2D boundary point in pixel space.
type Point struct {
	X, Y float64
}

// Geometry is the derived, immutable-per-run geometry for a given
// ZoneConfig + capture rectangle (spec §3 "Zone geometry").
type Geometry struct {
	Config    ZoneConfig
	N         int // total LED count == Config.Total()
	Points    []Point // N+1 boundary points, CW; the last repeats the first
	Origin    Point
	Angles    []float64 // N+1 angles, strictly increasing, span == 2*Pi
}

const epsilon = 1e-6

// Build derives the boundary points, perspective origin and normalised
// boundary angles for the given configuration. It rejects degenerate
// geometries where the total LED count is zero or the angular span falls
// short of 2*Pi (spec §4.B, §7 ConfigInvalid).
func Build(cfg ZoneConfig, rect Rect, mode OriginMode, manualY float64) (*Geometry, error) {
	n := cfg.Total()
	if n <= 0 {
		return nil, fmt.Errorf("zone config has zero total LEDs")
	}

	pts := boundaryPoints(cfg, rect)
	origin := perspectiveOrigin(cfg, rect, mode, manualY)

	angles := make([]float64, len(pts))
	for i, p := range pts {
		angles[i] = math.Atan2(p.Y-origin.Y, p.X-origin.X)
	}
	normalizeAngles(angles)

	span := angles[len(angles)-1] - angles[0]
	if span < 2*math.Pi-epsilon {
		return nil, fmt.Errorf("degenerate geometry: boundary angle span %.4f rad < 2*Pi", span)
	}

	return &Geometry{
		Config: cfg,
		N:      n,
		Points: pts,
		Origin: origin,
		Angles: angles,
	}, nil
}

// boundaryPoints performs the canonical walk: each side contributes its
// leading corner plus any interior points evenly spaced up to (but not
// including) its trailing corner, and a degenerate (count 0) side
// contributes nothing at all — not even its leading corner, since that
// point is only real when an LED actually starts there. The walk always
// yields exactly N+1 points: N from the four sidePoints calls plus a
// closing point that repeats the first one, so the walk starts and ends at
// the leading corner of the first non-empty side (bottom-left whenever
// Left > 0) (spec §4.B.1, §9 "boundary de-duplication").
func boundaryPoints(cfg ZoneConfig, rect Rect) []Point {
	bl := Point{0, rect.Height}
	tl := Point{0, 0}
	tr := Point{rect.Width, 0}
	br := Point{rect.Width, rect.Height}

	var pts []Point
	pts = append(pts, sidePoints(bl, tl, cfg.Left)...)
	pts = append(pts, sidePoints(tl, tr, cfg.Top)...)
	pts = append(pts, sidePoints(tr, br, cfg.Right)...)
	pts = append(pts, sidePoints(br, bl, cfg.Bottom)...)
	pts = append(pts, pts[0]) // close the loop: N+1 points total

	return pts
}

// sidePoints returns k evenly spaced points from start to end inclusive of
// start but exclusive of end (the end corner is the next side's start), or
// nil for a degenerate (k <= 0) side: such a side contributes no boundary
// point of its own, not even its leading corner, so the walk stays at
// exactly N+1 points overall (spec §3, §9 "boundary de-duplication").
func sidePoints(start, end Point, k int) []Point {
	if k <= 0 {
		return nil
	}
	pts := make([]Point, 0, k+1)
	for i := 0; i < k; i++ {
		t := float64(i) / float64(k)
		pts = append(pts, Point{
			X: start.X + (end.X-start.X)*t,
			Y: start.Y + (end.Y-start.Y)*t,
		})
	}
	return pts
}

// perspectiveOrigin computes the point pixel angles are measured from
// (spec §4.B.2). x is always the rectangle centre; y is the manual value
// when mode is manual, else a golden-ratio point chosen by which side (if
// any) is the sole empty one.
func perspectiveOrigin(cfg ZoneConfig, rect Rect, mode OriginMode, manualY float64) Point {
	x := rect.Width / 2

	if mode == OriginManual {
		y := manualY
		if y < 0 {
			y = 0
		}
		if y > 1 {
			y = 1
		}
		return Point{X: x, Y: y * rect.Height}
	}

	topEmpty := cfg.Top == 0
	bottomEmpty := cfg.Bottom == 0
	leftEmpty := cfg.Left == 0
	rightEmpty := cfg.Right == 0

	var yFrac float64
	switch {
	case topEmpty && !bottomEmpty && !leftEmpty && !rightEmpty:
		yFrac = 0.382
	case bottomEmpty && !topEmpty && !leftEmpty && !rightEmpty:
		yFrac = 0.618
	default:
		yFrac = 0.5
	}

	return Point{X: x, Y: yFrac * rect.Height}
}

// normalizeAngles repeatedly adds 2*Pi to any entry that is <= the
// previous one so the sequence is strictly increasing (spec §4.B.3).
func normalizeAngles(angles []float64) {
	for i := 1; i < len(angles); i++ {
		for angles[i] <= angles[i-1] {
			angles[i] += 2 * math.Pi
		}
	}
}

// ZoneIndex binary-searches the boundary angles for the greatest index
// whose angle is <= theta, after rotating theta into [angles[0], angles[N])
// (spec §4.C.2). Returns a value in [0, N).
func (g *Geometry) ZoneIndex(theta float64) int {
	lower := g.Angles[0]
	upper := g.Angles[len(g.Angles)-1]

	for theta < lower {
		theta += 2 * math.Pi
	}
	for theta >= upper {
		theta -= 2 * math.Pi
	}
	for theta < lower {
		theta += 2 * math.Pi
	}

	lo, hi := 0, g.N-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if g.Angles[mid] <= theta {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Package power implements the Auto Brightness Limiter and the other
// power-management modes (spec §4.H).
package power

import "github.com/sunaitech/polarflux/internal/repair"

// Mode selects the power-management strategy.
type Mode int

const (
	ABL Mode = iota
	GlobalCap
	SmartFallback
)

// KConst converts a summed 0..255 channel value per LED into an estimated
// current draw unit (spec §4.H).
const KConst = 1.0

// Result reports the outcome of a Limit call.
type Result struct {
	Sequence        []repair.RGB
	EstimatedDrawA  float64
	IsPowerLimited  bool
}

// Limit applies the configured power mode to seq with the given budget
// (current limit in ABL/SmartFallback, brightness ceiling in GlobalCap).
//
// GlobalCap's brightness ceiling is enforced earlier than this call: the
// caller (internal/pipeline) clamps Brightness to limit before invoking
// tone mapping at all (spec §4.H "clamp brightness directly to limit
// before tone mapping"), so by the time a GlobalCap sequence reaches
// Limit the ceiling has already shaped every channel and this is a
// pass-through that only reports the resulting estimated draw.
//
// SmartFallback shares ABL's current-based rescale here; its distinguishing
// behaviour — stepping the target frame rate down and retrying the
// connection after repeated serial write failures — lives in the
// coordinator's send path (internal/pipeline), since Limit has no notion
// of consecutive errors across frames.
func Limit(seq []repair.RGB, mode Mode, limit float64) Result {
	drawA := estimatedDraw(seq)

	switch mode {
	case ABL, SmartFallback:
		if drawA <= limit || limit <= 0 {
			return Result{Sequence: seq, EstimatedDrawA: drawA}
		}
		scale := limit / drawA
		return Result{Sequence: rescale(seq, scale), EstimatedDrawA: drawA, IsPowerLimited: true}

	case GlobalCap:
		return Result{Sequence: seq, EstimatedDrawA: drawA}

	default:
		return Result{Sequence: seq, EstimatedDrawA: drawA}
	}
}

func estimatedDraw(seq []repair.RGB) float64 {
	var sum float64
	for _, c := range seq {
		sum += float64(c.R) + float64(c.G) + float64(c.B)
	}
	return sum * KConst
}

func rescale(seq []repair.RGB, scale float64) []repair.RGB {
	out := make([]repair.RGB, len(seq))
	for i, c := range seq {
		out[i] = repair.RGB{
			R: scaleByte(c.R, scale),
			G: scaleByte(c.G, scale),
			B: scaleByte(c.B, scale),
		}
	}
	return out
}

func scaleByte(v uint8, scale float64) uint8 {
	f := float64(v) * scale
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f)
}

package power

import (
	"math"
	"testing"

	"github.com/sunaitech/polarflux/internal/repair"
)

func TestABLInvariance(t *testing.T) {
	seq := []repair.RGB{
		{R: 200, G: 150, B: 100},
		{R: 255, G: 255, B: 255},
		{R: 10, G: 20, B: 30},
	}
	const limit = 300.0

	res := Limit(seq, ABL, limit)
	if !res.IsPowerLimited {
		t.Fatal("expected power-limited result for a low limit")
	}

	total := estimatedDraw(res.Sequence)
	if total > limit+1e-6 {
		t.Fatalf("rescaled draw %.4f exceeds limit %.4f", total, limit)
	}

	for i, orig := range seq {
		out := res.Sequence[i]
		if orig.G == 0 {
			continue
		}
		origRatio := float64(orig.R) / float64(orig.G)
		if out.G == 0 {
			continue
		}
		outRatio := float64(out.R) / float64(out.G)
		if math.Abs(origRatio-outRatio) > 0.05 {
			t.Fatalf("zone %d: channel ratio not preserved: %.4f vs %.4f", i, origRatio, outRatio)
		}
	}
}

func TestABLNoOpBelowLimit(t *testing.T) {
	seq := []repair.RGB{{R: 10, G: 10, B: 10}}
	res := Limit(seq, ABL, 1000)
	if res.IsPowerLimited {
		t.Fatal("should not be power-limited when draw is well under the limit")
	}
	if res.Sequence[0] != seq[0] {
		t.Fatal("sequence should be unchanged when not power-limited")
	}
}

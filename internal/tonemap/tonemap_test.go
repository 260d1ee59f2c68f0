package tonemap

import "testing"

// defaultParams sets Saturation so that Saturation*1.1 == 1 (spec §4.E.a:
// boost = sat*1.1), giving an exact saturation-identity baseline the other
// stages can be tested against in isolation.
func defaultParams() Params {
	return Params{Saturation: 1 / 1.1, GainR: 1, GainG: 1, GainB: 1, Gamma: 1, Brightness: 1}
}

func TestApplyIdentityParamsPreservesColor(t *testing.T) {
	r, g, b := Apply(120, 80, 40, defaultParams())
	if r != 120 || g != 80 || b != 40 {
		t.Fatalf("identity params changed colour: got (%d,%d,%d)", r, g, b)
	}
}

func TestApplyClampsToByteRange(t *testing.T) {
	p := defaultParams()
	p.GainR, p.GainG, p.GainB = 3, 3, 3
	r, g, b := Apply(200, 200, 200, p)
	if r != 255 || g != 255 || b != 255 {
		t.Fatalf("expected clamp to 255, got (%d,%d,%d)", r, g, b)
	}
}

func TestBrightnessPreservesHueOnHeadroomClip(t *testing.T) {
	p := defaultParams()
	p.Brightness = 2 // would push max channel past 255
	r, g, b := Apply(200, 100, 50, p)
	// Hue preserved means ratio r:g:b approximately matches input ratio,
	// scaled so max channel hits 255.
	if r != 255 {
		t.Fatalf("expected max channel clipped to 255 via rescale, got r=%d", r)
	}
	if g < 126 || g > 129 {
		t.Fatalf("expected g ~= 127.5 (200:100 ratio at r=255), got %d", g)
	}
	_ = b
}

func TestBrightnessDimsUniformlyWithinHeadroom(t *testing.T) {
	p := defaultParams()
	p.Brightness = 0.5
	r, g, b := Apply(100, 100, 100, p)
	if r != 50 || g != 50 || b != 50 {
		t.Fatalf("expected uniform half-brightness, got (%d,%d,%d)", r, g, b)
	}
}

package geometry

import (
	"math"
	"testing"
)

func TestBuildClosureVariousConfigs(t *testing.T) {
	rect := Rect{Width: 320, Height: 180}
	configs := []ZoneConfig{
		{Left: 0, Top: 2, Right: 0, Bottom: 0},
		{Left: 10, Top: 10, Right: 10, Bottom: 10},
		{Left: 0, Top: 0, Right: 0, Bottom: 60},
		{Left: 1, Top: 0, Right: 1, Bottom: 0},
	}

	for _, cfg := range configs {
		g, err := Build(cfg, rect, OriginAuto, 0)
		if err != nil {
			t.Fatalf("Build(%+v) failed: %v", cfg, err)
		}
		for i := 1; i < len(g.Angles); i++ {
			if g.Angles[i] <= g.Angles[i-1] {
				t.Fatalf("%+v: angles not strictly increasing at %d: %v", cfg, i, g.Angles)
			}
		}
		span := g.Angles[len(g.Angles)-1] - g.Angles[0]
		if span < 2*math.Pi-1e-6 {
			t.Fatalf("%+v: span %.4f < 2*Pi", cfg, span)
		}
		if g.N != cfg.Total() {
			t.Fatalf("%+v: N = %d, want %d", cfg, g.N, cfg.Total())
		}
		if len(g.Points) != cfg.Total()+1 {
			t.Fatalf("%+v: len(Points) = %d, want %d", cfg, len(g.Points), cfg.Total()+1)
		}
		if len(g.Angles) != cfg.Total()+1 {
			t.Fatalf("%+v: len(Angles) = %d, want %d", cfg, len(g.Angles), cfg.Total()+1)
		}
	}
}

func TestBuildRejectsZeroTotal(t *testing.T) {
	_, err := Build(ZoneConfig{}, Rect{Width: 100, Height: 100}, OriginAuto, 0)
	if err == nil {
		t.Fatal("expected error for zero-total zone config")
	}
}

func TestZoneIndexCoversAllZones(t *testing.T) {
	cfg := ZoneConfig{Left: 15, Top: 15, Right: 15, Bottom: 15}
	g, err := Build(cfg, Rect{Width: 320, Height: 180}, OriginAuto, 0)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	seen := make([]bool, g.N)
	for i := 0; i < g.N; i++ {
		mid := (g.Angles[i] + g.Angles[i+1]) / 2
		idx := g.ZoneIndex(mid)
		if idx < 0 || idx >= g.N {
			t.Fatalf("zone index %d out of range for angle %.4f", idx, mid)
		}
		seen[idx] = true
	}
	for i, ok := range seen {
		if !ok {
			t.Errorf("zone %d never selected by midpoint lookup", i)
		}
	}
}

func TestPerspectiveOriginGoldenRatio(t *testing.T) {
	rect := Rect{Width: 100, Height: 100}

	g, _ := Build(ZoneConfig{Left: 1, Top: 0, Right: 1, Bottom: 1}, rect, OriginAuto, 0)
	if math.Abs(g.Origin.Y-38.2) > 1e-9 {
		t.Errorf("top-empty origin.Y = %.4f, want 38.2", g.Origin.Y)
	}

	g, _ = Build(ZoneConfig{Left: 1, Top: 1, Right: 1, Bottom: 0}, rect, OriginAuto, 0)
	if math.Abs(g.Origin.Y-61.8) > 1e-9 {
		t.Errorf("bottom-empty origin.Y = %.4f, want 61.8", g.Origin.Y)
	}

	g, _ = Build(ZoneConfig{Left: 1, Top: 1, Right: 1, Bottom: 1}, rect, OriginAuto, 0)
	if math.Abs(g.Origin.Y-50) > 1e-9 {
		t.Errorf("all-present origin.Y = %.4f, want 50", g.Origin.Y)
	}
}

func TestPerspectiveOriginManualClamped(t *testing.T) {
	rect := Rect{Width: 100, Height: 200}
	g, _ := Build(ZoneConfig{Left: 1, Top: 1, Right: 1, Bottom: 1}, rect, OriginManual, 1.5)
	if g.Origin.Y != 200 {
		t.Errorf("manual origin.Y = %.4f, want clamped to 200", g.Origin.Y)
	}
}

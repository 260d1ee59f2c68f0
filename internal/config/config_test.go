package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/sunaitech/polarflux/internal/geometry"
	"github.com/sunaitech/polarflux/internal/perrors"
)

func TestLoadAppliesDefaultsAndGeneratesRunID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := Save(path, &Config{Zones: geometry.ZoneConfig{Left: 2, Top: 2, Right: 2, Bottom: 2}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RunID == "" {
		t.Fatalf("expected RunID to be generated")
	}
	if cfg.TargetFrameRate != 60 {
		t.Fatalf("expected default frame rate 60, got %d", cfg.TargetFrameRate)
	}
	if cfg.Gamma != 2.2 {
		t.Fatalf("expected default gamma 2.2, got %v", cfg.Gamma)
	}
	if cfg.BaudRate != 115200 {
		t.Fatalf("expected default baud 115200, got %d", cfg.BaudRate)
	}
}

func TestLoadRejectsZeroZoneTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := Save(path, &Config{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for zero-total zone config")
	}
	var perr *perrors.Error
	if !errors.As(err, &perr) || perr.Kind != perrors.ConfigInvalid {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestZoneAffectingEqualsIgnoresTelemetryAndRunID(t *testing.T) {
	a := &Config{RunID: "a", Zones: geometry.ZoneConfig{Left: 1, Top: 1, Right: 1, Bottom: 1}}
	b := &Config{RunID: "b", Zones: geometry.ZoneConfig{Left: 1, Top: 1, Right: 1, Bottom: 1}, Telemetry: Telemetry{MQTTBroker: "tcp://x"}}
	if !ZoneAffectingEquals(a, b) {
		t.Fatalf("expected configs differing only in RunID/Telemetry to be zone-equal")
	}

	c := &Config{RunID: "a", Zones: geometry.ZoneConfig{Left: 2, Top: 1, Right: 1, Bottom: 1}}
	if ZoneAffectingEquals(a, c) {
		t.Fatalf("expected configs differing in zone geometry to be unequal")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if err := s.Set("baudRate", 115200.0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore (reopen): %v", err)
	}
	v, ok := reopened.Get("baudRate")
	if !ok {
		t.Fatalf("expected baudRate to persist")
	}
	if v.(float64) != 115200.0 {
		t.Fatalf("expected 115200, got %v", v)
	}
}

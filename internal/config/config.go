// Package config loads, validates, and persists the pipeline's
// reconfigurable settings (spec §3 "Configuration bundle", §6 "Persistent
// configuration"). Structure and defaulting style follow config.go
// (YAML-tagged struct, LoadConfig + manual defaulting + Validate).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/google/uuid"
	"github.com/sunaitech/polarflux/internal/geometry"
	"github.com/sunaitech/polarflux/internal/perrors"
	"github.com/sunaitech/polarflux/internal/power"
	"github.com/sunaitech/polarflux/internal/repair"
)

// Config is the full reconfigurable bundle (spec §3). Any change to a
// zone-affecting field (everything except Telemetry and RunID) triggers
// pipeline restart and ZoneState/Spring/geometry reset per spec §3.
type Config struct {
	RunID string `yaml:"run_id"`

	Zones       geometry.ZoneConfig `yaml:"zones"`
	Orientation repair.Orientation  `yaml:"orientation"`

	TargetFrameRate int `yaml:"target_frame_rate"`

	CalibrationR float64 `yaml:"calibration_r"`
	CalibrationG float64 `yaml:"calibration_g"`
	CalibrationB float64 `yaml:"calibration_b"`
	Gamma        float64 `yaml:"gamma"`
	Saturation   float64 `yaml:"saturation"`
	Brightness   float64 `yaml:"brightness"`

	PerspectiveOriginMode geometry.OriginMode `yaml:"perspective_origin_mode"`
	ManualOriginPosition  float64             `yaml:"manual_origin_position"`

	PowerMode  power.Mode `yaml:"power_mode"`
	PowerLimit float64    `yaml:"power_limit"`

	SerialPath string `yaml:"serial_path"`
	BaudRate   int    `yaml:"baud_rate"`

	// CaptureWidth/CaptureHeight describe the capture rectangle geometry
	// is built against (spec §4.B). The capture backend that fills this
	// rectangle is an out-of-scope collaborator; only its declared
	// dimensions are this module's concern.
	CaptureWidth  int `yaml:"capture_width"`
	CaptureHeight int `yaml:"capture_height"`

	// FrameSourceListen is the address the frame ingestion listener binds
	// (internal/framesource), where the capture collaborator connects to
	// push frames.
	FrameSourceListen string `yaml:"frame_source_listen"`

	Telemetry Telemetry `yaml:"telemetry"`
}

// Telemetry holds ambient/observability settings (spec SPEC_FULL.md §3
// addendum). Changing these never resets zone/spring/geometry state.
type Telemetry struct {
	MQTTBroker       string `yaml:"mqtt_broker"`
	WebsocketListen  string `yaml:"websocket_listen"`
	MCPListen        string `yaml:"mcp_listen"`
	DiscoveryEnabled bool   `yaml:"discovery_enabled"`
	MetricsListen    string `yaml:"metrics_listen"`
}

// Load reads and validates a YAML configuration file, applying defaults
// for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills in zero-valued fields with sane defaults, mirroring
// LoadConfig's default-application style.
func applyDefaults(cfg *Config) {
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	if cfg.TargetFrameRate == 0 {
		cfg.TargetFrameRate = 60
	}
	if cfg.CalibrationR == 0 {
		cfg.CalibrationR = 1.0
	}
	if cfg.CalibrationG == 0 {
		cfg.CalibrationG = 1.0
	}
	if cfg.CalibrationB == 0 {
		cfg.CalibrationB = 1.0
	}
	if cfg.Gamma == 0 {
		cfg.Gamma = 2.2
	}
	if cfg.Saturation == 0 {
		cfg.Saturation = 1.0 / 1.1
	}
	if cfg.Brightness == 0 {
		cfg.Brightness = 1.0
	}
	// PerspectiveOriginMode (OriginAuto) and Orientation (Standard) are
	// int-enums whose zero value already is the desired default.
	if cfg.PowerLimit == 0 {
		cfg.PowerLimit = 2.0 // amps
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.Telemetry.MetricsListen == "" {
		cfg.Telemetry.MetricsListen = ":9109"
	}
	if cfg.CaptureWidth == 0 {
		cfg.CaptureWidth = 1920
	}
	if cfg.CaptureHeight == 0 {
		cfg.CaptureHeight = 1080
	}
	if cfg.FrameSourceListen == "" {
		cfg.FrameSourceListen = "127.0.0.1:7890"
	}
}

// Validate enforces the bundle's invariants (spec §3, §7 ConfigInvalid):
// total zone count must be positive and the target frame rate sane.
func (c *Config) Validate() error {
	if c.Zones.Total() <= 0 {
		return perrors.New(perrors.ConfigInvalid, fmt.Errorf("zones: total LED count must be > 0"))
	}
	if c.TargetFrameRate <= 0 {
		return perrors.New(perrors.ConfigInvalid, fmt.Errorf("target_frame_rate must be > 0"))
	}
	if c.BaudRate <= 0 {
		return perrors.New(perrors.ConfigInvalid, fmt.Errorf("baud_rate must be > 0"))
	}
	return nil
}

// Save writes the bundle back to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ZoneAffectingEquals reports whether two bundles agree on every
// zone-affecting field — everything except RunID and Telemetry (spec
// SPEC_FULL.md §3 addendum). The coordinator (spec §4.J) uses this to
// decide whether a reconfiguration requires a pipeline restart.
func ZoneAffectingEquals(a, b *Config) bool {
	return a.Zones == b.Zones &&
		a.Orientation == b.Orientation &&
		a.TargetFrameRate == b.TargetFrameRate &&
		a.CalibrationR == b.CalibrationR &&
		a.CalibrationG == b.CalibrationG &&
		a.CalibrationB == b.CalibrationB &&
		a.Gamma == b.Gamma &&
		a.Saturation == b.Saturation &&
		a.Brightness == b.Brightness &&
		a.PerspectiveOriginMode == b.PerspectiveOriginMode &&
		a.ManualOriginPosition == b.ManualOriginPosition &&
		a.PowerMode == b.PowerMode &&
		a.PowerLimit == b.PowerLimit &&
		a.SerialPath == b.SerialPath &&
		a.BaudRate == b.BaudRate &&
		a.CaptureWidth == b.CaptureWidth &&
		a.CaptureHeight == b.CaptureHeight &&
		a.FrameSourceListen == b.FrameSourceListen
}

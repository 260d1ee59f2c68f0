// Package telemetry implements the ambient, read-only observability
// surface described in SPEC_FULL.md §4.K: an MQTT metrics publisher and a
// websocket status/preview broadcaster. Neither ever mutates pipeline
// state — both only observe Snapshot values handed to them by the
// coordinator.
package telemetry

import (
	"time"

	"github.com/sunaitech/polarflux/internal/zonestate"
)

// Snapshot is the read-only view of pipeline state telemetry consumers
// are allowed to see (spec SPEC_FULL.md §4.K, §5 ownership rules).
type Snapshot struct {
	Timestamp      time.Time
	RunID          string
	ZoneColors     []zonestate.Color
	SceneIntensity float64
	PowerLimited   bool
	FrameRate      float64
}

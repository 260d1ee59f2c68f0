// Package pipeline implements the coordinator (spec §4.J): it owns the
// processing-thread state (geometry, zone states, physics springs, scene
// intensity) across frames and drives the serial I/O thread, restarting
// cleanly whenever the zone-affecting configuration changes. Lifecycle
// shape — an explicit Start/Stop pair guarding a background goroutine via
// a stop channel and a WaitGroup — follows NoiseFloorMonitor
// (noise_floor.go) and session handling (session.go).
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sunaitech/polarflux/internal/adalight"
	"github.com/sunaitech/polarflux/internal/config"
	"github.com/sunaitech/polarflux/internal/diagnostics"
	"github.com/sunaitech/polarflux/internal/frame"
	"github.com/sunaitech/polarflux/internal/geometry"
	"github.com/sunaitech/polarflux/internal/metrics"
	"github.com/sunaitech/polarflux/internal/perrors"
	"github.com/sunaitech/polarflux/internal/physics"
	"github.com/sunaitech/polarflux/internal/power"
	"github.com/sunaitech/polarflux/internal/repair"
	"github.com/sunaitech/polarflux/internal/sampler"
	"github.com/sunaitech/polarflux/internal/serialport"
	"github.com/sunaitech/polarflux/internal/telemetry"
	"github.com/sunaitech/polarflux/internal/tonemap"
	"github.com/sunaitech/polarflux/internal/zonestate"
)

// Mode selects the colour source feeding the shared output pipeline
// (§4.F onward). Only Sync is implemented here: the Coordinator always
// runs ModeSync, and no method of it accepts a colour sequence from an
// effect, music, or manual generator.
type Mode int

const (
	// ModeSync drives the output pipeline from captured-screen geometry,
	// sampling, zone state, and tone mapping (spec §4.B-§4.E).
	ModeSync Mode = iota
	// ModeExternal names an out-of-scope generator (effect/music/manual)
	// as the colour source; the Coordinator never selects it.
	ModeExternal
)

// Coordinator runs one pipeline "session" for a given Config: it owns
// everything the processing thread touches and restarts the whole
// session whenever zone-affecting configuration changes (spec §3, §4.J,
// §5).
type Coordinator struct {
	cfgMu sync.RWMutex
	cfg   *config.Config

	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	source frame.Source
	mode   Mode

	// Processing-thread-owned state (spec §5); touched only from the
	// single goroutine run() launches.
	geo          *geometry.Geometry
	zoneStates   []*zonestate.State
	springsR     *physics.Engine
	springsG     *physics.Engine
	springsB     *physics.Engine
	sceneI       *zonestate.SceneIntensity
	lastOutputs  []zonestate.Color
	lastFrameAt  time.Time

	transport transportSender

	// fallbackMu guards the SmartFallback bookkeeping below: consecutive
	// send failures, the resulting target-frame-rate step-down, the next
	// allowed reconnect attempt, and the last time a frame was actually
	// processed (spec §4.H "SmartFallback").
	fallbackMu            sync.Mutex
	consecutiveSendErrors int
	fpsStep               int
	nextReconnectAt       time.Time
	lastProcessedAt       time.Time

	diagMu sync.Mutex
	diag   *diagnostics.Dumper

	statusMu sync.RWMutex
	status   telemetry.Snapshot
}

// SetDiagnostics attaches an optional frame-trace recorder; pass nil to
// disable recording. Safe to call while the pipeline is running.
func (c *Coordinator) SetDiagnostics(d *diagnostics.Dumper) {
	c.diagMu.Lock()
	defer c.diagMu.Unlock()
	c.diag = d
}

// transportSender is the slice of *serialport.Transport the coordinator
// needs; narrowing it to an interface keeps processFrame's write path
// testable without a real serial device.
type transportSender interface {
	Send(packet []byte) error
	Disconnect() error
}

// New constructs a Coordinator for the given initial configuration and
// frame source. metrics may be nil to disable metric recording.
func New(cfg *config.Config, source frame.Source, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		source:  source,
		mode:    ModeSync,
		metrics: m,
		stop:    make(chan struct{}),
	}
}

// Config returns a copy of the currently active configuration bundle.
func (c *Coordinator) Config() *config.Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	cp := *c.cfg
	return &cp
}

// Status returns the latest read-only snapshot for telemetry consumers
// (spec SPEC_FULL.md §4.K).
func (c *Coordinator) Status() telemetry.Snapshot {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Start validates the configuration, resolves geometry, resets
// per-session state, opens the serial transport, and begins the capture
// loop (spec §4.J "On start").
func (c *Coordinator) Start(ctx context.Context, rect geometry.Rect) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	cfg := c.Config()
	if err := cfg.Validate(); err != nil {
		return err
	}

	geo, err := geometry.Build(cfg.Zones, rect, cfg.PerspectiveOriginMode, cfg.ManualOriginPosition)
	if err != nil {
		return err
	}

	n := geo.N
	zoneStates := make([]*zonestate.State, n)
	for i := range zoneStates {
		zoneStates[i] = zonestate.New()
	}

	transport, err := serialport.Connect(cfg.SerialPath, cfg.BaudRate, c.handleDisconnect)
	if err != nil {
		return err
	}

	c.geo = geo
	c.zoneStates = zoneStates
	c.springsR = physics.NewEngine(n)
	c.springsG = physics.NewEngine(n)
	c.springsB = physics.NewEngine(n)
	c.sceneI = &zonestate.SceneIntensity{}
	c.lastOutputs = make([]zonestate.Color, n)
	c.lastFrameAt = time.Time{}
	c.transport = transport
	c.stop = make(chan struct{})
	c.running = true

	c.fallbackMu.Lock()
	c.consecutiveSendErrors = 0
	c.fpsStep = 0
	c.nextReconnectAt = time.Time{}
	c.lastProcessedAt = time.Time{}
	c.fallbackMu.Unlock()

	c.wg.Add(1)
	go c.run(ctx)

	return nil
}

// Stop requests the frame source to stop, waits for the in-flight frame,
// emits a final all-off packet, and closes the transport (spec §5
// "Cancellation").
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.stop)
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport != nil {
		if c.geo != nil {
			off := make([]repair.RGB, c.geo.N)
			if packet, err := adalight.Frame(off); err == nil {
				c.transport.Send(packet)
			}
		}
		c.transport.Disconnect()
	}
	c.source.Close()
	c.running = false
}

// Reconfigure applies a new configuration bundle. If any zone-affecting
// field changed, the session restarts (stop, then start fresh); ambient
// fields (Telemetry, RunID) apply without disruption (spec §3).
func (c *Coordinator) Reconfigure(ctx context.Context, rect geometry.Rect, next *config.Config) error {
	prev := c.Config()

	c.cfgMu.Lock()
	c.cfg = next
	c.cfgMu.Unlock()

	if config.ZoneAffectingEquals(prev, next) {
		return nil
	}

	c.Stop()
	return c.Start(ctx, rect)
}

func (c *Coordinator) handleDisconnect() {
	if c.metrics != nil {
		c.metrics.IncSerialDisconnect()
	}
	log.Printf("pipeline: serial transport disconnected")
}

// run is the processing thread's main loop: pull a frame, run the vision
// and output stages, and emit one Adalight packet per frame (spec §4.J
// "On every frame").
func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		f, err := c.source.NextFrame(ctx)
		if err != nil {
			if c.metrics != nil {
				if perr, ok := err.(*perrors.Error); ok {
					c.metrics.IncError(string(perr.Kind))
				}
			}
			continue
		}

		cfg := c.Config()
		if cfg.PowerMode == power.SmartFallback && c.skipForFallbackStep(cfg) {
			continue
		}

		start := time.Now()
		c.processFrame(f)
		if c.metrics != nil {
			c.metrics.ObserveFrame(time.Since(start))
		}
	}
}

// processFrame runs one frame through §4.C-§4.I and transmits the
// resulting packet.
func (c *Coordinator) processFrame(f frame.Frame) {
	cfg := c.Config()

	c.fallbackMu.Lock()
	c.lastProcessedAt = time.Now()
	c.fallbackMu.Unlock()

	var dt time.Duration
	if !c.lastFrameAt.IsZero() {
		dt = frame.ClampDT(f.PTS.Sub(c.lastFrameAt))
	} else {
		dt = 16 * time.Millisecond
	}
	c.lastFrameAt = f.PTS

	accumulators := sampler.Sample(f, c.geo)

	zoneColors := make([]zonestate.Color, len(accumulators))
	for i, acc := range accumulators {
		zoneColors[i] = c.zoneStates[i].Update(acc)
	}

	c.sceneI.Update(zoneColors, c.lastOutputs)
	intensity := c.sceneI.I

	toneMapped := make([][3]float64, len(zoneColors))
	tp := tonemapParams(cfg)
	for i, zc := range zoneColors {
		r, g, b := tonemap.Apply(zc.R, zc.G, zc.B, tp)
		toneMapped[i] = [3]float64{float64(r), float64(g), float64(b)}
	}

	dtSec := dt.Seconds()
	rTargets := make([]float64, len(toneMapped))
	gTargets := make([]float64, len(toneMapped))
	bTargets := make([]float64, len(toneMapped))
	for i, v := range toneMapped {
		rTargets[i], gTargets[i], bTargets[i] = v[0], v[1], v[2]
	}

	rOut := c.springsR.Step(rTargets, dtSec, intensity)
	gOut := c.springsG.Step(gTargets, dtSec, intensity)
	bOut := c.springsB.Step(bTargets, dtSec, intensity)

	seq := make([]repair.RGB, len(rOut))
	for i := range seq {
		seq[i] = repair.RGB{R: uint8(rOut[i]), G: uint8(gOut[i]), B: uint8(bOut[i])}
	}

	seq = repair.Reorient(seq, cfg.Orientation, c.geo.Config.Bottom)
	seq = repair.SpatialConsistency(seq)

	result := power.Limit(seq, cfg.PowerMode, cfg.PowerLimit)
	if c.metrics != nil {
		c.metrics.SetPowerLimited(result.IsPowerLimited)
		c.metrics.SetSceneIntensity(intensity)
	}

	packet, err := adalight.Frame(result.Sequence)
	if err != nil {
		log.Printf("pipeline: framing error: %v", err)
		return
	}

	sendStart := time.Now()
	if err := c.transport.Send(packet); err != nil {
		log.Printf("pipeline: serial send failed: %v", err)
		if cfg.PowerMode == power.SmartFallback {
			c.onSendFailure(cfg)
		}
	} else if cfg.PowerMode == power.SmartFallback {
		c.onSendSuccess()
	}
	if c.metrics != nil {
		c.metrics.ObserveSerialWrite(time.Since(sendStart))
	}

	for i := range zoneColors {
		c.lastOutputs[i] = zonestate.Color{
			R: float64(seq[i].R),
			G: float64(seq[i].G),
			B: float64(seq[i].B),
		}
	}

	now := time.Now()
	c.statusMu.Lock()
	c.status = telemetry.Snapshot{
		Timestamp:      now,
		RunID:          cfg.RunID,
		ZoneColors:     append([]zonestate.Color(nil), c.lastOutputs...),
		SceneIntensity: intensity,
		PowerLimited:   result.IsPowerLimited,
		FrameRate:      frameRate(dt),
	}
	c.statusMu.Unlock()

	c.diagMu.Lock()
	d := c.diag
	c.diagMu.Unlock()
	if d != nil {
		if err := d.Record(diagnostics.FrameTrace{
			Timestamp:      now,
			SceneIntensity: intensity,
			PowerLimited:   result.IsPowerLimited,
			ZoneCount:      len(seq),
		}); err != nil {
			log.Printf("pipeline: frame trace record failed: %v", err)
		}
	}
}

func frameRate(dt time.Duration) float64 {
	if dt <= 0 {
		return 0
	}
	return 1.0 / dt.Seconds()
}

// tonemapParams derives the tone-mapping inputs from cfg. Under GlobalCap,
// PowerLimit is reinterpreted as a brightness ceiling and clamps Brightness
// directly, before tone mapping ever runs (spec §4.H "clamp brightness
// directly to limit before tone mapping") — unlike ABL/SmartFallback, which
// limit current draw afterwards, post-tone-map (see power.Limit).
func tonemapParams(cfg *config.Config) tonemap.Params {
	brightness := cfg.Brightness
	if cfg.PowerMode == power.GlobalCap && cfg.PowerLimit > 0 && cfg.PowerLimit < brightness {
		brightness = cfg.PowerLimit
	}
	return tonemap.Params{
		Saturation: cfg.Saturation,
		GainR:      cfg.CalibrationR,
		GainG:      cfg.CalibrationG,
		GainB:      cfg.CalibrationB,
		Gamma:      cfg.Gamma,
		Brightness: brightness,
	}
}

// smartFallback tuning (spec §4.H "SmartFallback"): after
// smartFallbackErrorThreshold consecutive failed sends, step the target
// frame rate down and attempt a fresh connection, backing off between
// reconnect attempts so a dead port doesn't busy-loop serialport.Connect.
const (
	smartFallbackErrorThreshold   = 5
	smartFallbackMaxSteps         = 3
	smartFallbackReconnectBackoff = 2 * time.Second
)

// skipForFallbackStep reports whether the current frame should be dropped
// to hold the pipeline under the stepped-down target frame rate. fpsStep
// halves the configured rate once per step, down to a floor of 1 fps.
func (c *Coordinator) skipForFallbackStep(cfg *config.Config) bool {
	c.fallbackMu.Lock()
	step := c.fpsStep
	last := c.lastProcessedAt
	c.fallbackMu.Unlock()

	if step == 0 || last.IsZero() {
		return false
	}
	target := cfg.TargetFrameRate >> uint(step)
	if target < 1 {
		target = 1
	}
	return time.Since(last) < time.Second/time.Duration(target)
}

// onSendFailure records a failed Send, steps the target frame rate down
// once per smartFallbackErrorThreshold consecutive failures, and retries
// the serial connection once the reconnect backoff has elapsed.
func (c *Coordinator) onSendFailure(cfg *config.Config) {
	c.fallbackMu.Lock()
	c.consecutiveSendErrors++
	n := c.consecutiveSendErrors
	reconnectReady := time.Now().After(c.nextReconnectAt)
	c.fallbackMu.Unlock()

	if n%smartFallbackErrorThreshold != 0 {
		return
	}

	c.fallbackMu.Lock()
	if c.fpsStep < smartFallbackMaxSteps {
		c.fpsStep++
	}
	step := c.fpsStep
	c.fallbackMu.Unlock()
	log.Printf("pipeline: smart fallback stepping target frame rate down to step %d after %d consecutive serial errors", step, n)

	if !reconnectReady {
		return
	}
	c.fallbackMu.Lock()
	c.nextReconnectAt = time.Now().Add(smartFallbackReconnectBackoff)
	c.fallbackMu.Unlock()

	t, err := serialport.Connect(cfg.SerialPath, cfg.BaudRate, c.handleDisconnect)
	if err != nil {
		log.Printf("pipeline: smart fallback reconnect failed: %v", err)
		return
	}
	log.Printf("pipeline: smart fallback reconnected serial transport")
	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
}

// onSendSuccess clears the SmartFallback error streak and restores the
// full target frame rate once the connection is healthy again.
func (c *Coordinator) onSendSuccess() {
	c.fallbackMu.Lock()
	defer c.fallbackMu.Unlock()
	c.consecutiveSendErrors = 0
	c.fpsStep = 0
}

// Package metrics exposes the pipeline's Prometheus metrics (spec
// SPEC_FULL.md §4.K). Collector construction and the /metrics HTTP
// endpoint follow prometheus.go's style (a struct of promauto collectors,
// a single registration function, served via promhttp).
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the coordinator and transport update.
type Metrics struct {
	frameDuration    prometheus.Histogram
	frameDropped     prometheus.Counter
	kalmanGainMean   prometheus.Gauge
	ablEngaged       prometheus.Gauge
	sceneIntensity   prometheus.Gauge
	serialWriteTime  prometheus.Histogram
	serialDisconnect prometheus.Counter
	errorsByKind     *prometheus.CounterVec
}

// New registers and returns the metric collectors. Safe to call once per
// process; a second call would panic on duplicate registration, matching
// promauto's usual usage style.
func New() *Metrics {
	return &Metrics{
		frameDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "polarflux_frame_duration_seconds",
			Help:    "Wall-clock time to process one captured frame end to end.",
			Buckets: prometheus.DefBuckets,
		}),
		frameDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "polarflux_frames_dropped_total",
			Help: "Frames skipped because the previous frame was still processing.",
		}),
		kalmanGainMean: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "polarflux_kalman_gain_mean",
			Help: "Mean Kalman gain across zones and channels on the last frame.",
		}),
		ablEngaged: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "polarflux_power_limited",
			Help: "1 if the last frame's output was rescaled by the power limiter, else 0.",
		}),
		sceneIntensity: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "polarflux_scene_intensity",
			Help: "Current scene motion intensity in [0,1] driving the spring stiffness.",
		}),
		serialWriteTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "polarflux_serial_write_seconds",
			Help:    "Time spent in a single serial Send call, including tcdrain and jitter sleep.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 8),
		}),
		serialDisconnect: promauto.NewCounter(prometheus.CounterOpts{
			Name: "polarflux_serial_disconnects_total",
			Help: "Number of times the serial transport detected a disconnect.",
		}),
		errorsByKind: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "polarflux_errors_total",
			Help: "Errors observed by the coordinator, labelled by kind.",
		}, []string{"kind"}),
	}
}

// ObserveFrame records one frame's end-to-end processing duration.
func (m *Metrics) ObserveFrame(d time.Duration) {
	m.frameDuration.Observe(d.Seconds())
}

// IncDroppedFrame records a skipped frame.
func (m *Metrics) IncDroppedFrame() {
	m.frameDropped.Inc()
}

// SetKalmanGainMean records the mean Kalman gain across zones.
func (m *Metrics) SetKalmanGainMean(v float64) {
	m.kalmanGainMean.Set(v)
}

// SetPowerLimited records whether this frame's output was power-limited.
func (m *Metrics) SetPowerLimited(limited bool) {
	if limited {
		m.ablEngaged.Set(1)
		return
	}
	m.ablEngaged.Set(0)
}

// SetSceneIntensity records the current scene motion intensity.
func (m *Metrics) SetSceneIntensity(v float64) {
	m.sceneIntensity.Set(v)
}

// ObserveSerialWrite records one Send call's total duration.
func (m *Metrics) ObserveSerialWrite(d time.Duration) {
	m.serialWriteTime.Observe(d.Seconds())
}

// IncSerialDisconnect records a detected serial disconnect.
func (m *Metrics) IncSerialDisconnect() {
	m.serialDisconnect.Inc()
}

// IncError records an error of the given kind (spec §7's closed set).
func (m *Metrics) IncError(kind string) {
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Serve starts the /metrics HTTP endpoint and blocks until ctx is
// cancelled, mirroring a standard promhttp-backed metrics server.
func Serve(ctx context.Context, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: listen, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

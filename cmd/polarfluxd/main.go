// Command polarfluxd runs the ambient-lighting core: it ingests frames from
// an external capture collaborator, drives the vision and physics
// pipeline, and writes Adalight packets to a serial LED controller, while
// exposing Prometheus metrics, MQTT/websocket telemetry, an MCP control
// surface, and mDNS advertisement.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sunaitech/polarflux/internal/config"
	"github.com/sunaitech/polarflux/internal/control"
	"github.com/sunaitech/polarflux/internal/diagnostics"
	"github.com/sunaitech/polarflux/internal/discovery"
	"github.com/sunaitech/polarflux/internal/framesource"
	"github.com/sunaitech/polarflux/internal/geometry"
	"github.com/sunaitech/polarflux/internal/health"
	"github.com/sunaitech/polarflux/internal/metrics"
	"github.com/sunaitech/polarflux/internal/pipeline"
	"github.com/sunaitech/polarflux/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	statePath := flag.String("state", "state.json", "Path to persistent configuration key-value store")
	tracePath := flag.String("trace", "", "If set, record a zstd-compressed frame trace to this path")
	traceFrames := flag.Int("trace-frames", 0, "Number of frames to record before the trace stops (0 disables even with -trace set)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Println("debug logging enabled")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("loaded config: run_id=%s zones=%d serial=%s@%d", cfg.RunID, cfg.Zones.Total(), cfg.SerialPath, cfg.BaudRate)

	store, err := config.OpenStore(*statePath)
	if err != nil {
		log.Fatalf("open state store: %v", err)
	}

	m := metrics.New()

	source, err := framesource.Listen(cfg.FrameSourceListen)
	if err != nil {
		log.Fatalf("start frame listener: %v", err)
	}
	log.Printf("frame ingestion listening on %s", cfg.FrameSourceListen)

	coord := pipeline.New(cfg, source, m)

	rect := geometry.Rect{Width: cfg.CaptureWidth, Height: cfg.CaptureHeight}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Start(ctx, rect); err != nil {
		log.Fatalf("start pipeline: %v", err)
	}

	if *tracePath != "" && *traceFrames > 0 {
		dumper, err := diagnostics.Open(*tracePath, *traceFrames)
		if err != nil {
			log.Fatalf("open frame trace: %v", err)
		}
		defer dumper.Close()
		coord.SetDiagnostics(dumper)
		log.Printf("recording up to %d frames to %s", *traceFrames, *tracePath)
	}

	healthMon := health.NewMonitor()
	healthMon.Start(5 * time.Second)
	defer healthMon.Stop()

	applyPatch := func(patch map[string]interface{}) error {
		next := *coord.Config()
		for field, raw := range patch {
			if err := applyConfigField(&next, field, raw); err != nil {
				return err
			}
			if err := store.Set(field, raw); err != nil {
				log.Printf("persist %s: %v", field, err)
			}
		}
		return coord.Reconfigure(ctx, rect, &next)
	}

	mcpServer := control.New(coord.Status, coord.Config, applyPatch)

	var wsBroadcaster *telemetry.Broadcaster
	if cfg.Telemetry.WebsocketListen != "" {
		wsBroadcaster = telemetry.NewBroadcaster()
	}

	if cfg.Telemetry.MQTTBroker != "" {
		pub, err := telemetry.NewMQTTPublisher(cfg.Telemetry.MQTTBroker, "polarflux/"+cfg.RunID, time.Second)
		if err != nil {
			log.Printf("mqtt telemetry disabled: %v", err)
		} else {
			pub.Start(ctx, coord.Status)
			log.Printf("publishing telemetry to %s", cfg.Telemetry.MQTTBroker)
		}
	}

	if wsBroadcaster != nil {
		go runWebsocketMux(ctx, cfg.Telemetry.WebsocketListen, wsBroadcaster, coord)
	}

	if cfg.Telemetry.MCPListen != "" {
		go func() {
			log.Printf("mcp control surface listening on %s", cfg.Telemetry.MCPListen)
			if err := http.ListenAndServe(cfg.Telemetry.MCPListen, mcpServer); err != nil && err != http.ErrServerClosed {
				log.Printf("mcp server error: %v", err)
			}
		}()
	}

	go func() {
		log.Printf("metrics listening on %s", cfg.Telemetry.MetricsListen)
		if err := metrics.Serve(ctx, cfg.Telemetry.MetricsListen); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	var advertiser *discovery.Advertiser
	if cfg.Telemetry.DiscoveryEnabled {
		name := "polarflux-" + cfg.RunID[:8]
		port := 0
		if _, p, err := splitPort(cfg.Telemetry.MetricsListen); err == nil {
			port = p
		}
		advertiser, err = discovery.Advertise(name, port, map[string]string{
			"run_id":  cfg.RunID,
			"version": "1.0.0",
		})
		if err != nil {
			log.Printf("mDNS advertisement disabled: %v", err)
		} else {
			log.Printf("advertising %s on the local network", name)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down")
	cancel()
	if advertiser != nil {
		advertiser.Shutdown()
	}
	coord.Stop()
	source.Close()
}

func runWebsocketMux(ctx context.Context, listen string, b *telemetry.Broadcaster, coord *pipeline.Coordinator) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/status", b.Handler)
	srv := &http.Server{Addr: listen, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.Broadcast(coord.Status())
			}
		}
	}()

	log.Printf("websocket telemetry listening on %s", listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("websocket server error: %v", err)
	}
}

func splitPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

func applyConfigField(cfg *config.Config, field string, raw interface{}) error {
	str, _ := raw.(string)
	switch field {
	case "gamma":
		return setFloat(&cfg.Gamma, str)
	case "saturation":
		return setFloat(&cfg.Saturation, str)
	case "brightness":
		return setFloat(&cfg.Brightness, str)
	case "calibration_r":
		return setFloat(&cfg.CalibrationR, str)
	case "calibration_g":
		return setFloat(&cfg.CalibrationG, str)
	case "calibration_b":
		return setFloat(&cfg.CalibrationB, str)
	case "power_limit":
		return setFloat(&cfg.PowerLimit, str)
	default:
		return nil // unknown fields are silently ignored, matching the patch's best-effort contract
	}
}

func setFloat(dst *float64, raw string) error {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

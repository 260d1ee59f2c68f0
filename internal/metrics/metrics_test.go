package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

// New registers collectors into the global Prometheus registry and panics
// on a second registration, so every subtest below shares one Metrics
// instance instead of calling New() repeatedly.
func TestMetrics(t *testing.T) {
	m := New()

	t.Run("ObserveFrame and ObserveSerialWrite record without panicking", func(t *testing.T) {
		m.ObserveFrame(5 * time.Millisecond)
		m.ObserveSerialWrite(4 * time.Millisecond)
	})

	t.Run("SetPowerLimited toggles the gauge", func(t *testing.T) {
		m.SetPowerLimited(true)
		m.SetPowerLimited(false)
	})

	t.Run("IncError labels by kind", func(t *testing.T) {
		m.IncError("config_invalid")
		m.IncError("serial_write_failed")
	})

	t.Run("IncDroppedFrame and IncSerialDisconnect", func(t *testing.T) {
		m.IncDroppedFrame()
		m.IncSerialDisconnect()
	})

	t.Run("Serve exposes /metrics and shuts down on cancel", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		addr := ln.Addr().String()
		ln.Close()

		ctx, cancel := context.WithCancel(context.Background())
		serveErr := make(chan error, 1)
		go func() { serveErr <- Serve(ctx, addr) }()

		// Give the server a moment to start listening.
		var resp *http.Response
		for i := 0; i < 20; i++ {
			resp, err = http.Get(fmt.Sprintf("http://%s/metrics", addr))
			if err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		if err != nil {
			t.Fatalf("GET /metrics: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if len(body) == 0 {
			t.Fatalf("expected non-empty metrics output")
		}

		cancel()
		if err := <-serveErr; err != nil {
			t.Fatalf("Serve returned error after cancel: %v", err)
		}
	})
}

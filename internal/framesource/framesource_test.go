package framesource

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"
)

func dialAndSendFrame(t *testing.T, addr string, w, h, stride int, pts int64, fill byte) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], magic)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(w))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(h))
	binary.BigEndian.PutUint32(hdr[12:16], uint32(stride))
	binary.BigEndian.PutUint64(hdr[16:24], uint64(pts))

	if _, err := conn.Write(hdr[:]); err != nil {
		t.Fatalf("write header: %v", err)
	}
	payload := make([]byte, stride*h)
	for i := range payload {
		payload[i] = fill
	}
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
}

func TestListenerDeliversFrame(t *testing.T) {
	l, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	addr := l.ln.Addr().String()
	go dialAndSendFrame(t, addr, 16, 8, 64, 123456789, 0x42)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f, err := l.NextFrame(ctx)
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if f.Width != 16 || f.Height != 8 || f.Stride != 64 {
		t.Fatalf("unexpected frame dimensions: %+v", f)
	}
	if len(f.Pixels) != 64*8 {
		t.Fatalf("expected %d pixel bytes, got %d", 64*8, len(f.Pixels))
	}
	if f.Pixels[0] != 0x42 {
		t.Fatalf("expected pixel fill 0x42, got %#x", f.Pixels[0])
	}
	if f.PTS.UnixNano() != 123456789 {
		t.Fatalf("expected PTS 123456789, got %d", f.PTS.UnixNano())
	}
}

func TestListenerRejectsBadMagic(t *testing.T) {
	l, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	addr := l.ln.Addr().String()
	go func() {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return
		}
		defer conn.Close()
		var hdr [headerSize]byte
		binary.BigEndian.PutUint32(hdr[0:4], 0xdeadbeef)
		conn.Write(hdr[:])
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := l.NextFrame(ctx); err == nil {
		t.Fatalf("expected an error for a bad magic header")
	}
}

func TestListenerCancelledContext(t *testing.T) {
	l, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.NextFrame(ctx); err == nil {
		t.Fatalf("expected NextFrame to return promptly on a cancelled context")
	}
}

// Package framesource implements the one frame.Source adapter this module
// ships: a local TCP listener that accepts raw BGRA frame buffers pushed by
// an external capture process. Platform screen-capture permission flow and
// the capture backend itself are out-of-scope collaborators (spec §1); this
// package only defines the wire format the core consumes from whatever
// produces those buffers. The binary fixed-header-then-payload framing
// follows WSJTXUDPBroadcaster (decoder_wsjtx_udp.go), adapted from UDP
// datagrams to a TCP stream, since frames here are far larger than a UDP
// packet; the header carries no length field, the payload length is
// stride*height.
package framesource

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sunaitech/polarflux/internal/frame"
	"github.com/sunaitech/polarflux/internal/perrors"
)

// magic identifies the start of a frame header so a misaligned or garbled
// stream is detected eagerly rather than interpreted as a huge bogus frame.
const magic uint32 = 0x50464c58 // "PFLX"

// header is the fixed-size preamble sent before every frame's pixel
// payload: magic, width, height, stride (bytes per row), and the
// producer's capture timestamp as Unix nanoseconds.
type header struct {
	Magic   uint32
	Width   uint32
	Height  uint32
	Stride  uint32
	PTSNano int64
}

const headerSize = 4 + 4 + 4 + 4 + 8

// maxFrameBytes bounds a single payload so a corrupt header can't make the
// reader allocate an unbounded buffer.
const maxFrameBytes = 64 << 20 // 64 MiB, well above any realistic capture frame

// Listener accepts a single producer connection at a time and adapts its
// frame stream to frame.Source. Reconnection is the producer's
// responsibility; Listener simply waits for the next connection once one
// drops.
type Listener struct {
	ln net.Listener

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

// Listen starts accepting producer connections on addr (e.g. "127.0.0.1:7890").
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("framesource: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// NextFrame implements frame.Source. It blocks until a frame is available or
// ctx is cancelled. A dropped connection surfaces as a FrameSourceTransient
// error; the coordinator's run loop (internal/pipeline) calls NextFrame
// again on error, which accepts a fresh connection.
func (l *Listener) NextFrame(ctx context.Context) (frame.Frame, error) {
	type result struct {
		f   frame.Frame
		err error
	}
	done := make(chan result, 1)

	go func() {
		f, err := l.nextFrame()
		done <- result{f, err}
	}()

	select {
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	case res := <-done:
		return res.f, res.err
	}
}

func (l *Listener) nextFrame() (frame.Frame, error) {
	l.mu.Lock()
	conn, r, err := l.currentConnLocked()
	l.mu.Unlock()
	if err != nil {
		return frame.Frame{}, err
	}

	var raw [headerSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		l.dropConn(conn)
		return frame.Frame{}, perrors.New(perrors.FrameSourceTransient, err)
	}

	h := header{
		Magic:   binary.BigEndian.Uint32(raw[0:4]),
		Width:   binary.BigEndian.Uint32(raw[4:8]),
		Height:  binary.BigEndian.Uint32(raw[8:12]),
		Stride:  binary.BigEndian.Uint32(raw[12:16]),
		PTSNano: int64(binary.BigEndian.Uint64(raw[16:24])),
	}
	if h.Magic != magic {
		l.dropConn(conn)
		return frame.Frame{}, perrors.New(perrors.FrameSourceTransient, fmt.Errorf("framesource: bad magic %#x", h.Magic))
	}

	size := uint64(h.Stride) * uint64(h.Height)
	if size == 0 || size > maxFrameBytes {
		l.dropConn(conn)
		return frame.Frame{}, perrors.New(perrors.FrameSourceTransient, fmt.Errorf("framesource: implausible frame size %d", size))
	}

	pixels := make([]byte, size)
	if _, err := io.ReadFull(r, pixels); err != nil {
		l.dropConn(conn)
		return frame.Frame{}, perrors.New(perrors.FrameSourceTransient, err)
	}

	return frame.Frame{
		Width:  int(h.Width),
		Height: int(h.Height),
		Stride: int(h.Stride),
		Pixels: pixels,
		PTS:    time.Unix(0, h.PTSNano),
	}, nil
}

// currentConnLocked returns the active connection, accepting a new one if
// none is currently held.
func (l *Listener) currentConnLocked() (net.Conn, *bufio.Reader, error) {
	if l.conn != nil {
		return l.conn, l.r, nil
	}
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, nil, perrors.New(perrors.FrameSourceTransient, err)
	}
	l.conn = conn
	l.r = bufio.NewReaderSize(conn, 1<<20)
	return l.conn, l.r, nil
}

func (l *Listener) dropConn(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == conn {
		conn.Close()
		l.conn = nil
		l.r = nil
	}
}

// Close stops accepting new producer connections and closes any active one.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.mu.Unlock()
	return l.ln.Close()
}

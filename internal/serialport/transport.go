package serialport

import (
	"log"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sunaitech/polarflux/internal/perrors"
)

// Transport owns the serial write path (spec §5): Send calls are
// serialised by the transport mutex and run on the caller's goroutine (there
// is no separate writer goroutine), each performing a blocking write +
// tcdrain + 4ms jitter-control sleep, and disconnects are detected by errno.
//
// The mutex-guarded connection flag and the "fire the disconnect callback
// exactly once per session" shape follow RotctlClient (rotctl.go):
// connected bool + sync.Mutex + a single-shot transition to the
// disconnected state.
type Transport struct {
	mu           sync.Mutex
	port         *Port
	connected    bool
	onDisconnect func()
	disconnected sync.Once
}

// Connect opens and configures the serial device (spec §4.I).
func Connect(path string, baud int, onDisconnect func()) (*Transport, error) {
	p, err := Open(path, baud)
	if err != nil {
		return nil, err
	}
	return &Transport{port: p, connected: true, onDisconnect: onDisconnect}, nil
}

// IsConnected reports whether the transport still owns a live descriptor.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Disconnect closes the descriptor and marks the transport disconnected,
// without firing onDisconnect (that callback is reserved for errors
// observed on a write, per spec §4.I/§5).
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	t.connected = false
	return t.port.Close()
}

// Send serialises packet onto the write path: a blocking write, a
// tcdrain, then a 4ms sleep for jitter control (spec §4.I "Write
// contract"). Only one write is ever in flight because Send itself holds
// the transport lock for the duration of the write — the coordinator
// (spec §4.J) is the sole caller and already serialises frames.
func (t *Transport) Send(packet []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return perrors.New(perrors.SerialWriteFailed, errNotConnected{})
	}

	n, err := t.port.file.Write(packet)
	if err != nil {
		return t.handleWriteError(err)
	}
	if n != len(packet) {
		// Partial write: not fatal; tcdrain still issued below (spec §4.I
		// "Write contract", §7 PartialWrite).
		log.Printf("[serialport] partial write: wrote %d of %d bytes", n, len(packet))
	}

	if err := unix.IoctlTcdrain(t.port.fd); err != nil {
		return t.handleWriteError(err)
	}

	time.Sleep(4 * time.Millisecond)
	return nil
}

// handleWriteError classifies a write/tcdrain error. Errors matching
// ENXIO/EBADF/EIO eagerly close the descriptor and fire onDisconnect
// exactly once per session (spec §3 "Lifecycle", §4.I, §7).
func (t *Transport) handleWriteError(err error) error {
	code := errnoOf(err)
	switch code {
	case int(unix.ENXIO), int(unix.EBADF), int(unix.EIO):
		t.connected = false
		t.port.Close()
		t.disconnected.Do(func() {
			if t.onDisconnect != nil {
				go t.onDisconnect()
			}
		})
	}
	return perrors.NewWriteFailed(code, err)
}

func errnoOf(err error) int {
	if errno, ok := err.(unix.Errno); ok {
		return int(errno)
	}
	return 0
}

type errNotConnected struct{}

func (errNotConnected) Error() string { return "serial port not connected" }

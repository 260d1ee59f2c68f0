// Package serialport implements the serial transport (spec §4.I, §6):
// raw-mode termios configuration, device enumeration, the Adalight
// handshake, and the blocking framed writer with disconnect detection.
//
// The mutex-guarded connection state and sentinel-error-driven
// disconnect path follow rotctl.go's reconnecting TCP client; here the
// transport is a local serial device rather than a TCP daemon, so the
// actual I/O is POSIX termios via golang.org/x/sys/unix instead of
// net.Conn.
package serialport

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sunaitech/polarflux/internal/perrors"
)

// Port wraps an open, raw-mode-configured serial device descriptor.
type Port struct {
	file *os.File
	fd   int
	path string
}

// Open opens path read-write with no controlling terminal, in blocking
// mode, and configures it 8N1/raw per spec §4.I. baud selects a preset
// rate (see Presets) or an arbitrary custom integer rate.
func Open(path string, baud int) (*Port, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_NOCTTY, 0)
	if err != nil {
		return nil, perrors.New(perrors.SerialOpenFailed, err)
	}

	// Fd() forces the descriptor into blocking mode, required by the
	// write contract (blocking write + tcdrain, spec §4.I).
	fd := int(f.Fd())

	p := &Port{file: f, fd: fd, path: path}
	if err := p.configure(baud); err != nil {
		f.Close()
		return nil, perrors.New(perrors.SerialConfigureFailed, err)
	}
	return p, nil
}

// Close closes the underlying descriptor.
func (p *Port) Close() error {
	return p.file.Close()
}

// configure sets 8 data bits, no parity, 1 stop bit, no flow control, raw
// input/output, VMIN=1/VTIME=0, and the requested baud rate (spec §4.I).
func (p *Port) configure(baud int) error {
	term, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("TCGETS: %w", err)
	}

	term.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	term.Oflag &^= unix.OPOST
	term.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	term.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS
	term.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD

	term.Cc[unix.VMIN] = 1
	term.Cc[unix.VTIME] = 0

	if code, ok := presetCode(baud); ok {
		term.Cflag &^= unix.CBAUD
		term.Cflag |= code
		term.Ispeed = uint32(baud)
		term.Ospeed = uint32(baud)
		if err := unix.IoctlSetTermios(p.fd, unix.TCSETS, term); err != nil {
			return fmt.Errorf("TCSETS: %w", err)
		}
		return nil
	}

	// Custom, non-standard rate: fall back to the Linux termios2/BOTHER
	// ioctl path (spec §9 "Open question — custom baud").
	term.Cflag &^= unix.CBAUD
	term.Cflag |= unix.BOTHER
	term.Ispeed = uint32(baud)
	term.Ospeed = uint32(baud)
	if err := unix.IoctlSetTermios(p.fd, unix.TCSETS2, term); err != nil {
		return fmt.Errorf("TCSETS2 (custom baud %d): %w", baud, err)
	}
	return nil
}

// GetDeviceInfo performs the Adalight handshake (spec §4.I "Handshake",
// §6): flush input, write the literal probe, wait 100ms, read up to 64
// bytes, and return the trimmed UTF-8 response.
func (p *Port) GetDeviceInfo() (string, bool) {
	unix.IoctlTcflush(p.fd, unix.TCIFLUSH)

	if _, err := p.file.Write([]byte("Moni-A")); err != nil {
		return "", false
	}

	time.Sleep(100 * time.Millisecond)

	buf := make([]byte, 64)
	n, err := p.file.Read(buf)
	if err != nil || n == 0 {
		return "", false
	}

	resp := strings.TrimSpace(string(buf[:n]))
	if resp == "" {
		return "", false
	}
	checkFirmwareVersion(resp)
	return resp, true
}

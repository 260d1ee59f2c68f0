package serialport

import "golang.org/x/sys/unix"

// Presets lists the standard baud rates the device supports, plus direct
// custom integer rates up to MaxCustomBaud (spec §6).
var Presets = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 500000, 921600}

// MaxCustomBaud is the highest custom integer rate accepted (spec §6).
const MaxCustomBaud = 3_000_000

var presetCodes = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	500000: unix.B500000,
	921600: unix.B921600,
}

// presetCode returns the termios CBAUD code for one of the nine standard
// presets, or ok=false if baud is not a preset (in which case the caller
// falls back to the custom-rate ioctl path).
func presetCode(baud int) (uint32, bool) {
	code, ok := presetCodes[baud]
	return code, ok
}

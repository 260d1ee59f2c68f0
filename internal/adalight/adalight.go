// Package adalight frames a colour sequence as an Adalight/Skydimo
// protocol packet (spec §6).
package adalight

import (
	"encoding/binary"
	"fmt"

	"github.com/sunaitech/polarflux/internal/repair"
)

// Magic is the three-byte "Ada" header.
var Magic = [3]byte{0x41, 0x64, 0x61}

// SkydimoCommand is the fourth byte of the Skydimo variant: no XOR
// checksum is appended after the header (spec §6).
const SkydimoCommand = 0x00

// Frame serialises seq as a single contiguous Adalight/Skydimo packet:
// "Ada" + 0x00 + big-endian 16-bit LED count + RGB triplets.
func Frame(seq []repair.RGB) ([]byte, error) {
	n := len(seq)
	if n > 0xFFFF {
		return nil, fmt.Errorf("adalight: %d LEDs exceeds 16-bit count field", n)
	}

	buf := make([]byte, 6+3*n)
	buf[0], buf[1], buf[2] = Magic[0], Magic[1], Magic[2]
	buf[3] = SkydimoCommand
	binary.BigEndian.PutUint16(buf[4:6], uint16(n))

	off := 6
	for _, c := range seq {
		buf[off+0] = c.R
		buf[off+1] = c.G
		buf[off+2] = c.B
		off += 3
	}

	return buf, nil
}

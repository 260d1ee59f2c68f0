package serialport

import (
	"log"

	"github.com/hashicorp/go-version"
)

// MinFirmwareVersion is the lowest device firmware version this transport
// has been validated against. Devices reporting an older version are
// still accepted (this is advisory only, per spec §4.I's handshake, which
// never makes version compatibility a hard requirement).
const MinFirmwareVersion = "1.0.0"

// checkFirmwareVersion parses resp (the handshake response) as a semantic
// version and logs a warning if it is older than MinFirmwareVersion. A
// response that doesn't parse as a version is silently accepted — many
// devices answer with a free-form name rather than a version string.
func checkFirmwareVersion(resp string) {
	min, err := version.NewVersion(MinFirmwareVersion)
	if err != nil {
		return
	}

	got, err := version.NewVersion(resp)
	if err != nil {
		return
	}

	if got.LessThan(min) {
		log.Printf("[serialport] device reports firmware %s, older than minimum supported %s", got, min)
	}
}

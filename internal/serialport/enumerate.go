package serialport

import (
	"os"
	"path/filepath"
	"strings"
)

// devicePrefixes are the /dev entry prefixes that identify a candidate
// LED controller (spec §6 "Device enumeration").
var devicePrefixes = []string{"cu.usbserial", "cu.usbmodem", "cu.wch"}

// Enumerate scans /dev for entries matching the known device prefixes and
// returns their full paths.
func Enumerate() ([]string, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		for _, prefix := range devicePrefixes {
			if strings.HasPrefix(name, prefix) {
				out = append(out, filepath.Join("/dev", name))
				break
			}
		}
	}
	return out, nil
}

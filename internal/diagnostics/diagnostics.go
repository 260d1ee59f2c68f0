// Package diagnostics captures an optional, bounded trace of per-frame
// pipeline state for offline debugging (spec SPEC_FULL.md §4.K). The
// zstd encoder-pool pattern follows pcm_binary.go's sync.Pool-recycled
// codec (klauspost/compress/zstd), reused here to compress trace records
// instead of PCM audio packets.
package diagnostics

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// FrameTrace is one recorded frame's pipeline state.
type FrameTrace struct {
	Timestamp      time.Time `json:"timestamp"`
	SceneIntensity float64   `json:"scene_intensity"`
	PowerLimited   bool      `json:"power_limited"`
	ZoneCount      int       `json:"zone_count"`
}

var encoderPool = sync.Pool{
	New: func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return enc
	},
}

// Dumper appends zstd-compressed, newline-delimited JSON trace records to
// a file. Disabled (nil Dumper) by default — capturing a trace is an
// explicit opt-in diagnostic, never part of the normal processing path.
type Dumper struct {
	mu   sync.Mutex
	file *os.File
	max  int
	n    int
}

// Open creates (or truncates) path and returns a Dumper that stops
// recording once it has written maxFrames records.
func Open(path string, maxFrames int) (*Dumper, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Dumper{file: f, max: maxFrames}, nil
}

// Record appends one compressed trace entry. No-ops once maxFrames have
// been written.
func (d *Dumper) Record(t FrameTrace) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.n >= d.max {
		return nil
	}

	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	enc := encoderPool.Get().(*zstd.Encoder)
	enc.Reset(d.file)
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		encoderPool.Put(enc)
		return err
	}
	err = enc.Close()
	encoderPool.Put(enc)
	if err != nil {
		return err
	}

	d.n++
	return nil
}

// Close closes the underlying file.
func (d *Dumper) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}

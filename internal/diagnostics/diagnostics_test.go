package diagnostics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestDumperStopsAfterMaxFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.zst")
	d, err := Open(path, 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := d.Record(FrameTrace{Timestamp: time.Now(), SceneIntensity: 0.5, ZoneCount: 8}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d.n != 2 {
		t.Fatalf("expected recording to stop at 2 frames, got %d", d.n)
	}
}

func TestDumperRecordsDecodableFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.zst")
	d, err := Open(path, 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := []FrameTrace{
		{SceneIntensity: 0.1, ZoneCount: 4},
		{SceneIntensity: 0.9, PowerLimited: true, ZoneCount: 8},
	}
	for _, ft := range want {
		if err := d.Record(ft); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace file: %v", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)
	var got []FrameTrace
	for scanner.Scan() {
		var ft FrameTrace
		if err := json.Unmarshal(scanner.Bytes(), &ft); err != nil {
			t.Fatalf("unmarshal trace record: %v", err)
		}
		got = append(got, ft)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i, ft := range got {
		if ft.SceneIntensity != want[i].SceneIntensity || ft.ZoneCount != want[i].ZoneCount || ft.PowerLimited != want[i].PowerLimited {
			t.Fatalf("record %d mismatch: got %+v, want %+v", i, ft, want[i])
		}
	}
}

package adalight

import (
	"testing"

	"github.com/sunaitech/polarflux/internal/repair"
)

func TestFrameLengthAndCountEncoding(t *testing.T) {
	for _, n := range []int{1, 255, 256, 65535} {
		seq := make([]repair.RGB, n)
		buf, err := Frame(seq)
		if err != nil {
			t.Fatalf("N=%d: Frame returned error: %v", n, err)
		}
		wantLen := 6 + 3*n
		if len(buf) != wantLen {
			t.Fatalf("N=%d: packet length %d, want %d", n, len(buf), wantLen)
		}
		gotN := int(buf[4])<<8 | int(buf[5])
		if gotN != n {
			t.Fatalf("N=%d: count field decoded as %d", n, gotN)
		}
		if buf[0] != 0x41 || buf[1] != 0x64 || buf[2] != 0x61 || buf[3] != 0x00 {
			t.Fatalf("N=%d: header bytes wrong: % x", n, buf[:4])
		}
	}
}

func TestFrameRejectsOversizedSequence(t *testing.T) {
	_, err := Frame(make([]repair.RGB, 65536))
	if err == nil {
		t.Fatal("expected error for sequence exceeding 16-bit count")
	}
}

package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

type rampSource struct{ next float32 }

func (r *rampSource) Process(dst []float32) {
	for i := range dst {
		dst[i] = r.next
		r.next += 0.25
	}
}

func TestStreamReaderEncodesFrames(t *testing.T) {
	r := NewStreamReader(&rampSource{})
	p := make([]byte, 8*3+5)
	n, err := r.Read(p)
	if err != nil || n != 24 {
		t.Fatalf("read = %d, %v", n, err)
	}
	for i := 0; i < 6; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != float32(i)*0.25 {
			t.Fatalf("sample %d = %v", i, got)
		}
	}
	if r.Frames() != 3 {
		t.Fatalf("expected 3 frames, got %d", r.Frames())
	}
	if n, _ := r.Read(make([]byte, 7)); n != 0 {
		t.Fatalf("partial frame should read nothing, got %d", n)
	}
}

package liveloop

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func renderDemo(t *testing.T) []float32 {
	t.Helper()
	samples, err := RenderSamples(48000, 1200*time.Millisecond, func(rt *Runtime) error {
		if err := rt.Define("b", func(it *Iteration) error {
			it.UseSynth("saw")
			return it.Play("0.25 0 1 2 4", Amp(0.5))
		}); err != nil {
			return err
		}
		return rt.Define("d", func(it *Iteration) error {
			it.Sample("drum_bass_hard")
			return it.Sleep(0.5)
		}, WithSync("b"))
	}, WithBPM(120))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return samples
}

func TestRenderSamplesIsDeterministic(t *testing.T) {
	a := renderDemo(t)
	b := renderDemo(t)
	if len(a) != 48000*12/10*2 {
		t.Fatalf("unexpected sample count %d", len(a))
	}
	var wa, wb bytes.Buffer
	if err := WriteWAV(&wa, a, 48000); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	WriteWAV(&wb, b, 48000)
	if sha256.Sum256(wa.Bytes()) != sha256.Sum256(wb.Bytes()) {
		t.Fatalf("two renders of the same loops differ")
	}
	if got := binary.LittleEndian.Uint32(wa.Bytes()[40:]); int(got) != len(a)*4 {
		t.Fatalf("data chunk size = %d", got)
	}
}

func TestRenderSamplesIsAudible(t *testing.T) {
	samples := renderDemo(t)
	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if peak < 0.01 {
		t.Fatalf("render is silent, peak %v", peak)
	}
	for i, s := range samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			t.Fatalf("sample %d is not finite", i)
		}
	}
}

func TestRenderFile(t *testing.T) {
	path := writeLoopSet(t, loopSet)
	samples, err := RenderFile(path, 22050, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("render file: %v", err)
	}
	if len(samples) != 22050 {
		t.Fatalf("expected 11025 frames, got %d samples", len(samples))
	}
	if _, err := RenderFile(path+".missing", 22050, time.Second); err == nil {
		t.Fatalf("expected a load error")
	}
	if _, err := RenderSamples(0, time.Second, func(*Runtime) error { return nil }); err == nil {
		t.Fatalf("expected sample rate error")
	}
}

func TestRenderFileAppliesEffects(t *testing.T) {
	dry, err := RenderFile(writeLoopSet(t, loopSet), 22050, 2*time.Second)
	if err != nil {
		t.Fatalf("render dry: %v", err)
	}
	wet, err := RenderFile(writeLoopSet(t, "fx: [{echo: {phase: 0.125}}]\n"+loopSet), 22050, 2*time.Second)
	if err != nil {
		t.Fatalf("render wet: %v", err)
	}
	if len(dry) != len(wet) {
		t.Fatalf("lengths differ: %d %d", len(dry), len(wet))
	}
	differ := false
	for i := range dry {
		if dry[i] != wet[i] {
			differ = true
			break
		}
	}
	if !differ {
		t.Fatalf("the echo left the render unchanged")
	}
}

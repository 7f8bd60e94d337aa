package voice

import (
	"math"
	"testing"
)

func peak(e *Engine, frames int) float64 {
	left := make([]float32, frames)
	right := make([]float32, frames)
	e.Render(left, right)
	var p float64
	for _, s := range left {
		p = math.Max(p, math.Abs(float64(s)))
	}
	return p
}

func TestNoteSoundsUntilReleased(t *testing.T) {
	e := New(48000, DefaultParams())
	id := e.NoteOn(0, 60, 100, "saw")
	if p := peak(e, 4800); p < 0.01 {
		t.Fatalf("expected audible output, peak %v", p)
	}
	if e.ActiveVoiceCount() != 1 {
		t.Fatalf("expected one voice while held")
	}
	e.NoteOff(id)
	peak(e, 48000)
	if e.ActiveVoiceCount() != 0 {
		t.Fatalf("voice should finish after release, %d active", e.ActiveVoiceCount())
	}
}

func TestDrumVoicesEndByThemselves(t *testing.T) {
	e := New(48000, DefaultParams())
	for _, key := range []int{36, 38, 42, 49, 76} {
		e.NoteOn(DrumChannel, key, 100, "")
	}
	if p := peak(e, 2400); p < 0.01 {
		t.Fatalf("expected drums to sound, peak %v", p)
	}
	peak(e, 5*48000)
	if n := e.ActiveVoiceCount(); n != 0 {
		t.Fatalf("drum voices should decay to silence, %d still active", n)
	}
}

func TestVoiceStealingReusesOldest(t *testing.T) {
	p := DefaultParams()
	p.Voices = 2
	e := New(48000, p)
	first := e.NoteOn(0, 60, 100, "square")
	peak(e, 10)
	e.NoteOn(0, 64, 100, "square")
	peak(e, 10)
	e.NoteOn(0, 67, 100, "square")
	if e.ActiveVoiceCount() != 2 {
		t.Fatalf("voice count must stay bounded")
	}
	for _, v := range e.voices {
		if v.id == first {
			t.Fatalf("oldest voice should have been stolen")
		}
	}
}

func TestParseWave(t *testing.T) {
	if w, ok := ParseWave("saw"); !ok || w != WaveSaw {
		t.Fatalf("saw not recognised")
	}
	if w, ok := ParseWave("fm"); ok || w != WaveSine {
		t.Fatalf("unknown synth should fall back to sine")
	}
	if len(WaveNames()) != len(waveNames) {
		t.Fatalf("wave names incomplete")
	}
}

package render

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/cbegin/liveloop-go/internal/event"
	"github.com/cbegin/liveloop-go/internal/fx"
)

type call struct {
	frame int64
	on    bool
	ch    int
	key   int
	id    int
}

type fakeVoicer struct {
	frame int64
	calls []call
	next  int
}

func (f *fakeVoicer) NoteOn(channel, key, velocity int, instrument string) int {
	id := f.next
	f.next++
	f.calls = append(f.calls, call{frame: f.frame, on: true, ch: channel, key: key, id: id})
	return id
}

func (f *fakeVoicer) NoteOff(id int) {
	f.calls = append(f.calls, call{frame: f.frame, id: id})
}

func (f *fakeVoicer) Render(left, right []float32) {
	for i := range left {
		left[i], right[i] = 0.5, -0.5
	}
	f.frame += int64(len(left))
}

func TestSynthStartsNotesAtFrameOffsets(t *testing.T) {
	v := &fakeVoicer{}
	s := NewSynth(1000, v)
	s.Emit(event.Event{Kind: event.KindNote, Note: 60, Time: 10 * time.Millisecond, Duration: 20 * time.Millisecond, Amp: 1})
	s.Emit(event.Event{Kind: event.KindSample, Sample: "drum_bass_hard", Time: 15 * time.Millisecond, Amp: 1})

	dst := make([]float32, 2*64)
	s.Process(dst)
	want := []call{
		{frame: 10, on: true, ch: 0, key: 60, id: 0},
		{frame: 15, on: true, ch: 9, key: 36, id: 1},
		{frame: 30, id: 0},
	}
	if len(v.calls) != len(want) {
		t.Fatalf("unexpected calls %+v", v.calls)
	}
	for i, c := range want {
		if v.calls[i] != c {
			t.Fatalf("call %d: got %+v want %+v", i, v.calls[i], c)
		}
	}
	if dst[0] != 0.5 || dst[1] != -0.5 || dst[127] != -0.5 {
		t.Fatalf("output not interleaved")
	}
	if s.Now() != 64*time.Millisecond {
		t.Fatalf("unexpected clock %v", s.Now())
	}
	if s.Pending() != 1 {
		t.Fatalf("drum release should still be queued, got %d", s.Pending())
	}
}

func TestSynthLateEventsStartImmediately(t *testing.T) {
	v := &fakeVoicer{}
	s := NewSynth(1000, v)
	s.Process(make([]float32, 2*50))
	s.Emit(event.Event{Kind: event.KindNote, Note: 64, Time: 10 * time.Millisecond, Duration: time.Millisecond})
	s.Process(make([]float32, 2*10))
	if s.Late() != 1 || len(v.calls) < 1 || v.calls[0].frame != 50 {
		t.Fatalf("late note should start at the current frame: %+v", v.calls)
	}
}

func TestSynthRejectsUnknownSample(t *testing.T) {
	s := NewSynth(1000, &fakeVoicer{})
	if err := s.Emit(event.Event{Kind: event.KindSample, Sample: "vinyl_hiss"}); err == nil {
		t.Fatalf("expected error for unmapped sample")
	}
}

func TestBuiltinProducesSound(t *testing.T) {
	s := NewBuiltin(48000)
	s.Emit(event.Event{Kind: event.KindNote, Note: 60, Duration: 100 * time.Millisecond, Amp: 1, Instrument: "saw"})
	buf := make([]float32, 2*4800)
	s.Process(buf)
	var peak float64
	for _, x := range buf {
		peak = math.Max(peak, math.Abs(float64(x)))
	}
	if peak < 0.01 {
		t.Fatalf("expected audible output, peak %v", peak)
	}
}

func TestSynthAppliesEffects(t *testing.T) {
	s := NewSynth(1000, &fakeVoicer{})
	chain, err := fx.Build(1000, []fx.Spec{{Name: "distortion", Opts: map[string]float64{"mix": 0}}})
	if err != nil {
		t.Fatal(err)
	}
	s.SetEffects(chain)
	buf := make([]float32, 2*8)
	s.Process(buf)
	if buf[0] != 0.5 {
		t.Fatalf("a dry chain should pass the voice through, got %f", buf[0])
	}
	chain, _ = fx.Build(1000, []fx.Spec{{Name: "distortion", Opts: map[string]float64{"distort": 0.9}}})
	s.SetEffects(chain)
	s.Process(buf)
	if buf[0] <= 0.9 || buf[1] >= -0.9 {
		t.Fatalf("expected driven output, got %f %f", buf[0], buf[1])
	}
}

type fakeMelty struct {
	programs []int32
	ons      [][2]int32
	offs     [][2]int32
}

func (f *fakeMelty) ProcessMidiMessage(channel, command, data1, data2 int32) {
	if command == 0xC0 {
		f.programs = append(f.programs, data1)
	}
}
func (f *fakeMelty) NoteOn(channel, key, vel int32) { f.ons = append(f.ons, [2]int32{channel, key}) }
func (f *fakeMelty) NoteOff(channel, key int32)     { f.offs = append(f.offs, [2]int32{channel, key}) }
func (f *fakeMelty) Render(left, right []float32)   {}

func TestSoundFontVoicerTracksNotes(t *testing.T) {
	m := &fakeMelty{}
	sf := newSoundFontVoicer(m)
	a := sf.NoteOn(0, 60, 90, "saw")
	sf.NoteOn(0, 62, 90, "saw")
	sf.NoteOn(9, 36, 90, "saw")
	sf.NoteOff(a)
	sf.NoteOff(a)
	if len(m.programs) != 1 || m.programs[0] != 81 {
		t.Fatalf("expected one program change to saw lead, got %v", m.programs)
	}
	if len(m.ons) != 3 || m.ons[2] != [2]int32{9, 36} {
		t.Fatalf("unexpected note ons %v", m.ons)
	}
	if len(m.offs) != 1 || m.offs[0] != [2]int32{0, 60} {
		t.Fatalf("unexpected note offs %v", m.offs)
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	wav := EncodeWAVFloat32LE([]float32{0, 1, -1, 0.5}, 48000, 2)
	if !bytes.Equal(wav[:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Fatalf("bad riff header")
	}
	if binary.LittleEndian.Uint16(wav[20:]) != 3 || binary.LittleEndian.Uint32(wav[24:]) != 48000 {
		t.Fatalf("bad format chunk")
	}
	if binary.LittleEndian.Uint32(wav[40:]) != 16 || len(wav) != 60 {
		t.Fatalf("bad data size")
	}
	if math.Float32frombits(binary.LittleEndian.Uint32(wav[48:])) != 1 {
		t.Fatalf("bad sample payload")
	}
}

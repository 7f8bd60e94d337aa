package midiout

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/liveloop-go/internal/event"
)

type fakeOut struct {
	sent [][]byte
	err  error
}

func (f *fakeOut) Send(msg []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, append([]byte(nil), msg...))
	return nil
}

func TestSinkQueuesNoteOffsUntilFlush(t *testing.T) {
	out := &fakeOut{}
	s := NewSink(out, WithChannel(2))
	err := s.Emit(event.Event{Kind: event.KindNote, Note: 60, Time: 0, Duration: 250 * time.Millisecond, Amp: 0.25})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if len(out.sent) != 1 || out.sent[0][0] != 0x92 || out.sent[0][1] != 60 || out.sent[0][2] != 25 {
		t.Fatalf("unexpected note on %v", out.sent)
	}
	s.Flush(100 * time.Millisecond)
	if len(out.sent) != 1 || s.Pending() != 1 {
		t.Fatalf("note off sent too early")
	}
	s.Flush(250 * time.Millisecond)
	if len(out.sent) != 2 || out.sent[1][0] != 0x82 || out.sent[1][1] != 60 {
		t.Fatalf("expected note off, got %v", out.sent)
	}
}

func TestSinkMapsSamplesToDrumChannel(t *testing.T) {
	out := &fakeOut{}
	s := NewSink(out)
	if err := s.Emit(event.Event{Kind: event.KindSample, Sample: "drum_cymbal_closed", Amp: 1}); err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if out.sent[0][0] != 0x99 || out.sent[0][1] != 42 || out.sent[0][2] != 100 {
		t.Fatalf("unexpected drum message %v", out.sent[0])
	}
	if err := s.Emit(event.Event{Kind: event.KindSample, Sample: "vinyl_scratch"}); err == nil {
		t.Fatalf("unmapped sample should be reported")
	}
	if err := s.Close(); err != nil || len(out.sent) != 2 || out.sent[1][0] != 0x89 {
		t.Fatalf("close should release the drum, got %v %v", out.sent, err)
	}
}

func TestSinkProgramChangeOnInstrumentSwitch(t *testing.T) {
	out := &fakeOut{}
	s := NewSink(out, WithPrograms(map[string]uint8{"saw": 81, "piano": 0}))
	for _, inst := range []string{"saw", "saw", "piano"} {
		s.Emit(event.Event{Kind: event.KindNote, Note: 64, Instrument: inst, Duration: time.Second, Amp: 1})
	}
	var programs []byte
	for _, msg := range out.sent {
		if msg[0]&0xf0 == 0xc0 {
			programs = append(programs, msg[1])
		}
	}
	if !bytes.Equal(programs, []byte{81, 0}) {
		t.Fatalf("unexpected program changes %v", programs)
	}
}

func TestSinkReportsPortErrors(t *testing.T) {
	closed := errors.New("port closed")
	s := NewSink(&fakeOut{err: closed})
	if err := s.Emit(event.Event{Kind: event.KindNote, Note: 60}); !errors.Is(err, closed) {
		t.Fatalf("expected port error, got %v", err)
	}
}

func TestDrumLookupFamilies(t *testing.T) {
	cases := map[string]uint8{
		"drum_bass_hard": 36,
		"bd_fat":         36,
		"sn_generic":     38,
		"hat_bdu":        42,
	}
	for name, want := range cases {
		if got, ok := GMDrums.Lookup(name); !ok || got != want {
			t.Fatalf("%s: got %d,%v want %d", name, got, ok, want)
		}
	}
}

func TestRecorderWritesReadableFile(t *testing.T) {
	r := NewRecorder(120)
	r.Emit(event.Event{Kind: event.KindNote, Loop: "b", Note: 60, Duration: 125 * time.Millisecond, Amp: 0.25})
	r.Emit(event.Event{Kind: event.KindNote, Loop: "b", Note: 62, Time: 125 * time.Millisecond, Duration: 125 * time.Millisecond, Amp: 0.25})
	r.Emit(event.Event{Kind: event.KindSample, Loop: "d", Sample: "drum_bass_hard", Amp: 1})

	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	sm, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if len(sm.Tracks) != 3 {
		t.Fatalf("expected tempo plus two loop tracks, got %d", len(sm.Tracks))
	}
	if changes := sm.TempoChanges(); len(changes) == 0 || changes[0].BPM != 120 {
		t.Fatalf("unexpected tempo %v", changes)
	}

	var ons []uint8
	var abs []uint32
	var now uint32
	for _, ev := range sm.Tracks[1] {
		now += ev.Delta
		var ch, key, vel uint8
		if midi.Message(ev.Message).GetNoteOn(&ch, &key, &vel) {
			ons = append(ons, key)
			abs = append(abs, now)
		}
	}
	// 125ms at 120 bpm is a quarter beat.
	if !bytes.Equal(ons, []byte{60, 62}) || abs[1] != 240 {
		t.Fatalf("unexpected loop b notes %v at %v", ons, abs)
	}
}

// Package midiout sends loop events to a MIDI port and records them as a
// Standard MIDI File.
package midiout

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/liveloop-go/internal/event"
)

// Out is the sending half of a MIDI port; drivers.Out satisfies it.
type Out interface {
	Send(msg []byte) error
}

type SinkOption func(*Sink)

func WithChannel(ch uint8) SinkOption {
	return func(s *Sink) { s.channel = ch & 0x0f }
}

func WithDrumChannel(ch uint8) SinkOption {
	return func(s *Sink) { s.drumChannel = ch & 0x0f }
}

// WithDrums replaces the sample to drum note table.
func WithDrums(m DrumMap) SinkOption {
	return func(s *Sink) {
		if m != nil {
			s.drums = m
		}
	}
}

// WithPrograms selects a General MIDI program per instrument name. A program
// change is sent whenever the instrument on the note channel changes.
func WithPrograms(programs map[string]uint8) SinkOption {
	return func(s *Sink) { s.programs = programs }
}

// Sink turns note events into NoteOn messages and queues the matching
// NoteOff until Flush reaches its time.
type Sink struct {
	mu          sync.Mutex
	out         Out
	channel     uint8
	drumChannel uint8
	drums       DrumMap
	programs    map[string]uint8
	program     int
	offs        offQueue
	seq         uint64
}

func NewSink(out Out, opts ...SinkOption) *Sink {
	s := &Sink{
		out:         out,
		drumChannel: 9,
		drums:       GMDrums,
		program:     -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DrumLength is how long a triggered drum note is held.
const DrumLength = 100 * time.Millisecond

func (s *Sink) Emit(ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vel := velocity(ev.Amp)
	switch ev.Kind {
	case event.KindNote:
		if ev.Note < 0 || ev.Note > 127 {
			return fmt.Errorf("midi: note %d out of range", ev.Note)
		}
		if err := s.selectProgram(ev.Instrument); err != nil {
			return err
		}
		key := uint8(ev.Note)
		if err := s.out.Send(midi.NoteOn(s.channel, key, vel)); err != nil {
			return fmt.Errorf("midi: note on: %w", err)
		}
		s.queueOff(s.channel, key, ev.Time+ev.Duration)
	case event.KindSample:
		key, ok := s.drums.Lookup(ev.Sample)
		if !ok {
			return fmt.Errorf("midi: no drum note for sample %q", ev.Sample)
		}
		if err := s.out.Send(midi.NoteOn(s.drumChannel, key, vel)); err != nil {
			return fmt.Errorf("midi: drum on: %w", err)
		}
		s.queueOff(s.drumChannel, key, ev.Time+DrumLength)
	default:
		return fmt.Errorf("midi: unsupported event kind %v", ev.Kind)
	}
	return nil
}

func (s *Sink) selectProgram(instrument string) error {
	prog, ok := s.programs[instrument]
	if !ok || int(prog) == s.program {
		return nil
	}
	if err := s.out.Send(midi.ProgramChange(s.channel, prog)); err != nil {
		return fmt.Errorf("midi: program change: %w", err)
	}
	s.program = int(prog)
	return nil
}

func (s *Sink) queueOff(ch, key uint8, at time.Duration) {
	heap.Push(&s.offs, noteOff{at: at, ch: ch, key: key, seq: s.seq})
	s.seq++
}

// Flush sends every NoteOff due at or before now.
func (s *Sink) Flush(now time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for s.offs.Len() > 0 && s.offs[0].at <= now {
		off := heap.Pop(&s.offs).(noteOff)
		if err := s.out.Send(midi.NoteOff(off.ch, off.key)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending counts queued NoteOffs.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offs.Len()
}

// Close releases every sounding note.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for s.offs.Len() > 0 {
		off := heap.Pop(&s.offs).(noteOff)
		if err := s.out.Send(midi.NoteOff(off.ch, off.key)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func velocity(amp float64) uint8 {
	v := int(amp*100 + 0.5)
	if v < 1 {
		v = 1
	}
	if v > 127 {
		v = 127
	}
	return uint8(v)
}

type noteOff struct {
	at  time.Duration
	ch  uint8
	key uint8
	seq uint64
}

type offQueue []noteOff

func (q offQueue) Len() int { return len(q) }
func (q offQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q offQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *offQueue) Push(x any)   { *q = append(*q, x.(noteOff)) }
func (q *offQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

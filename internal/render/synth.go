// Package render turns loop events into audio frames through a Voicer.
package render

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/cbegin/liveloop-go/internal/event"
	"github.com/cbegin/liveloop-go/internal/fx"
	"github.com/cbegin/liveloop-go/internal/midiout"
	"github.com/cbegin/liveloop-go/internal/voice"
)

// Voicer is a polyphonic instrument. NoteOn returns an id for NoteOff.
type Voicer interface {
	NoteOn(channel, key, velocity int, instrument string) int
	NoteOff(id int)
	Render(left, right []float32)
}

// Synth is an event sink that plays events on a Voicer at frame accurate
// positions. Events may arrive ahead of time; Process consumes them as the
// frame counter passes their start.
type Synth struct {
	mu         sync.Mutex
	sampleRate int
	voicer     Voicer
	drums      midiout.DrumMap
	frame      int64
	seq        uint64
	actions    actionQueue
	left       []float32
	right      []float32
	late       int
	effects    fx.Chain
}

type noteRef struct{ id int }

type action struct {
	frame      int64
	off        bool
	seq        uint64
	channel    int
	key        int
	velocity   int
	instrument string
	ref        *noteRef
}

func NewSynth(sampleRate int, v Voicer) *Synth {
	return &Synth{sampleRate: sampleRate, voicer: v, drums: midiout.GMDrums}
}

// NewBuiltin returns a Synth on the built-in oscillator and drum engine.
func NewBuiltin(sampleRate int) *Synth {
	return NewSynth(sampleRate, voice.New(sampleRate, voice.DefaultParams()))
}

func (s *Synth) SampleRate() int { return s.sampleRate }

// SetEffects replaces the master effects chain. Tails of the old chain are
// cut off.
func (s *Synth) SetEffects(c fx.Chain) {
	s.mu.Lock()
	s.effects = c
	s.mu.Unlock()
}

func (s *Synth) frameOf(t time.Duration) int64 {
	return (t.Nanoseconds()*int64(s.sampleRate) + int64(time.Second/2)) / int64(time.Second)
}

// Now is the time of the next frame Process will produce.
func (s *Synth) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.frame * int64(time.Second) / int64(s.sampleRate))
}

// Late counts events that arrived after their start frame was rendered.
func (s *Synth) Late() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.late
}

func (s *Synth) Emit(ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vel := velocity(ev.Amp)
	var on action
	length := ev.Duration
	switch ev.Kind {
	case event.KindNote:
		on = action{channel: 0, key: ev.Note, velocity: vel, instrument: ev.Instrument}
	case event.KindSample:
		key, ok := s.drums.Lookup(ev.Sample)
		if !ok {
			return fmt.Errorf("render: no drum voice for sample %q", ev.Sample)
		}
		on = action{channel: voice.DrumChannel, key: int(key), velocity: vel}
		length = midiout.DrumLength
	default:
		return fmt.Errorf("render: unsupported event kind %v", ev.Kind)
	}
	start := s.frameOf(ev.Time)
	if start < s.frame {
		s.late++
		start = s.frame
	}
	end := s.frameOf(ev.Time + length)
	if end <= start {
		end = start + 1
	}
	ref := &noteRef{id: -1}
	on.frame, on.ref = start, ref
	off := on
	off.frame, off.off = end, true
	s.push(on)
	s.push(off)
	return nil
}

func (s *Synth) push(a action) {
	a.seq = s.seq
	s.seq++
	heap.Push(&s.actions, a)
}

// Pending counts queued note starts and stops.
func (s *Synth) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions.Len()
}

// Process fills dst with interleaved stereo frames.
func (s *Synth) Process(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := len(dst) / 2
	if cap(s.left) < frames {
		s.left = make([]float32, frames)
		s.right = make([]float32, frames)
	}
	pos := 0
	for pos < frames {
		for s.actions.Len() > 0 && s.actions[0].frame <= s.frame {
			s.apply(heap.Pop(&s.actions).(action))
		}
		n := frames - pos
		if s.actions.Len() > 0 {
			if until := int(s.actions[0].frame - s.frame); until < n {
				n = until
			}
		}
		left, right := s.left[:n], s.right[:n]
		s.voicer.Render(left, right)
		for i := 0; i < n; i++ {
			dst[(pos+i)*2] = left[i]
			dst[(pos+i)*2+1] = right[i]
		}
		pos += n
		s.frame += int64(n)
	}
	s.effects.Process(dst[:frames*2])
}

func (s *Synth) apply(a action) {
	if a.off {
		if a.ref.id >= 0 {
			s.voicer.NoteOff(a.ref.id)
		}
		return
	}
	a.ref.id = s.voicer.NoteOn(a.channel, a.key, a.velocity, a.instrument)
}

func velocity(amp float64) int {
	v := int(amp*100 + 0.5)
	if v < 1 {
		v = 1
	}
	if v > 127 {
		v = 127
	}
	return v
}

type actionQueue []action

func (q actionQueue) Len() int { return len(q) }
func (q actionQueue) Less(i, j int) bool {
	if q[i].frame != q[j].frame {
		return q[i].frame < q[j].frame
	}
	if q[i].off != q[j].off {
		return q[i].off
	}
	return q[i].seq < q[j].seq
}
func (q actionQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *actionQueue) Push(x any)   { *q = append(*q, x.(action)) }
func (q *actionQueue) Pop() any {
	old := *q
	n := len(old)
	a := old[n-1]
	*q = old[:n-1]
	return a
}

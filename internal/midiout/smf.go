package midiout

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/liveloop-go/internal/event"
)

// Resolution is the SMF tick resolution per quarter note.
const Resolution = smf.MetricTicks(960)

// Recorder collects events and writes them as a Standard MIDI File with a
// tempo track followed by one track per loop.
type Recorder struct {
	mu          sync.Mutex
	bpm         float64
	drums       DrumMap
	channel     uint8
	drumChannel uint8
	seq         uint64
	loops       map[string][]stamped
}

type stamped struct {
	tick uint32
	off  bool
	seq  uint64
	msg  midi.Message
}

func NewRecorder(bpm float64) *Recorder {
	if bpm <= 0 {
		bpm = 60
	}
	return &Recorder{
		bpm:         bpm,
		drums:       GMDrums,
		drumChannel: 9,
		loops:       make(map[string][]stamped),
	}
}

func (r *Recorder) ticks(d time.Duration) uint32 {
	if d < 0 {
		return 0
	}
	return uint32(math.Round(d.Seconds() * r.bpm / 60 * float64(uint16(Resolution))))
}

func (r *Recorder) Emit(ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, key, length := r.channel, uint8(0), ev.Duration
	switch ev.Kind {
	case event.KindNote:
		if ev.Note < 0 || ev.Note > 127 {
			return fmt.Errorf("smf: note %d out of range", ev.Note)
		}
		key = uint8(ev.Note)
	case event.KindSample:
		k, ok := r.drums.Lookup(ev.Sample)
		if !ok {
			return fmt.Errorf("smf: no drum note for sample %q", ev.Sample)
		}
		ch, key, length = r.drumChannel, k, DrumLength
	default:
		return fmt.Errorf("smf: unsupported event kind %v", ev.Kind)
	}
	on := r.ticks(ev.Time)
	off := r.ticks(ev.Time + length)
	if off <= on {
		off = on + 1
	}
	r.loops[ev.Loop] = append(r.loops[ev.Loop],
		stamped{tick: on, seq: r.seq, msg: midi.NoteOn(ch, key, velocity(ev.Amp))},
		stamped{tick: off, off: true, seq: r.seq + 1, msg: midi.NoteOff(ch, key)},
	)
	r.seq += 2
	return nil
}

// Loops returns the recorded loop names in track order.
func (r *Recorder) Loops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.loops))
	for name := range r.loops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SMF builds the file from everything recorded so far.
func (r *Recorder) SMF() (*smf.SMF, error) {
	names := r.Loops()
	r.mu.Lock()
	defer r.mu.Unlock()

	sm := smf.New()
	sm.TimeFormat = Resolution

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(r.bpm))
	tempo.Close(0)
	if err := sm.Add(tempo); err != nil {
		return nil, fmt.Errorf("smf: tempo track: %w", err)
	}

	for _, name := range names {
		msgs := append([]stamped(nil), r.loops[name]...)
		sort.Slice(msgs, func(i, j int) bool {
			a, b := msgs[i], msgs[j]
			if a.tick != b.tick {
				return a.tick < b.tick
			}
			if a.off != b.off {
				return a.off
			}
			return a.seq < b.seq
		})
		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(name))
		var last uint32
		for _, m := range msgs {
			track.Add(m.tick-last, m.msg)
			last = m.tick
		}
		track.Close(0)
		if err := sm.Add(track); err != nil {
			return nil, fmt.Errorf("smf: track %q: %w", name, err)
		}
	}
	return sm, nil
}

func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	sm, err := r.SMF()
	if err != nil {
		return 0, err
	}
	return sm.WriteTo(w)
}

func (r *Recorder) WriteFile(path string) error {
	sm, err := r.SMF()
	if err != nil {
		return err
	}
	if err := sm.WriteFile(path); err != nil {
		return fmt.Errorf("smf: write %s: %w", path, err)
	}
	return nil
}

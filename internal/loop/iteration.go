package loop

import (
	"fmt"
	"math"
	"time"

	"github.com/cbegin/liveloop-go/internal/event"
	"github.com/cbegin/liveloop-go/internal/notation"
	"github.com/cbegin/liveloop-go/internal/ring"
	"github.com/cbegin/liveloop-go/internal/tick"
)

const DefaultBPM = 60.0

// Config seeds one iteration.
type Config struct {
	Loop   string
	Cycle  int
	Start  time.Duration
	BPM    float64
	Key    notation.Key
	Synth  string
	Parser *notation.Parser
	Ticks  *tick.Cycler
}

// Iteration is the context a body runs against. Sound calls buffer events at
// the current time cursor; Play and Sleep move the cursor forward. Nothing is
// emitted until the iteration completes.
type Iteration struct {
	cfg    Config
	cursor time.Duration
	events []event.Event
}

func NewIteration(cfg Config) *Iteration {
	if cfg.BPM <= 0 {
		cfg.BPM = DefaultBPM
	}
	if len(cfg.Key.Scale) == 0 {
		cfg.Key = notation.DefaultKey()
	}
	if cfg.Parser == nil {
		cfg.Parser = notation.NewParser(notation.DefaultParserConfig())
	}
	if cfg.Ticks == nil {
		cfg.Ticks = tick.New()
	}
	return &Iteration{cfg: cfg}
}

func (it *Iteration) Loop() string           { return it.cfg.Loop }
func (it *Iteration) Cycle() int             { return it.cfg.Cycle }
func (it *Iteration) Start() time.Duration   { return it.cfg.Start }
func (it *Iteration) Now() time.Duration     { return it.cfg.Start + it.cursor }
func (it *Iteration) Elapsed() time.Duration { return it.cursor }
func (it *Iteration) BPM() float64           { return it.cfg.BPM }
func (it *Iteration) Key() notation.Key      { return it.cfg.Key }
func (it *Iteration) Synth() string          { return it.cfg.Synth }

// Events returns the buffered events in emission order.
func (it *Iteration) Events() []event.Event { return it.events }

// Span is how long the iteration lasts: the cursor once it has moved,
// otherwise until the last buffered event stops sounding.
func (it *Iteration) Span() time.Duration {
	if it.cursor > 0 {
		return it.cursor
	}
	var end time.Duration
	for _, ev := range it.events {
		if d := ev.Time + ev.Duration - it.cfg.Start; d > end {
			end = d
		}
	}
	return end
}

// Beats converts a length in beats to logical time at the current tempo.
func (it *Iteration) Beats(b float64) time.Duration {
	return BeatsToDuration(b, it.cfg.BPM)
}

func BeatsToDuration(beats, bpm float64) time.Duration {
	return time.Duration(math.Round(beats * 60 / bpm * float64(time.Second)))
}

// Tick advances the shared counter for key. Iteration satisfies ring.Ticker.
func (it *Iteration) Tick(key string) int { return it.cfg.Ticks.Tick(key) }

func (it *Iteration) Look(key string) int { return it.cfg.Ticks.Look(key) }

func (it *Iteration) UseBPM(bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return fmt.Errorf("invalid bpm %v", bpm)
	}
	it.cfg.BPM = bpm
	return nil
}

func (it *Iteration) UseSynth(name string) { it.cfg.Synth = name }

func (it *Iteration) UseKey(k notation.Key) { it.cfg.Key = k }

// Sleep moves the cursor forward by beats.
func (it *Iteration) Sleep(beats float64) error {
	if beats < 0 || math.IsNaN(beats) || math.IsInf(beats, 0) {
		return fmt.Errorf("invalid sleep %v", beats)
	}
	it.cursor += it.Beats(beats)
	return nil
}

type PlayOption func(*playParams)

type playParams struct {
	amp   float64
	synth string
	beats float64
}

func Amp(a float64) PlayOption { return func(p *playParams) { p.amp = a } }

func Synth(name string) PlayOption { return func(p *playParams) { p.synth = name } }

// Length sets the sounding length of PlayNote and PlayChord in beats.
func Length(beats float64) PlayOption { return func(p *playParams) { p.beats = beats } }

func (it *Iteration) params(opts []PlayOption) playParams {
	p := playParams{amp: 1, synth: it.cfg.Synth, beats: 1}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Play parses a notation string and plays its notes one after another,
// advancing the cursor by each note's duration. A parse error leaves the
// cursor and the buffer untouched.
func (it *Iteration) Play(s string, opts ...PlayOption) error {
	tokens, err := it.cfg.Parser.Parse(s)
	if err != nil {
		return err
	}
	p := it.params(opts)
	for _, tok := range tokens {
		d := it.Beats(tok.Duration)
		it.note(it.cfg.Key.Pitch(tok), d, p)
		it.cursor += d
	}
	return nil
}

// PlayNote sounds a MIDI note at the cursor without moving it.
func (it *Iteration) PlayNote(note int, opts ...PlayOption) {
	p := it.params(opts)
	it.note(note, it.Beats(p.beats), p)
}

func (it *Iteration) PlayChord(notes []int, opts ...PlayOption) {
	p := it.params(opts)
	for _, n := range notes {
		it.note(n, it.Beats(p.beats), p)
	}
}

// PlayElement sounds a ring element: a scalar as one note, a chord as all.
func (it *Iteration) PlayElement(e ring.Element[int], opts ...PlayOption) {
	it.PlayChord(e.Values(), opts...)
}

// PlayRing picks the next element of r for key and sounds it.
func (it *Iteration) PlayRing(r ring.Ring[int], key string, opts ...PlayOption) error {
	e, err := ring.Pick(r, it, key)
	if err != nil {
		return fmt.Errorf("ring %q: %w", key, err)
	}
	it.PlayElement(e, opts...)
	return nil
}

func (it *Iteration) Sample(name string, opts ...PlayOption) {
	p := it.params(opts)
	it.events = append(it.events, event.Event{
		Kind:   event.KindSample,
		Loop:   it.cfg.Loop,
		Cycle:  it.cfg.Cycle,
		Time:   it.Now(),
		Sample: name,
		Amp:    p.amp,
	})
}

func (it *Iteration) note(n int, d time.Duration, p playParams) {
	it.events = append(it.events, event.Event{
		Kind:       event.KindNote,
		Loop:       it.cfg.Loop,
		Cycle:      it.cfg.Cycle,
		Time:       it.Now(),
		Duration:   d,
		Note:       n,
		Instrument: p.synth,
		Amp:        p.amp,
	})
}

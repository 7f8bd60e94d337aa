package fx

import "math"

// LFO shapes, numbered as Sonic Pi numbers its wave option.
const (
	WaveSaw = iota
	WavePulse
	WaveTriangle
	WaveSine
)

// lfo runs from 0 to 1 once per period.
type lfo struct {
	wave  int
	phase float64
	step  float64
}

func newLFO(sampleRate int, period float64, wave int) lfo {
	l := lfo{wave: wave}
	if period > 0 {
		l.step = 1 / (period * float64(sampleRate))
	}
	if wave < WaveSaw || wave > WaveSine {
		l.wave = WaveTriangle
	}
	return l
}

// next returns the current value in [0, 1] and advances one frame.
func (l *lfo) next() float64 {
	var v float64
	switch l.wave {
	case WaveSaw:
		v = 1 - l.phase
	case WavePulse:
		if l.phase < 0.5 {
			v = 1
		}
	case WaveSine:
		v = 0.5 + 0.5*math.Cos(2*math.Pi*l.phase)
	default:
		v = 1 - math.Abs(2*l.phase-1)
	}
	l.phase += l.step
	for l.phase >= 1 {
		l.phase--
	}
	return v
}

// Tremolo modulates the level with an LFO. At depth 1 the low point of each
// period is silent.
type Tremolo struct {
	lfo   lfo
	depth float32
	mix   float32
}

func NewTremolo(sampleRate int, phase, depth float64, wave int, mix float32) *Tremolo {
	return &Tremolo{
		lfo:   newLFO(sampleRate, phase, wave),
		depth: clamp(float32(depth), 0, 1),
		mix:   clamp(mix, 0, 1),
	}
}

func (t *Tremolo) Process(l, r float32) (float32, float32) {
	g := 1 - t.depth*(1-float32(t.lfo.next()))
	return l*(1-t.mix) + l*g*t.mix, r*(1-t.mix) + r*g*t.mix
}

func (t *Tremolo) Reset() { t.lfo.phase = 0 }

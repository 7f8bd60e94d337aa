// Package voice is a small polyphonic synthesizer used when no SoundFont is
// configured. Melodic notes use classic oscillator waves; notes on the drum
// channel trigger synthesized one-shot percussion.
package voice

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

const twoPi = math.Pi * 2

// DrumChannel is the zero-based General MIDI percussion channel.
const DrumChannel = 9

type Params struct {
	Voices     int
	MasterGain float64
	AttackSec  float64
	DecaySec   float64
	SustainLvl float64
	ReleaseSec float64
	PulseDuty  float64
	LPFCutoff  float64 // lowpass filter cutoff in Hz (0 = disabled)
}

func DefaultParams() Params {
	return Params{
		Voices:     24,
		MasterGain: 0.3,
		AttackSec:  0.004,
		DecaySec:   0.12,
		SustainLvl: 0.7,
		ReleaseSec: 0.18,
		PulseDuty:  0.25,
		LPFCutoff:  9000,
	}
}

type Wave int

const (
	WaveSaw Wave = iota
	WavePulse
	WaveSquare
	WaveTri
	WaveSine
	WaveNoise
)

var waveNames = map[string]Wave{
	"saw":         WaveSaw,
	"dsaw":        WaveSaw,
	"pulse":       WavePulse,
	"square":      WaveSquare,
	"tri":         WaveTri,
	"sine":        WaveSine,
	"beep":        WaveSine,
	"pretty_bell": WaveSine,
	"noise":       WaveNoise,
}

// ParseWave maps a synth name to a wave. Unknown names fall back to a sine
// and report false.
func ParseWave(name string) (Wave, bool) {
	w, ok := waveNames[name]
	if !ok {
		return WaveSine, false
	}
	return w, true
}

func WaveNames() []string {
	names := make([]string, 0, len(waveNames))
	for n := range waveNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type drumKind int

const (
	drumNone drumKind = iota
	drumKick
	drumSnare
	drumHat
	drumCymbal
	drumClick
)

func drumForKey(key int) drumKind {
	switch {
	case key == 35 || key == 36:
		return drumKick
	case key >= 37 && key <= 40:
		return drumSnare
	case key == 42 || key == 44:
		return drumHat
	case key == 46 || key == 49 || key == 51 || key == 55 || key == 57:
		return drumCymbal
	default:
		return drumClick
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	active   bool
	id       int
	age      int
	wave     Wave
	drum     drumKind
	freq     float64
	phase    float64
	velocity float64
	env      float64
	envState envState
	noise    uint32
	hp       float64
}

type Engine struct {
	mu         sync.Mutex
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain uint64
	dcPrevInL  float64
	dcPrevOutL float64
	dcPrevInR  float64
	dcPrevOutR float64
	lpfL       float64
	lpfR       float64
	lpfAlpha   float64
}

func New(sampleRate int, params Params) *Engine {
	if params.Voices <= 0 {
		params.Voices = 24
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Voices),
		masterGain: math.Float64bits(params.MasterGain),
	}
	for i := range e.voices {
		e.voices[i].noise = uint32(0xACE1 + i*97)
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		e.lpfAlpha = dt / (rc + dt)
	}
	return e
}

// NoteOn starts a voice and returns its id. On the drum channel the key picks
// a percussion sound and the voice ends by itself.
func (e *Engine) NoteOn(channel, key, velocity int, instrument string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	slot := e.stealVoice()
	id := e.nextID
	e.nextID++
	v := &e.voices[slot]
	v.active = true
	v.id = id
	v.age = 0
	v.phase = 0
	v.hp = 0
	v.velocity = clamp(float64(velocity)/127.0, 0, 1)
	v.env = 0
	v.envState = envAttack
	v.drum = drumNone
	if channel == DrumChannel {
		v.drum = drumForKey(key)
		v.wave = WaveNoise
		v.freq = 180
		if v.drum == drumKick {
			v.wave = WaveSine
			v.freq = 50
		}
		return id
	}
	v.wave, _ = ParseWave(instrument)
	v.freq = midiToFreq(key)
	return id
}

func (e *Engine) NoteOff(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.id == id && v.drum == drumNone && v.envState != envRelease {
			v.envState = envRelease
		}
	}
}

// Render fills left and right with the next len(left) frames.
func (e *Engine) Render(left, right []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		left[i], right[i] = e.renderFrame()
	}
}

func (e *Engine) RenderFrame() (float32, float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderFrame()
}

func (e *Engine) renderFrame() (float32, float32) {
	gain := e.masterGainValue()
	var l, r float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		v.age++
		var env, sig float64
		if v.drum != drumNone {
			env = e.drumEnv(v)
			if !v.active {
				continue
			}
			sig = e.renderDrum(v)
		} else {
			env = e.advanceEnv(v)
			if !v.active {
				continue
			}
			sig = e.renderWave(v)
		}
		sig *= env * (0.2 + 0.8*v.velocity) * gain
		l += sig
		r += sig
	}
	l = e.dcBlockL(l)
	r = e.dcBlockR(r)
	if e.lpfAlpha > 0 {
		e.lpfL += e.lpfAlpha * (l - e.lpfL)
		e.lpfR += e.lpfAlpha * (r - e.lpfR)
		l, r = e.lpfL, e.lpfR
	}
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

func (e *Engine) dcBlockL(x float64) float64 {
	const r = 0.995
	y := x - e.dcPrevInL + r*e.dcPrevOutL
	e.dcPrevInL = x
	e.dcPrevOutL = y
	return y
}

func (e *Engine) dcBlockR(x float64) float64 {
	const r = 0.995
	y := x - e.dcPrevInR + r*e.dcPrevOutR
	e.dcPrevInR = x
	e.dcPrevOutR = y
	return y
}

// polyBLEP reduces aliasing at waveform discontinuities.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func (e *Engine) advancePhase(v *voice, freq float64) float64 {
	dt := freq / e.sampleRate
	v.phase += dt
	if v.phase >= 1 {
		v.phase -= 1
	}
	return dt
}

func (e *Engine) renderWave(v *voice) float64 {
	dt := e.advancePhase(v, v.freq)
	switch v.wave {
	case WaveSaw:
		return 2*v.phase - 1 - polyBLEP(v.phase, dt)
	case WavePulse, WaveSquare:
		duty := e.params.PulseDuty
		if v.wave == WaveSquare {
			duty = 0.5
		}
		out := -1.0
		if v.phase < duty {
			out = 1
		}
		out += polyBLEP(v.phase, dt)
		out -= polyBLEP(math.Mod(v.phase-duty+1, 1), dt)
		return out
	case WaveTri:
		return 2*math.Abs(2*v.phase-1) - 1
	case WaveNoise:
		return v.nextNoise()
	default:
		return math.Sin(twoPi * v.phase)
	}
}

func (v *voice) nextNoise() float64 {
	// xorshift32
	x := v.noise
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	v.noise = x
	return float64(x)/float64(math.MaxUint32)*2 - 1
}

func (e *Engine) renderDrum(v *voice) float64 {
	t := float64(v.age) / e.sampleRate
	switch v.drum {
	case drumKick:
		freq := v.freq + 100*math.Exp(-t/0.03)
		e.advancePhase(v, freq)
		return math.Sin(twoPi * v.phase)
	case drumSnare:
		e.advancePhase(v, v.freq)
		tone := 2*math.Abs(2*v.phase-1) - 1
		return 0.7*v.nextNoise() + 0.3*tone
	default:
		n := v.nextNoise()
		v.hp += 0.35 * (n - v.hp)
		return n - v.hp
	}
}

func (e *Engine) drumEnv(v *voice) float64 {
	decay := 0.06
	switch v.drum {
	case drumKick:
		decay = 0.25
	case drumSnare:
		decay = 0.12
	case drumHat:
		decay = 0.04
	case drumCymbal:
		decay = 0.4
	}
	t := float64(v.age) / e.sampleRate
	attack := 0.001
	if t < attack {
		v.env = t / attack
		return v.env
	}
	v.env = math.Exp(-(t - attack) / decay)
	if v.env < 0.0005 {
		v.env = 0
		v.envState = envOff
		v.active = false
	}
	return v.env
}

func (e *Engine) stealVoice() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	// Steal the oldest releasing voice, or failing that the oldest voice.
	oldestRelease := -1
	oldestReleaseAge := -1
	oldestActive := 0
	oldestActiveAge := -1
	for i := range e.voices {
		v := &e.voices[i]
		if v.envState == envRelease && v.age > oldestReleaseAge {
			oldestRelease = i
			oldestReleaseAge = v.age
		}
		if v.age > oldestActiveAge {
			oldestActive = i
			oldestActiveAge = v.age
		}
	}
	if oldestRelease >= 0 {
		return oldestRelease
	}
	return oldestActive
}

func (e *Engine) advanceEnv(v *voice) float64 {
	switch v.envState {
	case envAttack:
		step := 1.0 / (e.params.AttackSec * e.sampleRate)
		if step <= 0 || math.IsInf(step, 0) {
			step = 1
		}
		v.env += step
		if v.env >= 1 {
			v.env = 1
			v.envState = envDecay
		}
	case envDecay:
		step := (1 - e.params.SustainLvl) / (e.params.DecaySec * e.sampleRate)
		if step <= 0 || math.IsInf(step, 0) {
			step = 1
		}
		v.env -= step
		if v.env <= e.params.SustainLvl {
			v.env = e.params.SustainLvl
			v.envState = envSustain
		}
	case envSustain:
	case envRelease:
		step := e.params.SustainLvl / (e.params.ReleaseSec * e.sampleRate)
		if step <= 0 || math.IsInf(step, 0) {
			step = 1
		}
		v.env -= step
		if v.env <= 0.0001 {
			v.env = 0
			v.envState = envOff
			v.active = false
		}
	case envOff:
		v.active = false
		v.env = 0
	}
	return v.env
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Engine) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&e.masterGain, math.Float64bits(gain))
}

func (e *Engine) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}

func (e *Engine) ActiveVoiceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

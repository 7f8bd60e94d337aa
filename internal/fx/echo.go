package fx

import "math"

// Echo repeats the input every phase seconds. Repeats fall by 60dB over
// decay seconds.
type Echo struct {
	left, right []float32
	pos         int
	feedback    float32
	mix         float32
}

func NewEcho(sampleRate int, phase, decay float64, mix float32) *Echo {
	n := max(int(phase*float64(sampleRate)), 1)
	var fb float64
	if decay > 0 && phase > 0 {
		// 0.001 is -60dB
		fb = math.Pow(0.001, phase/decay)
	}
	return &Echo{
		left:     make([]float32, n),
		right:    make([]float32, n),
		feedback: clamp(float32(fb), 0, 0.95),
		mix:      clamp(mix, 0, 1),
	}
}

func (e *Echo) Process(l, r float32) (float32, float32) {
	dl, dr := e.left[e.pos], e.right[e.pos]
	e.left[e.pos] = l + dl*e.feedback
	e.right[e.pos] = r + dr*e.feedback
	if e.pos++; e.pos >= len(e.left) {
		e.pos = 0
	}
	// the dry signal always passes; mix scales the repeats
	return l + dl*e.mix, r + dr*e.mix
}

func (e *Echo) Reset() {
	clear(e.left)
	clear(e.right)
	e.pos = 0
}

package fx

// Reverb is a Schroeder reverb: four parallel combs into two allpasses.
type Reverb struct {
	combs   [4]delayLine
	allpass [2]delayLine
	mix     float32
}

type delayLine struct {
	buf []float32
	pos int
	fb  float32
}

// NewReverb takes room (0..1, scales the delay lengths), feedback (0..1,
// decay) and mix (wet share).
func NewReverb(sampleRate int, room, feedback, mix float32) *Reverb {
	base := max(int(float32(sampleRate)*clamp(room, 0, 1)*0.05), 10)
	fb := clamp(feedback, 0, 0.95)
	r := &Reverb{mix: clamp(mix, 0, 1)}
	// mutually prime ratios keep the combs from reinforcing each other
	for i, ratio := range [4]int{1000, 1117, 1271, 1437} {
		r.combs[i] = delayLine{buf: make([]float32, base*ratio/1000), fb: fb}
	}
	for i, ratio := range [2]int{347, 213} {
		r.allpass[i] = delayLine{buf: make([]float32, max(base*ratio/1000, 1)), fb: 0.5}
	}
	return r
}

func (r *Reverb) Process(l, rt float32) (float32, float32) {
	in := (l + rt) * 0.5
	var wet float32
	for i := range r.combs {
		wet += r.combs[i].comb(in)
	}
	wet *= 0.25
	for i := range r.allpass {
		wet = r.allpass[i].allpass(wet)
	}
	return l*(1-r.mix) + wet*r.mix, rt*(1-r.mix) + wet*r.mix
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		r.combs[i].clear()
	}
	for i := range r.allpass {
		r.allpass[i].clear()
	}
}

func (d *delayLine) comb(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.fb
	d.advance()
	return out
}

func (d *delayLine) allpass(in float32) float32 {
	held := d.buf[d.pos]
	d.buf[d.pos] = in + held*d.fb
	d.advance()
	return held - in
}

func (d *delayLine) advance() {
	if d.pos++; d.pos >= len(d.buf) {
		d.pos = 0
	}
}

func (d *delayLine) clear() {
	clear(d.buf)
	d.pos = 0
}

package fx

import "math"

// Distortion drives the signal into a tanh waveshaper. distort runs 0..1;
// values near 1 square the signal off.
type Distortion struct {
	drive float32
	mix   float32
}

func NewDistortion(distort, mix float32) *Distortion {
	return &Distortion{
		drive: 1 + clamp(distort, 0, 0.99)*20,
		mix:   clamp(mix, 0, 1),
	}
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	wl := float32(math.Tanh(float64(l * d.drive)))
	wr := float32(math.Tanh(float64(r * d.drive)))
	return l*(1-d.mix) + wl*d.mix, r*(1-d.mix) + wr*d.mix
}

func (d *Distortion) Reset() {}

// Compressor scales the level above threshold (linear amplitude) by slope.
// clampTime and relaxTime are the attack and release in seconds.
type Compressor struct {
	threshold float32
	slope     float32
	attack    float32
	release   float32
	envL      float32
	envR      float32
}

func NewCompressor(sampleRate int, threshold, slope float32, clampTime, relaxTime float64) *Compressor {
	return &Compressor{
		threshold: threshold,
		slope:     slope,
		attack:    coefficient(clampTime, sampleRate),
		release:   coefficient(relaxTime, sampleRate),
	}
}

func coefficient(seconds float64, sampleRate int) float32 {
	if seconds <= 0 {
		return 1
	}
	return float32(1 - math.Exp(-1/(seconds*float64(sampleRate))))
}

func (c *Compressor) Process(l, r float32) (float32, float32) {
	c.envL = c.follow(c.envL, l)
	c.envR = c.follow(c.envR, r)
	return l * c.gain(c.envL), r * c.gain(c.envR)
}

func (c *Compressor) follow(env, x float32) float32 {
	x = float32(math.Abs(float64(x)))
	if x > env {
		return env + c.attack*(x-env)
	}
	return env + c.release*(x-env)
}

func (c *Compressor) gain(env float32) float32 {
	if c.threshold <= 0 || env <= c.threshold {
		return 1
	}
	return float32(math.Pow(float64(env/c.threshold), float64(c.slope-1)))
}

func (c *Compressor) Reset() {
	c.envL, c.envR = 0, 0
}

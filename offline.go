package liveloop

import (
	"errors"
	"io"
	"time"

	"github.com/cbegin/liveloop-go/internal/event"
	"github.com/cbegin/liveloop-go/internal/fx"
	"github.com/cbegin/liveloop-go/internal/render"
	"github.com/cbegin/liveloop-go/internal/script"
)

// Renderer is a sink that also produces audio, such as render.Synth.
type Renderer interface {
	event.Sink
	Process(dst []float32)
}

// renderBlock frames are rendered between clock advances.
const renderBlock = 10 * time.Millisecond

// RenderSamples plays the loops set up by setup on the built-in synth for
// dur and returns interleaved stereo frames.
func RenderSamples(sampleRate int, dur time.Duration, setup func(*Runtime) error, opts ...Option) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	return RenderWith(render.NewBuiltin(sampleRate), sampleRate, dur, setup, opts...)
}

// RenderWith renders through out. Any WithSink option is overridden.
func RenderWith(out Renderer, sampleRate int, dur time.Duration, setup func(*Runtime) error, opts ...Option) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	rt := New(append(opts, WithSink(out))...)
	if err := setup(rt); err != nil {
		return nil, err
	}
	frames := int(dur.Nanoseconds() * int64(sampleRate) / int64(time.Second))
	block := int(renderBlock.Nanoseconds() * int64(sampleRate) / int64(time.Second))
	if block < 1 {
		block = 1
	}
	samples := make([]float32, frames*2)
	for pos := 0; pos < frames; pos += block {
		n := min(block, frames-pos)
		end := time.Duration(int64(pos+n) * int64(time.Second) / int64(sampleRate))
		if err := rt.AdvanceTo(end); err != nil {
			rt.log.Printf("error: %v", err)
		}
		out.Process(samples[pos*2 : (pos+n)*2])
	}
	return samples, nil
}

// RenderFile renders a loop set file on the built-in synth through the
// file's effects chain.
func RenderFile(path string, sampleRate int, dur time.Duration, opts ...Option) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	f, err := script.Load(path)
	if err != nil {
		return nil, err
	}
	chain, err := fx.Build(sampleRate, f.Effects())
	if err != nil {
		return nil, err
	}
	synth := render.NewBuiltin(sampleRate)
	synth.SetEffects(chain)
	return RenderWith(synth, sampleRate, dur, func(rt *Runtime) error {
		_, err := rt.Load(f)
		return err
	}, opts...)
}

// WriteWAV writes samples as a 32-bit float stereo WAV file.
func WriteWAV(w io.Writer, samples []float32, sampleRate int) error {
	return render.WriteWAV(w, samples, sampleRate, 2)
}

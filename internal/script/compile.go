package script

import (
	"errors"
	"fmt"

	"github.com/cbegin/liveloop-go/internal/loop"
	"github.com/cbegin/liveloop-go/internal/ring"
)

// Definition is a compiled loop ready to be defined on a runtime.
type Definition struct {
	Name string
	Sync string
	Body loop.Body
}

// Options returns the define options matching the loop's sync field. An
// unset field clears any previous sync target, so reloading a file that
// dropped sync unlinks the loop.
func (d Definition) Options() []loop.DefineOption {
	if d.Sync == "" {
		return []loop.DefineOption{loop.WithoutSync()}
	}
	return []loop.DefineOption{loop.WithSync(d.Sync)}
}

type action func(it *loop.Iteration) error

// Compile turns every loop of f into a body. Notation strings are parsed
// when played so a bad token only aborts the iteration that reaches it.
func Compile(f *File) ([]Definition, error) {
	defs := make([]Definition, 0, len(f.Loops))
	for _, l := range f.Loops {
		body, err := compileLoop(l)
		if err != nil {
			var le *lineError
			if errors.As(err, &le) {
				return nil, &Error{File: f.Name, Line: le.line, Msg: le.msg}
			}
			return nil, &Error{File: f.Name, Line: l.Line, Msg: err.Error()}
		}
		defs = append(defs, Definition{Name: l.Name, Sync: l.Sync, Body: body})
	}
	return defs, nil
}

func compileLoop(l LoopDef) (loop.Body, error) {
	actions := make([]action, 0, len(l.Steps))
	for _, st := range l.Steps {
		a, err := compileStep(l.Name, st)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	synth, bpm := l.Synth, l.BPM
	return func(it *loop.Iteration) error {
		if synth != "" {
			it.UseSynth(synth)
		}
		if bpm > 0 {
			if err := it.UseBPM(bpm); err != nil {
				return err
			}
		}
		for _, a := range actions {
			if err := a(it); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func stepOptions(st Step) []loop.PlayOption {
	var opts []loop.PlayOption
	if st.Amp != nil {
		opts = append(opts, loop.Amp(*st.Amp))
	}
	if st.Synth != "" {
		opts = append(opts, loop.Synth(st.Synth))
	}
	if st.Length != nil {
		opts = append(opts, loop.Length(*st.Length))
	}
	return opts
}

func compileStep(loopName string, st Step) (action, error) {
	opts := stepOptions(st)
	switch st.Action {
	case ActPlay:
		text := st.Text
		return func(it *loop.Iteration) error { return it.Play(text, opts...) }, nil
	case ActNote:
		n := st.Note
		return func(it *loop.Iteration) error {
			it.PlayNote(n, opts...)
			return nil
		}, nil
	case ActSample:
		name := st.Text
		return func(it *loop.Iteration) error {
			it.Sample(name, opts...)
			return nil
		}, nil
	case ActSleep:
		beats := st.Value
		return func(it *loop.Iteration) error { return it.Sleep(beats) }, nil
	case ActSynth:
		name := st.Text
		return func(it *loop.Iteration) error {
			it.UseSynth(name)
			return nil
		}, nil
	case ActBPM:
		bpm := st.Value
		return func(it *loop.Iteration) error { return it.UseBPM(bpm) }, nil
	case ActRing:
		key := st.Tick
		if key == "" {
			key = loopName
		}
		return compileRing(st, key, opts)
	}
	return nil, &lineError{line: st.Line, msg: fmt.Sprintf("unknown action %q", st.Action)}
}

func compileRing(st Step, key string, opts []loop.PlayOption) (action, error) {
	switch st.As {
	case RingNotation:
		r := make(ring.Ring[string], 0, len(st.Ring))
		for _, e := range st.Ring {
			if e.Chord {
				return nil, &lineError{line: st.Line, msg: "notation rings cannot hold chords"}
			}
			r = append(r, ring.Scalar(e.Values[0]))
		}
		return func(it *loop.Iteration) error {
			e, err := ring.Pick(r, it, key)
			if err != nil {
				return fmt.Errorf("ring %q: %w", key, err)
			}
			return it.Play(e.Value(), opts...)
		}, nil
	case RingSample:
		r := make(ring.Ring[string], 0, len(st.Ring))
		for _, e := range st.Ring {
			if e.Chord {
				r = append(r, ring.Chord(e.Values...))
			} else {
				r = append(r, ring.Scalar(e.Values[0]))
			}
		}
		return func(it *loop.Iteration) error {
			e, err := ring.Pick(r, it, key)
			if err != nil {
				return fmt.Errorf("ring %q: %w", key, err)
			}
			for _, name := range e.Values() {
				it.Sample(name, opts...)
			}
			return nil
		}, nil
	default:
		r := make(ring.Ring[int], 0, len(st.Ring))
		for _, e := range st.Ring {
			notes := make([]int, len(e.Values))
			for i, v := range e.Values {
				n, err := ParseNote(v)
				if err != nil {
					return nil, &lineError{line: st.Line, msg: err.Error()}
				}
				notes[i] = n
			}
			if e.Chord {
				r = append(r, ring.Chord(notes...))
			} else {
				r = append(r, ring.Scalar(notes[0]))
			}
		}
		return func(it *loop.Iteration) error { return it.PlayRing(r, key, opts...) }, nil
	}
}

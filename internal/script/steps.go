package script

import (
	"fmt"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Action names the one thing a step does.
type Action string

const (
	ActPlay   Action = "play"
	ActNote   Action = "note"
	ActSample Action = "sample"
	ActSleep  Action = "sleep"
	ActSynth  Action = "synth"
	ActRing   Action = "ring"
	ActBPM    Action = "bpm"
)

// RingMode says how the selected ring element is played.
type RingMode string

const (
	RingNotes    RingMode = "notes"
	RingNotation RingMode = "notation"
	RingSample   RingMode = "sample"
)

// Step is one instruction of a loop body.
type Step struct {
	Line   int
	Action Action
	Text   string
	Note   int
	Value  float64
	Ring   []RingElem
	Tick   string
	As     RingMode
	Synth  string
	Amp    *float64
	Length *float64
}

// RingElem is a ring literal entry: one value, or several played together.
type RingElem struct {
	Values []string
	Chord  bool
}

type lineError struct {
	line int
	msg  string
}

func (e *lineError) Error() string { return fmt.Sprintf("line %d: %s", e.line, e.msg) }

func errorf(n *yaml.Node, format string, args ...any) error {
	return &lineError{line: n.Line, msg: fmt.Sprintf(format, args...)}
}

func checkKeys(n *yaml.Node, what string, allowed []string) error {
	if n.Kind != yaml.MappingNode {
		return errorf(n, "%s must be a mapping", what)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		if !slices.Contains(allowed, k.Value) {
			return errorf(k, "unknown %s field %q", what, k.Value)
		}
	}
	return nil
}

var stepKeys = []string{"play", "note", "sample", "sleep", "synth", "ring", "bpm", "tick", "as", "amp", "length"}

func (s *Step) UnmarshalYAML(n *yaml.Node) error {
	if err := checkKeys(n, "step", stepKeys); err != nil {
		return err
	}
	*s = Step{Line: n.Line}
	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		fields[n.Content[i].Value] = n.Content[i+1]
	}

	var actions []Action
	for _, a := range []Action{ActPlay, ActNote, ActSample, ActSleep, ActRing, ActBPM} {
		if _, ok := fields[string(a)]; ok {
			actions = append(actions, a)
		}
	}
	synth, hasSynth := fields["synth"]
	switch {
	case len(actions) > 1:
		return errorf(n, "step has more than one action: %v", actions)
	case len(actions) == 0 && hasSynth:
		actions = append(actions, ActSynth)
	case len(actions) == 0:
		return errorf(n, "step needs one of play, note, sample, sleep, synth, ring or bpm")
	}
	s.Action = actions[0]
	v := fields[string(s.Action)]

	if hasSynth {
		if err := synth.Decode(&s.Synth); err != nil || s.Synth == "" {
			return errorf(synth, "synth must be a name")
		}
	}
	if a, ok := fields["amp"]; ok {
		f, err := number(a)
		if err != nil || f < 0 {
			return errorf(a, "amp must be a non-negative number")
		}
		s.Amp = &f
	}
	if l, ok := fields["length"]; ok {
		f, err := number(l)
		if err != nil || f < 0 {
			return errorf(l, "length must be a non-negative number of beats")
		}
		s.Length = &f
	}
	if t, ok := fields["tick"]; ok {
		if s.Action != ActRing {
			return errorf(t, "tick only applies to ring steps")
		}
		s.Tick = t.Value
	}
	s.As = RingNotes
	if as, ok := fields["as"]; ok {
		if s.Action != ActRing {
			return errorf(as, "as only applies to ring steps")
		}
		switch m := RingMode(as.Value); m {
		case RingNotes, RingNotation, RingSample:
			s.As = m
		default:
			return errorf(as, "as must be notes, notation or sample, got %q", as.Value)
		}
	}

	switch s.Action {
	case ActPlay, ActSample:
		if v.Kind != yaml.ScalarNode || v.Value == "" {
			return errorf(v, "%s needs a string", s.Action)
		}
		s.Text = v.Value
	case ActSynth:
		s.Text = s.Synth
		s.Synth = ""
	case ActNote:
		if v.Kind != yaml.ScalarNode {
			return errorf(v, "note must be a MIDI number or note name")
		}
		note, err := ParseNote(v.Value)
		if err != nil {
			return errorf(v, "%v", err)
		}
		s.Note = note
	case ActSleep:
		f, err := number(v)
		if err != nil || f < 0 {
			return errorf(v, "sleep must be a non-negative number of beats")
		}
		s.Value = f
	case ActBPM:
		f, err := number(v)
		if err != nil || f <= 0 {
			return errorf(v, "bpm must be a positive number")
		}
		s.Value = f
	case ActRing:
		elems, err := ringElems(v)
		if err != nil {
			return err
		}
		s.Ring = elems
	}
	return nil
}

func number(n *yaml.Node) (float64, error) {
	if n.Kind != yaml.ScalarNode {
		return 0, errorf(n, "expected a number")
	}
	return strconv.ParseFloat(n.Value, 64)
}

func ringElems(n *yaml.Node) ([]RingElem, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, errorf(n, "ring must be a sequence")
	}
	out := make([]RingElem, 0, len(n.Content))
	for _, c := range n.Content {
		switch c.Kind {
		case yaml.ScalarNode:
			out = append(out, RingElem{Values: []string{c.Value}})
		case yaml.SequenceNode:
			if len(c.Content) == 0 {
				return nil, errorf(c, "empty chord")
			}
			e := RingElem{Chord: true}
			for _, v := range c.Content {
				if v.Kind != yaml.ScalarNode {
					return nil, errorf(v, "chords cannot nest")
				}
				e.Values = append(e.Values, v.Value)
			}
			out = append(out, e)
		default:
			return nil, errorf(c, "ring elements are values or chords")
		}
	}
	return out, nil
}

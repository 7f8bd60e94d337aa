// Package script loads loop sets from YAML and compiles them into loop
// bodies.
//
//	bpm: 120
//	key: {root: c4, scale: minor}
//	fx: [{reverb: {room: 0.8}}, echo]
//	loops:
//	  - name: b
//	    synth: saw
//	    steps:
//	      - play: "0.25 0 1 2 4 5 9"
//	        amp: 0.25
//	  - name: d
//	    sync: b
//	    steps:
//	      - sample: drum_bass_hard
//	      - sleep: 0.5
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/liveloop-go/internal/fx"
	"github.com/cbegin/liveloop-go/internal/notation"
)

// File is a parsed loop set.
type File struct {
	Name  string    `yaml:"-"`
	BPM   float64   `yaml:"bpm,omitempty"`
	Key   *KeySpec  `yaml:"key,omitempty"`
	FX    []Effect  `yaml:"fx,omitempty"`
	Loops []LoopDef `yaml:"loops"`
}

type KeySpec struct {
	Root  yaml.Node `yaml:"root"`
	Scale string    `yaml:"scale"`
}

type LoopDef struct {
	Name  string  `yaml:"name"`
	Sync  string  `yaml:"sync,omitempty"`
	Synth string  `yaml:"synth,omitempty"`
	BPM   float64 `yaml:"bpm,omitempty"`
	Steps []Step  `yaml:"steps"`
	Line  int     `yaml:"-"`
}

// Effect is one entry of the master effects list, either a bare name or a
// single name: {option: value} mapping.
type Effect struct {
	fx.Spec
	Line int
}

func (e *Effect) UnmarshalYAML(n *yaml.Node) error {
	e.Line = n.Line
	switch n.Kind {
	case yaml.ScalarNode:
		e.Name = n.Value
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return errorf(n, "an effect is a name or a single name: options mapping")
		}
		e.Name = n.Content[0].Value
		if err := n.Content[1].Decode(&e.Opts); err != nil {
			return errorf(n.Content[1], "effect %s: options must be numbers", e.Name)
		}
	default:
		return errorf(n, "an effect is a name or a single name: options mapping")
	}
	if err := fx.Check(e.Spec); err != nil {
		return errorf(n, "%v", err)
	}
	return nil
}

// Effects returns the master effects chain in order.
func (f *File) Effects() []fx.Spec {
	specs := make([]fx.Spec, len(f.FX))
	for i, e := range f.FX {
		specs[i] = e.Spec
	}
	return specs
}

// Error locates a problem in a loop set file.
type Error struct {
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse decodes a loop set strictly: unknown fields and malformed steps are
// errors carrying the offending line.
func Parse(data []byte, name string) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{File: name, Msg: "empty loop set"}
		}
		var le *lineError
		if errors.As(err, &le) {
			return nil, &Error{File: name, Line: le.line, Msg: le.msg}
		}
		return nil, &Error{File: name, Msg: strings.TrimPrefix(err.Error(), "yaml: ")}
	}
	f.Name = name
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

var loopKeys = []string{"name", "sync", "synth", "bpm", "steps"}

// UnmarshalYAML records the line each loop starts on. Node.Decode does not
// inherit KnownFields, so keys are checked here.
func (l *LoopDef) UnmarshalYAML(value *yaml.Node) error {
	if err := checkKeys(value, "loop", loopKeys); err != nil {
		return err
	}
	type plain LoopDef
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*l = LoopDef(p)
	l.Line = value.Line
	return nil
}

func (f *File) validate() error {
	if f.BPM < 0 {
		return &Error{File: f.Name, Msg: fmt.Sprintf("bpm must be positive, got %v", f.BPM)}
	}
	if len(f.Loops) == 0 {
		return &Error{File: f.Name, Msg: "no loops defined"}
	}
	if _, err := f.ResolveKey(); err != nil {
		return err
	}
	seen := make(map[string]int)
	for _, l := range f.Loops {
		if l.Name == "" {
			return &Error{File: f.Name, Line: l.Line, Msg: "loop without a name"}
		}
		if prev, ok := seen[l.Name]; ok {
			return &Error{File: f.Name, Line: l.Line, Msg: fmt.Sprintf("loop %q already defined on line %d", l.Name, prev)}
		}
		seen[l.Name] = l.Line
		if l.Sync == l.Name {
			return &Error{File: f.Name, Line: l.Line, Msg: fmt.Sprintf("loop %q cannot sync to itself", l.Name)}
		}
		if l.BPM < 0 {
			return &Error{File: f.Name, Line: l.Line, Msg: fmt.Sprintf("loop %q: bpm must be positive", l.Name)}
		}
		if len(l.Steps) == 0 {
			return &Error{File: f.Name, Line: l.Line, Msg: fmt.Sprintf("loop %q has no steps", l.Name)}
		}
	}
	return nil
}

// ResolveKey returns the file's key, or nil when it sets none.
func (f *File) ResolveKey() (*notation.Key, error) {
	if f.Key == nil {
		return nil, nil
	}
	k := notation.DefaultKey()
	if f.Key.Scale != "" {
		sc, err := notation.ParseScale(f.Key.Scale)
		if err != nil {
			return nil, &Error{File: f.Name, Line: f.Key.Root.Line, Msg: err.Error()}
		}
		k.Scale = sc
	}
	if f.Key.Root.Kind != 0 {
		root, err := ParseNote(f.Key.Root.Value)
		if err != nil {
			return nil, &Error{File: f.Name, Line: f.Key.Root.Line, Msg: err.Error()}
		}
		k.Root = root
	}
	return &k, nil
}

var pitchClass = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// ParseNote accepts a MIDI number or a note name such as c4, eb3 or fs2.
// Octave 4 holds middle C; a missing octave means 4.
func ParseNote(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 127 {
			return 0, fmt.Errorf("note %d out of range", n)
		}
		return n, nil
	}
	if s == "" {
		return 0, errors.New("empty note")
	}
	pc, ok := pitchClass[s[0]]
	if !ok {
		return 0, fmt.Errorf("bad note name %q", s)
	}
	rest := s[1:]
	switch {
	case strings.HasPrefix(rest, "s") || strings.HasPrefix(rest, "#"):
		pc++
		rest = rest[1:]
	case strings.HasPrefix(rest, "b"):
		pc--
		rest = rest[1:]
	}
	octave := 4
	if rest != "" {
		o, err := strconv.Atoi(rest)
		if err != nil {
			return 0, fmt.Errorf("bad note name %q", s)
		}
		octave = o
	}
	n := (octave+1)*12 + pc
	if n < 0 || n > 127 {
		return 0, fmt.Errorf("note %q out of range", s)
	}
	return n, nil
}

// Package fx is the master effects bus applied to rendered audio. Effect and
// option names follow Sonic Pi's with_fx where one exists; times are in
// seconds rather than beats.
package fx

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Unit processes one stereo frame.
type Unit interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain runs units in order over interleaved stereo buffers.
type Chain []Unit

func (c Chain) Process(buf []float32) {
	if len(c) == 0 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		l, r := buf[i], buf[i+1]
		for _, u := range c {
			l, r = u.Process(l, r)
		}
		buf[i], buf[i+1] = l, r
	}
}

func (c Chain) Reset() {
	for _, u := range c {
		u.Reset()
	}
}

// Spec names an effect and overrides some of its options.
type Spec struct {
	Name string
	Opts map[string]float64
}

func (s Spec) String() string {
	if len(s.Opts) == 0 {
		return s.Name
	}
	keys := make([]string, 0, len(s.Opts))
	for k := range s.Opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(s.Opts[k], 'g', -1, 64)
	}
	return s.Name + ":" + strings.Join(parts, ":")
}

type kind struct {
	defaults map[string]float64
	build    func(sampleRate int, o map[string]float64) Unit
}

var kinds = map[string]kind{
	"reverb": {
		defaults: map[string]float64{"room": 0.6, "damp": 0.5, "mix": 0.4},
		build: func(sr int, o map[string]float64) Unit {
			return NewReverb(sr, float32(o["room"]), float32(1-o["damp"]), float32(o["mix"]))
		},
	},
	"echo": {
		defaults: map[string]float64{"phase": 0.25, "decay": 2, "mix": 1},
		build: func(sr int, o map[string]float64) Unit {
			return NewEcho(sr, o["phase"], o["decay"], float32(o["mix"]))
		},
	},
	"distortion": {
		defaults: map[string]float64{"distort": 0.5, "mix": 1},
		build: func(sr int, o map[string]float64) Unit {
			return NewDistortion(float32(o["distort"]), float32(o["mix"]))
		},
	},
	"tremolo": {
		defaults: map[string]float64{"phase": 0.5, "depth": 0.5, "wave": WaveTriangle, "mix": 1},
		build: func(sr int, o map[string]float64) Unit {
			return NewTremolo(sr, o["phase"], o["depth"], int(o["wave"]), float32(o["mix"]))
		},
	},
	"compressor": {
		defaults: map[string]float64{"threshold": 0.2, "slope_above": 0.5, "clamp_time": 0.01, "relax_time": 0.01},
		build: func(sr int, o map[string]float64) Unit {
			return NewCompressor(sr, float32(o["threshold"]), float32(o["slope_above"]), o["clamp_time"], o["relax_time"])
		},
	},
}

// Names lists the known effects.
func Names() []string {
	names := make([]string, 0, len(kinds))
	for n := range kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Check reports unknown effects, unknown options and negative values.
func Check(s Spec) error {
	k, ok := kinds[s.Name]
	if !ok {
		return fmt.Errorf("unknown effect %q (known: %s)", s.Name, strings.Join(Names(), ", "))
	}
	for name, v := range s.Opts {
		if _, ok := k.defaults[name]; !ok {
			return fmt.Errorf("effect %s has no option %q", s.Name, name)
		}
		if v < 0 {
			return fmt.Errorf("effect %s: %s must not be negative", s.Name, name)
		}
	}
	return nil
}

// New builds one effect with its defaults filled in.
func New(sampleRate int, s Spec) (Unit, error) {
	if err := Check(s); err != nil {
		return nil, err
	}
	k := kinds[s.Name]
	opts := make(map[string]float64, len(k.defaults))
	for name, v := range k.defaults {
		opts[name] = v
	}
	for name, v := range s.Opts {
		opts[name] = v
	}
	return k.build(sampleRate, opts), nil
}

func Build(sampleRate int, specs []Spec) (Chain, error) {
	c := make(Chain, 0, len(specs))
	for _, s := range specs {
		u, err := New(sampleRate, s)
		if err != nil {
			return nil, err
		}
		c = append(c, u)
	}
	return c, nil
}

// ParseList reads a comma separated chain such as "reverb:room=0.8,echo".
func ParseList(s string) ([]Spec, error) {
	var specs []Spec
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fields := strings.Split(item, ":")
		spec := Spec{Name: fields[0]}
		for _, f := range fields[1:] {
			name, val, ok := strings.Cut(f, "=")
			if !ok {
				return nil, fmt.Errorf("effect %s: option %q is not name=value", spec.Name, f)
			}
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("effect %s: option %s: %w", spec.Name, name, err)
			}
			if spec.Opts == nil {
				spec.Opts = make(map[string]float64)
			}
			spec.Opts[name] = v
		}
		if err := Check(spec); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

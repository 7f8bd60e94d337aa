package notation

import (
	"fmt"
	"sort"
	"strings"
)

// Scale lists semitone offsets from the root for each degree of one octave.
type Scale []int

var scales = map[string]Scale{
	"major":            {0, 2, 4, 5, 7, 9, 11},
	"minor":            {0, 2, 3, 5, 7, 8, 10},
	"dorian":           {0, 2, 3, 5, 7, 9, 10},
	"phrygian":         {0, 1, 3, 5, 7, 8, 10},
	"lydian":           {0, 2, 4, 6, 7, 9, 11},
	"mixolydian":       {0, 2, 4, 5, 7, 9, 10},
	"locrian":          {0, 1, 3, 5, 6, 8, 10},
	"major_pentatonic": {0, 2, 4, 7, 9},
	"minor_pentatonic": {0, 3, 5, 7, 10},
	"chromatic":        {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

func ParseScale(name string) (Scale, error) {
	s, ok := scales[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown scale %q (known: %s)", name, strings.Join(ScaleNames(), ", "))
	}
	return s, nil
}

func ScaleNames() []string {
	names := make([]string, 0, len(scales))
	for n := range scales {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Key resolves degrees to MIDI note numbers.
type Key struct {
	Root  int
	Scale Scale
}

func DefaultKey() Key {
	return Key{Root: 60, Scale: scales["major"]}
}

// Pitch maps a token to a MIDI note. Degrees past the end of the scale wrap
// into the following octaves; the result is clamped to 0..127.
func (k Key) Pitch(t Token) int {
	sc := k.Scale
	if len(sc) == 0 {
		sc = scales["major"]
	}
	n := len(sc)
	oct := t.Octave + floorDiv(t.Degree, n)
	step := t.Degree - floorDiv(t.Degree, n)*n
	return clampInt(k.Root+12*oct+sc[step], 0, 127)
}

// Pitches resolves a token sequence in order.
func (k Key) Pitches(tokens []Token) []int {
	out := make([]int, len(tokens))
	for i, t := range tokens {
		out[i] = k.Pitch(t)
	}
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package midiout

// GMPrograms maps synth names to zero-based General MIDI programs.
var GMPrograms = map[string]uint8{
	"piano":       0,
	"pretty_bell": 14,
	"tri":         74,
	"sine":        79,
	"beep":        79,
	"square":      80,
	"pulse":       80,
	"saw":         81,
	"dsaw":        81,
	"blade":       89,
	"hollow":      91,
	"noise":       122,
}

package midiout

import "strings"

// DrumMap maps sample names to General MIDI percussion keys.
type DrumMap map[string]uint8

// GMDrums covers the common Sonic Pi drum sample names.
var GMDrums = DrumMap{
	"drum_bass_hard":     36,
	"drum_bass_soft":     35,
	"drum_heavy_kick":    36,
	"bd_haus":            36,
	"bd_boom":            35,
	"bd_tek":             36,
	"drum_snare_hard":    38,
	"drum_snare_soft":    40,
	"sn_dolf":            38,
	"sn_dub":             40,
	"drum_cymbal_closed": 42,
	"drum_cymbal_pedal":  44,
	"drum_cymbal_open":   46,
	"drum_cymbal_soft":   51,
	"drum_cymbal_hard":   49,
	"drum_splash_hard":   55,
	"drum_splash_soft":   55,
	"drum_tom_lo_hard":   45,
	"drum_tom_mid_hard":  47,
	"drum_tom_hi_hard":   50,
	"drum_cowbell":       56,
	"drum_roll":          38,
	"elec_hi_snare":      40,
	"elec_blip":          76,
	"perc_snap":          39,
	"perc_bell":          53,
	"hat_zild":           42,
	"hat_cab":            42,
	"hat_snap":           44,
	"ambi_choir":         52,
	"tabla_tas1":         60,
	"tabla_na":           61,
	"tabla_te1":          62,
	"misc_cineboom":      57,
}

var drumFamilies = []struct {
	prefix string
	key    uint8
}{
	{"bd_", 36},
	{"drum_bass", 36},
	{"sn_", 38},
	{"drum_snare", 38},
	{"hat_", 42},
	{"drum_cymbal", 42},
	{"drum_tom", 45},
	{"tabla_", 60},
	{"perc_", 39},
}

// Lookup resolves name exactly, then by sample family prefix.
func (m DrumMap) Lookup(name string) (uint8, bool) {
	if key, ok := m[name]; ok {
		return key, true
	}
	for _, f := range drumFamilies {
		if strings.HasPrefix(name, f.prefix) {
			return f.key, true
		}
	}
	return 0, false
}

package render

import (
	"fmt"
	"io"
	"os"
	"sync"

	meltysynth "github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/cbegin/liveloop-go/internal/midiout"
)

// synthesizer is the subset of meltysynth.Synthesizer the SoundFont voicer
// drives.
type synthesizer interface {
	ProcessMidiMessage(channel int32, command int32, data1, data2 int32)
	NoteOn(channel, key, vel int32)
	NoteOff(channel, key int32)
	Render(left, right []float32)
}

// newSynthesizer is swapped out by tests.
var newSynthesizer = func(sf *meltysynth.SoundFont, settings *meltysynth.SynthesizerSettings) (synthesizer, error) {
	return meltysynth.NewSynthesizer(sf, settings)
}

// SoundFont plays notes through a SoundFont synthesizer. Instruments select
// General MIDI programs on the note channel.
type SoundFont struct {
	mu       sync.Mutex
	syn      synthesizer
	programs map[string]uint8
	program  int
	nextID   int
	notes    map[int][2]int32
}

// LoadSoundFont reads an SF2 file.
func LoadSoundFont(path string, sampleRate int) (*SoundFont, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("soundfont: %w", err)
	}
	defer f.Close()
	return NewSoundFont(f, sampleRate)
}

func NewSoundFont(r io.Reader, sampleRate int) (*SoundFont, error) {
	sf, err := meltysynth.NewSoundFont(r)
	if err != nil {
		return nil, fmt.Errorf("soundfont: parse: %w", err)
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	syn, err := newSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("soundfont: synthesizer: %w", err)
	}
	return newSoundFontVoicer(syn), nil
}

func newSoundFontVoicer(syn synthesizer) *SoundFont {
	return &SoundFont{
		syn:      syn,
		programs: midiout.GMPrograms,
		program:  -1,
		notes:    make(map[int][2]int32),
	}
}

func (s *SoundFont) NoteOn(channel, key, velocity int, instrument string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := int32(channel)
	if prog, ok := s.programs[instrument]; ok && channel != 9 && int(prog) != s.program {
		s.syn.ProcessMidiMessage(ch, 0xC0, int32(prog), 0)
		s.program = int(prog)
	}
	s.syn.NoteOn(ch, int32(key), int32(velocity))
	id := s.nextID
	s.nextID++
	s.notes[id] = [2]int32{ch, int32(key)}
	return id
}

func (s *SoundFont) NoteOff(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return
	}
	delete(s.notes, id)
	s.syn.NoteOff(n[0], n[1])
}

func (s *SoundFont) Render(left, right []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syn.Render(left, right)
}

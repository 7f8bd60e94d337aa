//go:build !cgo

package main

import (
	"errors"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// with no cgo there is no rtmidi, so MIDI output is unavailable
func openMIDIOut(name string) (drivers.Out, func() error, error) {
	return nil, nil, errors.New("MIDI output needs a cgo build")
}

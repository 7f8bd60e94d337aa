//go:build cgo

package main

import (
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// openMIDIOut opens the output port whose name contains name, or the port
// with that index.
func openMIDIOut(name string) (drivers.Out, func() error, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, nil, fmt.Errorf("midi driver: %w", err)
	}
	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, nil, fmt.Errorf("midi outputs: %w", err)
	}
	var found drivers.Out
	if idx, err := strconv.Atoi(name); err == nil && idx >= 0 && idx < len(outs) {
		found = outs[idx]
	}
	for _, out := range outs {
		if found != nil {
			break
		}
		if strings.Contains(strings.ToLower(out.String()), strings.ToLower(name)) {
			found = out
		}
	}
	if found == nil {
		drv.Close()
		return nil, nil, fmt.Errorf("no MIDI output matching %q", name)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, nil, fmt.Errorf("opening MIDI output %s failed: %w", found, err)
	}
	return found, func() error {
		found.Close()
		return drv.Close()
	}, nil
}

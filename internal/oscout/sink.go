// Package oscout forwards loop events as OSC messages, for servers such as
// SuperCollider that do the actual synthesis.
package oscout

import (
	"fmt"

	"github.com/hypebeast/go-osc/osc"

	"github.com/cbegin/liveloop-go/internal/event"
)

const (
	NoteAddress   = "/liveloop/note"
	SampleAddress = "/liveloop/sample"
)

// Sender is satisfied by *osc.Client.
type Sender interface {
	Send(packet osc.Packet) error
}

type Sink struct {
	client Sender
	prefix string
}

type Option func(*Sink)

// WithPrefix replaces the "/liveloop" address prefix.
func WithPrefix(prefix string) Option {
	return func(s *Sink) { s.prefix = prefix }
}

func NewSink(client Sender, opts ...Option) *Sink {
	s := &Sink{client: client, prefix: "/liveloop"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial returns a sink sending UDP datagrams to host:port.
func Dial(host string, port int, opts ...Option) *Sink {
	return NewSink(osc.NewClient(host, port), opts...)
}

// Message builds the OSC message for ev. Notes carry loop, cycle, MIDI note,
// duration in seconds, amplitude and instrument; samples carry loop, cycle,
// sample name and amplitude.
func (s *Sink) Message(ev event.Event) (*osc.Message, error) {
	switch ev.Kind {
	case event.KindNote:
		msg := osc.NewMessage(s.prefix + "/note")
		msg.Append(ev.Loop)
		msg.Append(int32(ev.Cycle))
		msg.Append(int32(ev.Note))
		msg.Append(float32(ev.Duration.Seconds()))
		msg.Append(float32(ev.Amp))
		msg.Append(ev.Instrument)
		return msg, nil
	case event.KindSample:
		msg := osc.NewMessage(s.prefix + "/sample")
		msg.Append(ev.Loop)
		msg.Append(int32(ev.Cycle))
		msg.Append(ev.Sample)
		msg.Append(float32(ev.Amp))
		return msg, nil
	default:
		return nil, fmt.Errorf("osc: unsupported event kind %v", ev.Kind)
	}
}

func (s *Sink) Emit(ev event.Event) error {
	msg, err := s.Message(ev)
	if err != nil {
		return err
	}
	if err := s.client.Send(msg); err != nil {
		return fmt.Errorf("osc: send %s: %w", msg.Address, err)
	}
	return nil
}

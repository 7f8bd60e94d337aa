// Package event defines the timed events loops produce and the sinks that
// consume them.
package event

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

type Kind int

const (
	KindNote Kind = iota + 1
	KindSample
)

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindSample:
		return "sample"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a fully resolved sound. Time is absolute logical time since the
// runtime started; Duration is the sounding length.
type Event struct {
	Kind       Kind
	Loop       string
	Cycle      int
	Time       time.Duration
	Duration   time.Duration
	Note       int
	Sample     string
	Instrument string
	Amp        float64
}

func (e Event) String() string {
	if e.Kind == KindSample {
		return fmt.Sprintf("%s#%d @%v sample %s amp=%.2f", e.Loop, e.Cycle, e.Time, e.Sample, e.Amp)
	}
	return fmt.Sprintf("%s#%d @%v note %d dur=%v amp=%.2f", e.Loop, e.Cycle, e.Time, e.Note, e.Duration, e.Amp)
}

type Sink interface {
	Emit(ev Event) error
}

// Flusher is implemented by sinks that hold pending work keyed by time, such
// as queued note-offs.
type Flusher interface {
	Flush(now time.Duration) error
}

type SinkFunc func(Event) error

func (f SinkFunc) Emit(ev Event) error { return f(ev) }

// Discard accepts every event.
var Discard Sink = SinkFunc(func(Event) error { return nil })

// Multi fans every event out to all sinks and joins their errors.
type Multi []Sink

func (m Multi) Emit(ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Flush(now time.Duration) error {
	var errs []error
	for _, s := range m {
		if f, ok := s.(Flusher); ok {
			if err := f.Flush(now); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every emitted event in order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ForLoop returns the recorded events of one loop.
func (r *Recorder) ForLoop(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Loop == name {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = r.events[:0]
}

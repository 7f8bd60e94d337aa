// Package liveloop runs named, concurrently looping musical processes that
// can be redefined while they play and phase-locked to each other.
package liveloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cbegin/liveloop-go/internal/barrier"
	"github.com/cbegin/liveloop-go/internal/event"
	"github.com/cbegin/liveloop-go/internal/loop"
	"github.com/cbegin/liveloop-go/internal/notation"
	"github.com/cbegin/liveloop-go/internal/scheduler"
	"github.com/cbegin/liveloop-go/internal/script"
)

type Logger = scheduler.Logger

// Clock reports how far playback has progressed since it started.
type Clock interface {
	Now() time.Duration
}

type ClockFunc func() time.Duration

func (f ClockFunc) Now() time.Duration { return f() }

// WallClock counts from the moment it is created.
func WallClock() Clock {
	start := time.Now()
	return ClockFunc(func() time.Duration { return time.Since(start) })
}

type Option func(*runtimeConfig)

type runtimeConfig struct {
	bpm     float64
	key     notation.Key
	synth   string
	sink    event.Sink
	log     Logger
	ahead   time.Duration
	latency time.Duration
	clock   Clock
}

// DefaultScheduleAhead is how far past the clock iterations are evaluated
// when running in real time.
const DefaultScheduleAhead = 100 * time.Millisecond

const driveInterval = 5 * time.Millisecond

// waitRecheck bounds how long WaitCycles trusts the barrier before looking
// at the registry again.
const waitRecheck = 50 * time.Millisecond

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		bpm:   loop.DefaultBPM,
		key:   notation.DefaultKey(),
		sink:  event.Discard,
		log:   log.New(os.Stderr, "", log.LstdFlags),
		ahead: DefaultScheduleAhead,
	}
}

func WithBPM(bpm float64) Option {
	return func(cfg *runtimeConfig) {
		if bpm > 0 {
			cfg.bpm = bpm
		}
	}
}

func WithKey(k notation.Key) Option {
	return func(cfg *runtimeConfig) { cfg.key = k }
}

// WithSynth sets the instrument notes use when a body does not pick one.
func WithSynth(name string) Option {
	return func(cfg *runtimeConfig) { cfg.synth = name }
}

// WithSink sets where events go once they are due. Use event.Multi to fan
// out to several outputs.
func WithSink(sink event.Sink) Option {
	return func(cfg *runtimeConfig) {
		if sink != nil {
			cfg.sink = sink
		}
	}
}

func WithLogger(l Logger) Option {
	return func(cfg *runtimeConfig) {
		if l != nil {
			cfg.log = l
		}
	}
}

// WithScheduleAhead sets how far past the clock Run evaluates iterations.
func WithScheduleAhead(d time.Duration) Option {
	return func(cfg *runtimeConfig) {
		if d >= 0 {
			cfg.ahead = d
		}
	}
}

// WithLatency hands events to the sink this long before they are due.
// Sinks that place events on their own timeline, like an audio synth,
// want the full schedule-ahead window; a MIDI port wants zero.
func WithLatency(d time.Duration) Option {
	return func(cfg *runtimeConfig) {
		if d >= 0 {
			cfg.latency = d
		}
	}
}

// WithClock drives Run from c instead of the wall clock, for example an
// audio player's output position.
func WithClock(c Clock) Option {
	return func(cfg *runtimeConfig) { cfg.clock = c }
}

// Runtime owns the loops, the logical clock and the event output.
type Runtime struct {
	sched   *scheduler.Scheduler
	queue   *event.Queue
	sink    event.Sink
	log     Logger
	ahead   time.Duration
	latency time.Duration
	clock   Clock
	late    *rate.Limiter

	watchMu sync.Mutex
	watchCh chan Notice
}

func New(opts ...Option) *Runtime {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &Runtime{
		sink:    cfg.sink,
		log:     cfg.log,
		ahead:   cfg.ahead,
		latency: cfg.latency,
		clock:   cfg.clock,
		late:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
	r.queue = event.NewQueue(cfg.sink)
	r.sched = scheduler.New(
		scheduler.WithBPM(cfg.bpm),
		scheduler.WithKey(cfg.key),
		scheduler.WithSynth(cfg.synth),
		scheduler.WithSink(r.queue),
		scheduler.WithLogger(cfg.log),
		scheduler.WithObserver(r.sendNotice),
	)
	return r
}

// Define creates a loop or swaps the body of a running one. The new body is
// picked up at the loop's next iteration.
func (r *Runtime) Define(name string, body Body, opts ...DefineOption) error {
	return r.sched.Define(name, body, opts...)
}

// Stop lets the named loop finish its current iteration and then removes it.
func (r *Runtime) Stop(name string) error { return r.sched.Stop(name) }

func (r *Runtime) StopAll() []string { return r.sched.StopAll() }

// Load defines every loop of a parsed loop set and applies its tempo and
// key. Loops already running under the same names are redefined in place.
func (r *Runtime) Load(f *script.File) ([]string, error) {
	defs, err := script.Compile(f)
	if err != nil {
		return nil, err
	}
	k, err := f.ResolveKey()
	if err != nil {
		return nil, err
	}
	if f.BPM > 0 {
		if err := r.sched.SetBPM(f.BPM); err != nil {
			return nil, err
		}
	}
	if k != nil {
		r.sched.SetKey(*k)
	}
	names := make([]string, 0, len(defs))
	var errs []error
	for _, d := range defs {
		if err := r.Define(d.Name, d.Body, d.Options()...); err != nil {
			errs = append(errs, fmt.Errorf("loop %q: %w", d.Name, err))
			continue
		}
		names = append(names, d.Name)
	}
	return names, errors.Join(errs...)
}

func (r *Runtime) LoadFile(path string) ([]string, error) {
	f, err := script.Load(path)
	if err != nil {
		return nil, err
	}
	return r.Load(f)
}

func (r *Runtime) Now() time.Duration { return r.sched.Now() }

func (r *Runtime) BPM() float64 { return r.sched.BPM() }

func (r *Runtime) SetBPM(bpm float64) error { return r.sched.SetBPM(bpm) }

func (r *Runtime) SetKey(k notation.Key) { r.sched.SetKey(k) }

func (r *Runtime) Status() []Status { return r.sched.Registry().Status() }

// Ticks returns the current position of every tick key.
func (r *Runtime) Ticks() map[string]int { return r.sched.Ticks().Snapshot() }

// Retired reports whether name was removed and the error that removed it,
// if any.
func (r *Runtime) Retired(name string) (error, bool) { return r.sched.Registry().Retired(name) }

// AdvanceTo runs every iteration due by t and emits every event due by t.
// Offline renders and tests drive the runtime this way.
func (r *Runtime) AdvanceTo(t time.Duration) error {
	r.sched.AdvanceTo(t)
	return r.queue.Flush(t)
}

func (r *Runtime) Advance(d time.Duration) error {
	return r.AdvanceTo(r.sched.Now() + d)
}

// Run drives the runtime in real time until ctx is done. Iterations are
// evaluated up to the schedule-ahead window past the clock and their events
// are held back until due.
func (r *Runtime) Run(ctx context.Context) error {
	clock := r.clock
	if clock == nil {
		clock = WallClock()
	}
	t := time.NewTicker(driveInterval)
	defer t.Stop()
	var horizon time.Duration
	for {
		now := clock.Now()
		if lag := now - horizon; horizon > 0 && lag > 0 && r.late.Allow() {
			r.log.Printf("warn: running %v behind the clock", lag)
		}
		horizon = now + r.ahead
		r.sched.AdvanceTo(horizon)
		if err := r.queue.Flush(now + r.latency); err != nil {
			r.log.Printf("error: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Close releases the sink. Events still held back are dropped.
func (r *Runtime) Close() error {
	if c, ok := r.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WaitCycles blocks until name has started n more cycles, ctx is done, or
// the loop stops. Waiting on a loop that is not defined fails at once.
func (r *Runtime) WaitCycles(ctx context.Context, name string, n int) error {
	if n <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	bar := r.sched.Barrier()
	start, _ := bar.Generation(name)
	for {
		if _, ok := r.sched.Registry().Get(name); !ok {
			if _, retired := r.Retired(name); retired {
				return fmt.Errorf("loop %q: %w", name, ErrStoppedSyncTarget)
			}
			return fmt.Errorf("%w: %q", ErrUnknownLoop, name)
		}
		// a stop that lands before Wait registers is caught by the next check
		wctx, cancel := context.WithTimeout(ctx, waitRecheck)
		_, err := bar.Wait(wctx, name, start+uint64(n)-1)
		cancel()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, barrier.ErrGone):
			return fmt.Errorf("loop %q: %w", name, ErrStoppedSyncTarget)
		case ctx.Err() != nil:
			return ctx.Err()
		}
	}
}

// Watch returns a channel of loop lifecycle notices. The channel is buffered
// (cap 8) and notices are dropped while it is full, so receive in a
// goroutine. Only the most recent Watch channel receives notices.
func (r *Runtime) Watch() <-chan Notice {
	ch := make(chan Notice, 8)
	r.watchMu.Lock()
	r.watchCh = ch
	r.watchMu.Unlock()
	return ch
}

func (r *Runtime) sendNotice(n Notice) {
	r.watchMu.Lock()
	ch := r.watchCh
	r.watchMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- n:
	default:
	}
}

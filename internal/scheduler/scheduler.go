// Package scheduler runs loops against a single logical clock. Sleeping is
// reinsertion into a wake queue, so a run is fully reproducible for a given
// sequence of definitions and clock advances.
package scheduler

import (
	"container/heap"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/cbegin/liveloop-go/internal/barrier"
	"github.com/cbegin/liveloop-go/internal/event"
	"github.com/cbegin/liveloop-go/internal/loop"
	"github.com/cbegin/liveloop-go/internal/notation"
	"github.com/cbegin/liveloop-go/internal/tick"
)

type Logger interface {
	Printf(format string, args ...any)
}

type Option func(*Scheduler)

func WithLogger(l Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

func WithSink(sink event.Sink) Option {
	return func(s *Scheduler) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func WithBPM(bpm float64) Option {
	return func(s *Scheduler) {
		if bpm > 0 {
			s.bpm = bpm
		}
	}
}

func WithKey(k notation.Key) Option {
	return func(s *Scheduler) {
		if len(k.Scale) > 0 {
			s.key = k
		}
	}
}

func WithSynth(name string) Option {
	return func(s *Scheduler) { s.synth = name }
}

func WithTicks(c *tick.Cycler) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.ticks = c
		}
	}
}

func WithParser(p *notation.Parser) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithObserver receives lifecycle notices. It is called with the scheduler
// lock held and must not call back into the scheduler.
func WithObserver(fn func(Notice)) Option {
	return func(s *Scheduler) { s.observe = fn }
}

type Scheduler struct {
	// advance serializes AdvanceTo; mu guards everything below and is
	// released while a body runs.
	advance sync.Mutex
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	queue   wakeQueue
	parked  map[string][]*loop.Loop
	active  map[*loop.Loop]bool

	reg     *loop.Registry
	bar     *barrier.Barrier
	ticks   *tick.Cycler
	parser  *notation.Parser
	sink    event.Sink
	log     Logger
	observe func(Notice)

	bpm   float64
	key   notation.Key
	synth string
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		parked: make(map[string][]*loop.Loop),
		active: make(map[*loop.Loop]bool),
		reg:    loop.NewRegistry(),
		bar:    barrier.New(),
		ticks:  tick.New(),
		parser: notation.NewParser(notation.DefaultParserConfig()),
		sink:   event.Discard,
		log:    log.New(os.Stderr, "", log.LstdFlags),
		bpm:    loop.DefaultBPM,
		key:    notation.DefaultKey(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Registry() *loop.Registry { return s.reg }

func (s *Scheduler) Barrier() *barrier.Barrier { return s.bar }

func (s *Scheduler) Ticks() *tick.Cycler { return s.ticks }

func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Scheduler) SetBPM(bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("invalid bpm %v", bpm)
	}
	s.mu.Lock()
	s.bpm = bpm
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) BPM() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

func (s *Scheduler) SetKey(k notation.Key) {
	s.mu.Lock()
	s.key = k
	s.mu.Unlock()
}

// Define creates or redefines a loop. A new loop is picked up at the current
// logical time; a redefined one keeps its wake time and takes the new body at
// its next iteration.
func (s *Scheduler) Define(name string, body loop.Body, opts ...loop.DefineOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, created, err := s.reg.Define(name, body, opts...)
	if err != nil {
		return err
	}
	target := l.SyncTarget()
	if current, ok := s.bar.Target(name); !ok || current != target {
		if target == "" {
			s.bar.Unregister(name)
		} else {
			s.bar.Register(name, target)
		}
		if from, parked := s.parkedOn(l); parked && from != target {
			s.unpark(l, from)
			s.push(l, s.now)
		}
	}
	if created || !s.active[l] {
		s.push(l, s.now)
	}
	return nil
}

// Stop asks a loop to leave at its next boundary. A loop parked on its sync
// target is at a boundary already and leaves immediately.
func (s *Scheduler) Stop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.Stop(name); err != nil {
		return err
	}
	l, _ := s.reg.Get(name)
	if from, parked := s.parkedOn(l); parked {
		s.unpark(l, from)
		s.retire(l, nil)
	}
	return nil
}

func (s *Scheduler) StopAll() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := s.reg.StopAll()
	for _, name := range names {
		l, ok := s.reg.Get(name)
		if !ok {
			continue
		}
		if from, parked := s.parkedOn(l); parked {
			s.unpark(l, from)
			s.retire(l, nil)
		}
	}
	return names
}

// Next returns the earliest pending wake time.
func (s *Scheduler) Next() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0, false
	}
	return s.queue[0].at, true
}

// Pending counts loops waiting in the wake queue or parked on a sync target.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// AdvanceTo runs every iteration due at or before t, in time order, and
// leaves the clock at t. Iterations due at the same time run in loop name
// order; loops released by an iteration run right after it.
//
// Bodies run without the scheduler lock, so they may define and stop loops
// or change the tempo. They must not advance the clock themselves.
func (s *Scheduler) AdvanceTo(t time.Duration) {
	s.advance.Lock()
	defer s.advance.Unlock()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].at > t {
			if t > s.now {
				s.now = t
			}
			s.mu.Unlock()
			return
		}
		w := heap.Pop(&s.queue).(wake)
		if w.at > s.now {
			s.now = w.at
		}
		it := s.dispatch(w.loop)
		s.mu.Unlock()
		if it == nil {
			continue
		}

		err := evaluate(w.loop.Body(), it)

		s.mu.Lock()
		s.finish(w.loop, it, err)
		s.mu.Unlock()
	}
}

// Advance moves the clock forward by d.
func (s *Scheduler) Advance(d time.Duration) {
	s.AdvanceTo(s.Now() + d)
}

func (s *Scheduler) push(l *loop.Loop, at time.Duration) {
	s.active[l] = true
	heap.Push(&s.queue, wake{at: at, name: l.Name(), seq: s.seq, loop: l})
	s.seq++
}

// dispatch decides what a due wake does and returns the iteration to
// evaluate, or nil when the loop retired, failed or parked instead.
func (s *Scheduler) dispatch(l *loop.Loop) *loop.Iteration {
	delete(s.active, l)
	if !s.reg.Current(l) {
		return nil
	}
	if l.StopRequested() {
		s.retire(l, nil)
		return nil
	}
	if target := l.SyncTarget(); target != "" {
		if !s.syncReady(l, target) {
			return nil
		}
	}
	return s.begin(l)
}

// syncReady consumes a pending boundary of target or parks l until the next
// one. It fails l when target cannot produce boundaries.
func (s *Scheduler) syncReady(l *loop.Loop, target string) bool {
	name := l.Name()
	if current, ok := s.bar.Target(name); !ok || current != target {
		s.bar.Register(name, target)
	}
	if _, ok := s.reg.Get(target); !ok {
		if cause, retired := s.reg.Retired(target); retired {
			s.fail(l, l.Cycles(), fmt.Errorf("%w: %q (%v)", ErrStoppedSyncTarget, target, causeText(cause)))
		} else {
			s.fail(l, l.Cycles(), fmt.Errorf("%w: %q", ErrUnknownSyncTarget, target))
		}
		return false
	}
	l.SetState(loop.StateWaitingSync)
	if s.bar.Consume(name) {
		return true
	}
	if s.cycleThroughParked(l, target) {
		s.fail(l, l.Cycles(), fmt.Errorf("%w: %q waits on %q", ErrSyncCycle, name, target))
		return false
	}
	s.active[l] = true
	s.parked[target] = append(s.parked[target], l)
	return false
}

// cycleThroughParked reports whether following sync targets from target
// leads back to l through loops that are all parked.
func (s *Scheduler) cycleThroughParked(l *loop.Loop, target string) bool {
	seen := map[string]bool{l.Name(): true}
	for name := target; ; {
		if name == l.Name() {
			return true
		}
		if seen[name] {
			return false
		}
		seen[name] = true
		next, ok := s.reg.Get(name)
		if !ok {
			return false
		}
		if _, parked := s.parkedOn(next); !parked {
			return false
		}
		name = next.SyncTarget()
	}
}

// begin starts the next cycle of l. The loop counts as active while its
// body runs so a redefinition from any body does not queue it twice.
func (s *Scheduler) begin(l *loop.Loop) *loop.Iteration {
	cycle := l.NextCycle()
	l.SetState(loop.StateRunning)
	if cycle == 0 {
		s.notify(Notice{Kind: NoticeLoopStarted, Loop: l.Name(), Time: s.now})
	}
	s.active[l] = true
	return loop.NewIteration(loop.Config{
		Loop:   l.Name(),
		Cycle:  cycle,
		Start:  s.now,
		BPM:    s.bpm,
		Key:    s.key,
		Synth:  s.synth,
		Parser: s.parser,
		Ticks:  s.ticks,
	})
}

// finish files the outcome of an evaluated iteration.
func (s *Scheduler) finish(l *loop.Loop, it *loop.Iteration, err error) {
	delete(s.active, l)
	if !s.reg.Current(l) {
		return
	}
	name := l.Name()
	at := it.Start()
	cycle := it.Cycle()
	length := it.Span()
	if err == nil && length <= 0 {
		err = loop.ErrNoSleep
	}
	if err != nil && !Recoverable(err) {
		s.fail(l, cycle, err)
		return
	}

	s.notify(Notice{Kind: NoticeCycleStarted, Loop: name, Cycle: cycle, Time: at})
	s.bar.Arrive(name, at)
	s.release(name, at)

	if err != nil {
		dropped := len(it.Events())
		lerr := &LoopError{Loop: name, Cycle: cycle, Err: err}
		s.log.Printf("warn: %v; %d buffered events discarded", lerr, dropped)
		s.notify(Notice{Kind: NoticeIterationAborted, Loop: name, Cycle: cycle, Time: at, Err: lerr, Dropped: dropped})
		retry := length
		if retry <= 0 {
			retry = l.LastDuration()
		}
		if retry <= 0 {
			retry = it.Beats(1)
		}
		s.push(l, at+retry)
		return
	}

	for _, ev := range it.Events() {
		if err := s.sink.Emit(ev); err != nil {
			s.log.Printf("error: emit %v: %v", ev, err)
		}
	}
	l.SetLastDuration(length)
	s.push(l, at+length)
}

// evaluate runs body and turns a panic into an error carrying a stack.
func evaluate(body loop.Body, it *loop.Iteration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.Errorf("panic: %v", r)
		}
	}()
	return body(it)
}

// release hands the parked waiters of name back to the wake queue at the
// current time, in name order.
func (s *Scheduler) release(name string, at time.Duration) {
	waiters := s.parked[name]
	if len(waiters) == 0 {
		return
	}
	delete(s.parked, name)
	sort.Slice(waiters, func(i, j int) bool { return waiters[i].Name() < waiters[j].Name() })
	for _, w := range waiters {
		delete(s.active, w)
		s.push(w, at)
	}
}

func (s *Scheduler) parkedOn(l *loop.Loop) (string, bool) {
	if l == nil || l.State() != loop.StateWaitingSync {
		return "", false
	}
	for target, waiters := range s.parked {
		for _, w := range waiters {
			if w == l {
				return target, true
			}
		}
	}
	return "", false
}

func (s *Scheduler) unpark(l *loop.Loop, target string) {
	waiters := s.parked[target]
	for i, w := range waiters {
		if w == l {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(s.parked, target)
	} else {
		s.parked[target] = waiters
	}
	delete(s.active, l)
}

func (s *Scheduler) retire(l *loop.Loop, cause error) {
	name := l.Name()
	s.reg.Remove(l, cause)
	s.bar.Forget(name)
	delete(s.active, l)
	if cause == nil {
		s.log.Printf("info: loop %q stopped after %d cycles", name, l.Cycles())
		s.notify(Notice{Kind: NoticeLoopStopped, Loop: name, Cycle: l.Cycles(), Time: s.now})
	}
	waiters := s.parked[name]
	delete(s.parked, name)
	sort.Slice(waiters, func(i, j int) bool { return waiters[i].Name() < waiters[j].Name() })
	for _, w := range waiters {
		delete(s.active, w)
		s.fail(w, w.Cycles(), fmt.Errorf("%w: %q", ErrStoppedSyncTarget, name))
	}
}

func (s *Scheduler) fail(l *loop.Loop, cycle int, err error) {
	lerr := &LoopError{Loop: l.Name(), Cycle: cycle, Err: err}
	s.log.Printf("error: %+v", lerr)
	s.notify(Notice{Kind: NoticeLoopFailed, Loop: l.Name(), Cycle: cycle, Time: s.now, Err: lerr})
	s.retire(l, lerr)
}

func (s *Scheduler) notify(n Notice) {
	if s.observe != nil {
		s.observe(n)
	}
}

func causeText(err error) string {
	if err == nil {
		return "stopped"
	}
	return "failed"
}

// Package barrier tracks cycle-start boundaries of loops so that other loops
// can phase-lock to them.
package barrier

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrGone = errors.New("sync source gone")

type cue struct {
	gen  uint64
	at   time.Duration
	ch   chan struct{}
	gone bool
}

type waiter struct {
	target string
	seen   uint64
}

// Barrier records a generation per loop, bumped on every cycle start. A
// waiter remembers the last generation it consumed, so any number of missed
// boundaries collapse into a single pending one.
type Barrier struct {
	mu      sync.Mutex
	cues    map[string]*cue
	waiters map[string]*waiter
}

func New() *Barrier {
	return &Barrier{
		cues:    make(map[string]*cue),
		waiters: make(map[string]*waiter),
	}
}

func (b *Barrier) cueLocked(name string) *cue {
	c, ok := b.cues[name]
	if !ok || c.gone {
		c = &cue{ch: make(chan struct{})}
		b.cues[name] = c
	}
	return c
}

// Register makes name wait on target. Only boundaries that happen after this
// call count as pending.
func (b *Barrier) Register(name, target string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.cueLocked(target)
	b.waiters[name] = &waiter{target: target, seen: c.gen}
}

func (b *Barrier) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.waiters, name)
}

// Target returns the registered target for name.
func (b *Barrier) Target(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.waiters[name]
	if !ok {
		return "", false
	}
	return w.target, true
}

// Arrive records a cycle start of name at the given logical time and wakes
// every goroutine blocked in Wait on it.
func (b *Barrier) Arrive(name string, at time.Duration) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.cueLocked(name)
	c.gen++
	c.at = at
	close(c.ch)
	c.ch = make(chan struct{})
	return c.gen
}

// Pending reports whether name's target started a cycle that name has not
// consumed yet.
func (b *Barrier) Pending(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.waiters[name]
	if !ok {
		return false
	}
	c, ok := b.cues[w.target]
	return ok && c.gen > w.seen
}

// Consume clears the pending boundary for name. It returns false when there
// is nothing to consume.
func (b *Barrier) Consume(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.waiters[name]
	if !ok {
		return false
	}
	c, ok := b.cues[w.target]
	if !ok || c.gen <= w.seen {
		return false
	}
	w.seen = c.gen
	return true
}

// Generation returns the number of cycle starts seen for name and the time
// of the latest one.
func (b *Barrier) Generation(name string) (uint64, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.cues[name]
	if !ok {
		return 0, 0
	}
	return c.gen, c.at
}

// Wait blocks until name has a generation greater than after.
func (b *Barrier) Wait(ctx context.Context, name string, after uint64) (uint64, error) {
	for {
		b.mu.Lock()
		c := b.cueLocked(name)
		if c.gen > after {
			gen := c.gen
			b.mu.Unlock()
			return gen, nil
		}
		ch := c.ch
		b.mu.Unlock()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ch:
		}
		b.mu.Lock()
		gone := c.gone
		b.mu.Unlock()
		if gone {
			return 0, ErrGone
		}
	}
}

// Forget drops name as a sync source and releases goroutines waiting on it.
// The generation survives so waiters registered earlier never see a later
// incarnation of name as already pending.
func (b *Barrier) Forget(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.waiters, name)
	c, ok := b.cues[name]
	if !ok {
		return
	}
	c.gone = true
	close(c.ch)
	b.cues[name] = &cue{gen: c.gen, at: c.at, ch: make(chan struct{})}
}

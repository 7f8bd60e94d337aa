// Package loop holds named loop definitions and the per-iteration context
// their bodies run against.
package loop

import (
	"sync"
	"sync/atomic"
	"time"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
	StateWaitingSync
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateWaitingSync:
		return "waiting-sync"
	default:
		return "stopped"
	}
}

// Body is evaluated once per iteration. Returning an error aborts the
// iteration; see the scheduler for how each error class is handled.
type Body func(it *Iteration) error

type Loop struct {
	name    string
	body    atomic.Pointer[Body]
	state   atomic.Int32
	stopReq atomic.Bool
	cycles  atomic.Int64
	waits   atomic.Int64

	mu         sync.Mutex
	syncTarget string
	lastDur    time.Duration
	err        error
	defined    int
}

func newLoop(name string, body Body) *Loop {
	l := &Loop{name: name}
	l.body.Store(&body)
	l.defined = 1
	return l
}

func (l *Loop) Name() string { return l.name }

// Body returns the body to run for the next iteration.
func (l *Loop) Body() Body { return *l.body.Load() }

func (l *Loop) swapBody(body Body) { l.body.Store(&body) }

func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) SetState(s State) {
	if prev := State(l.state.Swap(int32(s))); s == StateWaitingSync && prev != s {
		l.waits.Add(1)
	}
}

// SyncWaits counts how many times the loop waited on its sync target,
// including waits satisfied by a boundary that was already pending.
func (l *Loop) SyncWaits() int { return int(l.waits.Load()) }

func (l *Loop) Cycles() int { return int(l.cycles.Load()) }

// NextCycle returns the current cycle number and advances it.
func (l *Loop) NextCycle() int { return int(l.cycles.Add(1) - 1) }

func (l *Loop) RequestStop() { l.stopReq.Store(true) }

func (l *Loop) StopRequested() bool { return l.stopReq.Load() }

func (l *Loop) SyncTarget() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.syncTarget
}

// LastDuration is the length of the last completed iteration.
func (l *Loop) LastDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastDur
}

func (l *Loop) SetLastDuration(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastDur = d
}

func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Loop) SetErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// Definitions counts how many times the loop was defined.
func (l *Loop) Definitions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.defined
}

package loop

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownLoop = errors.New("unknown loop")
	ErrNoSleep     = errors.New("loop body neither slept nor played anything with a length")
)

type DefineOption func(*defineParams)

type defineParams struct {
	setSync bool
	target  string
}

// WithSync phase-locks the loop to target's cycle starts.
func WithSync(target string) DefineOption {
	return func(p *defineParams) {
		p.setSync = true
		p.target = target
	}
}

// WithoutSync clears a previously set sync target.
func WithoutSync() DefineOption {
	return WithSync("")
}

// Status is a point-in-time view of a loop.
type Status struct {
	Name        string
	Sync        string
	State       State
	Cycles      int
	SyncWaits   int
	Definitions int
	StopPending bool
	Err         error
}

type Registry struct {
	mu      sync.Mutex
	loops   map[string]*Loop
	retired map[string]error
}

func NewRegistry() *Registry {
	return &Registry{
		loops:   make(map[string]*Loop),
		retired: make(map[string]error),
	}
}

// Define creates the loop or swaps the body of an existing one. The running
// iteration keeps the body it started with. Without a sync option the
// existing sync target is kept. created reports whether the loop is new.
func (r *Registry) Define(name string, body Body, opts ...DefineOption) (l *Loop, created bool, err error) {
	if name == "" {
		return nil, false, errors.New("loop name must not be empty")
	}
	if body == nil {
		return nil, false, fmt.Errorf("loop %q: body must not be nil", name)
	}
	var p defineParams
	for _, opt := range opts {
		opt(&p)
	}
	if p.setSync && p.target == name {
		return nil, false, fmt.Errorf("loop %q cannot sync to itself", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.loops[name]; ok {
		existing.swapBody(body)
		existing.stopReq.Store(false)
		existing.mu.Lock()
		existing.defined++
		if p.setSync {
			existing.syncTarget = p.target
		}
		existing.mu.Unlock()
		return existing, false, nil
	}
	l = newLoop(name, body)
	l.syncTarget = p.target
	r.loops[name] = l
	delete(r.retired, name)
	return l, true, nil
}

// Stop asks the loop to leave the schedule at its next iteration boundary.
func (r *Registry) Stop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loops[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLoop, name)
	}
	l.RequestStop()
	return nil
}

// StopAll requests a stop for every loop and returns their names.
func (r *Registry) StopAll() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.loops))
	for name, l := range r.loops {
		l.RequestStop()
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Get(name string) (*Loop, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loops[name]
	return l, ok
}

// Current reports whether l is still the registered loop for its name.
func (r *Registry) Current(l *Loop) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loops[l.name] == l
}

// Remove takes the loop out of the registry and remembers why. A nil cause
// marks a plain stop.
func (r *Registry) Remove(l *Loop, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loops[l.name] != l {
		return
	}
	delete(r.loops, l.name)
	r.retired[l.name] = cause
	l.SetState(StateStopped)
	if cause != nil {
		l.SetErr(cause)
	}
}

// Retired reports whether name was stopped or failed, with the failure cause.
func (r *Registry) Retired(name string) (cause error, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cause, ok = r.retired[name]
	return cause, ok
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.loops))
	for name := range r.loops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loops)
}

func (r *Registry) Status() []Status {
	r.mu.Lock()
	loops := make([]*Loop, 0, len(r.loops))
	for _, l := range r.loops {
		loops = append(loops, l)
	}
	r.mu.Unlock()
	sort.Slice(loops, func(i, j int) bool { return loops[i].name < loops[j].name })
	out := make([]Status, len(loops))
	for i, l := range loops {
		out[i] = Status{
			Name:        l.name,
			Sync:        l.SyncTarget(),
			State:       l.State(),
			Cycles:      l.Cycles(),
			SyncWaits:   l.SyncWaits(),
			Definitions: l.Definitions(),
			StopPending: l.StopRequested(),
			Err:         l.Err(),
		}
	}
	return out
}

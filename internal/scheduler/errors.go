package scheduler

import (
	"errors"
	"fmt"

	"github.com/cbegin/liveloop-go/internal/notation"
	"github.com/cbegin/liveloop-go/internal/ring"
)

var (
	ErrUnknownSyncTarget = errors.New("unknown sync target")
	ErrStoppedSyncTarget = errors.New("sync target stopped")
	ErrSyncCycle         = errors.New("sync targets form a cycle")
)

// LoopError attributes a failure to the loop that produced it.
type LoopError struct {
	Loop  string
	Cycle int
	Err   error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("loop %q cycle %d: %v", e.Loop, e.Cycle, e.Err)
}

func (e *LoopError) Unwrap() error { return e.Err }

// Format keeps %+v stack traces of wrapped panics.
func (e *LoopError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "loop %q cycle %d: %+v", e.Loop, e.Cycle, e.Err)
		return
	}
	fmt.Fprint(s, e.Error())
}

// Recoverable reports whether err only aborts the current iteration.
func Recoverable(err error) bool {
	return errors.Is(err, notation.ErrMalformedToken) || errors.Is(err, ring.ErrEmptyRing)
}

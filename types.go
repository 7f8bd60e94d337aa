package liveloop

import (
	"github.com/cbegin/liveloop-go/internal/loop"
	"github.com/cbegin/liveloop-go/internal/notation"
	"github.com/cbegin/liveloop-go/internal/ring"
	"github.com/cbegin/liveloop-go/internal/scheduler"
)

type (
	Iteration    = loop.Iteration
	Body         = loop.Body
	DefineOption = loop.DefineOption
	PlayOption   = loop.PlayOption
	Status       = loop.Status
	Notice       = scheduler.Notice
	NoticeKind   = scheduler.NoticeKind
	Key          = notation.Key
)

const (
	NoticeLoopStarted      = scheduler.NoticeLoopStarted
	NoticeCycleStarted     = scheduler.NoticeCycleStarted
	NoticeIterationAborted = scheduler.NoticeIterationAborted
	NoticeLoopStopped      = scheduler.NoticeLoopStopped
	NoticeLoopFailed       = scheduler.NoticeLoopFailed
)

var (
	WithSync    = loop.WithSync
	WithoutSync = loop.WithoutSync
	Amp         = loop.Amp
	Length      = loop.Length
	Synth       = loop.Synth
)

var (
	ErrMalformedToken    = notation.ErrMalformedToken
	ErrEmptyRing         = ring.ErrEmptyRing
	ErrUnknownLoop       = loop.ErrUnknownLoop
	ErrNoSleep           = loop.ErrNoSleep
	ErrUnknownSyncTarget = scheduler.ErrUnknownSyncTarget
	ErrStoppedSyncTarget = scheduler.ErrStoppedSyncTarget
	ErrSyncCycle         = scheduler.ErrSyncCycle
)

// NewKey builds a key from a root note and a scale name.
func NewKey(root int, scale string) (Key, error) {
	sc, err := notation.ParseScale(scale)
	if err != nil {
		return Key{}, err
	}
	return Key{Root: root, Scale: sc}, nil
}

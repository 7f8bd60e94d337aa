package scheduler

import (
	"fmt"
	"time"
)

type NoticeKind int

const (
	NoticeLoopStarted NoticeKind = iota + 1
	NoticeCycleStarted
	NoticeIterationAborted
	NoticeLoopStopped
	NoticeLoopFailed
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeLoopStarted:
		return "loop-started"
	case NoticeCycleStarted:
		return "cycle-started"
	case NoticeIterationAborted:
		return "iteration-aborted"
	case NoticeLoopStopped:
		return "loop-stopped"
	case NoticeLoopFailed:
		return "loop-failed"
	default:
		return fmt.Sprintf("notice(%d)", int(k))
	}
}

// Notice reports a loop lifecycle change at a logical time.
type Notice struct {
	Kind    NoticeKind
	Loop    string
	Cycle   int
	Time    time.Duration
	Err     error
	Dropped int
}

func (n Notice) String() string {
	if n.Err != nil {
		return fmt.Sprintf("%v %s#%d @%v: %v", n.Kind, n.Loop, n.Cycle, n.Time, n.Err)
	}
	return fmt.Sprintf("%v %s#%d @%v", n.Kind, n.Loop, n.Cycle, n.Time)
}

package scheduler

import (
	"time"

	"github.com/cbegin/liveloop-go/internal/loop"
)

type wake struct {
	at   time.Duration
	name string
	seq  uint64
	loop *loop.Loop
}

// wakeQueue orders by wake time, then loop name, then insertion.
type wakeQueue []wake

func (q wakeQueue) Len() int { return len(q) }
func (q wakeQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	if q[i].name != q[j].name {
		return q[i].name < q[j].name
	}
	return q[i].seq < q[j].seq
}
func (q wakeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *wakeQueue) Push(x any)   { *q = append(*q, x.(wake)) }
func (q *wakeQueue) Pop() any {
	old := *q
	n := len(old)
	w := old[n-1]
	*q = old[:n-1]
	return w
}

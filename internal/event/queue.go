package event

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

// Queue holds events produced ahead of time and releases them to the
// wrapped sink once their time has come. Events with equal times keep their
// emission order.
type Queue struct {
	mu   sync.Mutex
	out  Sink
	seq  uint64
	heap eventHeap
}

func NewQueue(out Sink) *Queue {
	return &Queue{out: out}
}

func (q *Queue) Emit(ev Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, queued{ev: ev, seq: q.seq})
	q.seq++
	return nil
}

// Flush emits every event due at or before now, then flushes the sink.
func (q *Queue) Flush(now time.Duration) error {
	q.mu.Lock()
	var due []Event
	for q.heap.Len() > 0 && q.heap[0].ev.Time <= now {
		due = append(due, heap.Pop(&q.heap).(queued).ev)
	}
	q.mu.Unlock()
	var errs []error
	for _, ev := range due {
		if err := q.out.Emit(ev); err != nil {
			errs = append(errs, err)
		}
	}
	if f, ok := q.out.(Flusher); ok {
		if err := f.Flush(now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

type queued struct {
	ev  Event
	seq uint64
}

type eventHeap []queued

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].ev.Time != h[j].ev.Time {
		return h[i].ev.Time < h[j].ev.Time
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(queued)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

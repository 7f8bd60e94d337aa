package event

import (
	"errors"
	"testing"
	"time"
)

type flushCounter struct {
	Recorder
	flushes []time.Duration
}

func (f *flushCounter) Flush(now time.Duration) error {
	f.flushes = append(f.flushes, now)
	return nil
}

func TestQueueReleasesInTimeOrder(t *testing.T) {
	out := &flushCounter{}
	q := NewQueue(out)
	q.Emit(Event{Kind: KindNote, Note: 3, Time: 300 * time.Millisecond})
	q.Emit(Event{Kind: KindNote, Note: 1, Time: 100 * time.Millisecond})
	q.Emit(Event{Kind: KindSample, Sample: "a", Time: 100 * time.Millisecond})
	q.Emit(Event{Kind: KindNote, Note: 2, Time: 200 * time.Millisecond})

	if err := q.Flush(150 * time.Millisecond); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	got := out.Events()
	if len(got) != 2 || got[0].Note != 1 || got[1].Sample != "a" {
		t.Fatalf("unexpected first batch %v", got)
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 queued, got %d", q.Len())
	}
	q.Flush(time.Second)
	got = out.Events()
	if len(got) != 4 || got[2].Note != 2 || got[3].Note != 3 {
		t.Fatalf("unexpected order %v", got)
	}
	if len(out.flushes) != 2 || out.flushes[1] != time.Second {
		t.Fatalf("expected sink flushes to follow queue flushes, got %v", out.flushes)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	bad := errors.New("port closed")
	rec := &Recorder{}
	m := Multi{rec, SinkFunc(func(Event) error { return bad })}
	err := m.Emit(Event{Kind: KindNote, Loop: "b"})
	if !errors.Is(err, bad) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(rec.ForLoop("b")) != 1 {
		t.Fatalf("healthy sink must still receive the event")
	}
}

func TestEventString(t *testing.T) {
	ev := Event{Kind: KindSample, Loop: "d", Cycle: 2, Sample: "drum_bass_hard", Amp: 1}
	if got := ev.String(); got != "d#2 @0s sample drum_bass_hard amp=1.00" {
		t.Fatalf("unexpected string %q", got)
	}
}

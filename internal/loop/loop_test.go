package loop

import (
	"errors"
	"testing"
	"time"

	"github.com/cbegin/liveloop-go/internal/event"
	"github.com/cbegin/liveloop-go/internal/notation"
	"github.com/cbegin/liveloop-go/internal/ring"
	"github.com/cbegin/liveloop-go/internal/tick"
)

func sleepOne(it *Iteration) error { return it.Sleep(1) }

func TestDefineSwapsBodyAndKeepsSync(t *testing.T) {
	r := NewRegistry()
	l, created, err := r.Define("b", sleepOne, WithSync("a"))
	if err != nil || !created {
		t.Fatalf("define failed: created=%v err=%v", created, err)
	}
	old := l.Body()

	called := false
	l2, created, err := r.Define("b", func(it *Iteration) error {
		called = true
		return it.Sleep(2)
	})
	if err != nil || created {
		t.Fatalf("redefine failed: created=%v err=%v", created, err)
	}
	if l2 != l {
		t.Fatalf("redefinition must keep the loop instance")
	}
	if l.SyncTarget() != "a" {
		t.Fatalf("sync target lost on redefinition: %q", l.SyncTarget())
	}
	if l.Definitions() != 2 {
		t.Fatalf("expected 2 definitions, got %d", l.Definitions())
	}

	// A body captured before the swap keeps running the old code.
	it := NewIteration(Config{Loop: "b"})
	if err := old(it); err != nil || it.Elapsed() != time.Second {
		t.Fatalf("old body should still sleep one beat, got %v %v", it.Elapsed(), err)
	}
	it = NewIteration(Config{Loop: "b"})
	if err := l.Body()(it); err != nil || !called || it.Elapsed() != 2*time.Second {
		t.Fatalf("new body not picked up: %v %v", it.Elapsed(), err)
	}
}

func TestDefineSyncOptions(t *testing.T) {
	r := NewRegistry()
	l, _, _ := r.Define("b", sleepOne, WithSync("a"))
	r.Define("b", sleepOne, WithSync("c"))
	if l.SyncTarget() != "c" {
		t.Fatalf("expected target c, got %q", l.SyncTarget())
	}
	r.Define("b", sleepOne, WithoutSync())
	if l.SyncTarget() != "" {
		t.Fatalf("expected sync cleared, got %q", l.SyncTarget())
	}
	if _, _, err := r.Define("b", sleepOne, WithSync("b")); err == nil {
		t.Fatalf("expected self sync to be rejected")
	}
	if _, _, err := r.Define("", sleepOne); err == nil {
		t.Fatalf("expected empty name to be rejected")
	}
	if _, _, err := r.Define("x", nil); err == nil {
		t.Fatalf("expected nil body to be rejected")
	}
}

func TestStopIsCooperativeAndRedefineCancels(t *testing.T) {
	r := NewRegistry()
	l, _, _ := r.Define("a", sleepOne)
	if err := r.Stop("a"); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !l.StopRequested() {
		t.Fatalf("stop request not recorded")
	}
	if _, ok := r.Get("a"); !ok {
		t.Fatalf("stop must not remove the loop before its boundary")
	}
	r.Define("a", sleepOne)
	if l.StopRequested() {
		t.Fatalf("redefinition should cancel a pending stop")
	}
	if err := r.Stop("zzz"); !errors.Is(err, ErrUnknownLoop) {
		t.Fatalf("expected ErrUnknownLoop, got %v", err)
	}
}

func TestRemoveRemembersRetiredLoops(t *testing.T) {
	r := NewRegistry()
	a, _, _ := r.Define("a", sleepOne)
	b, _, _ := r.Define("b", sleepOne)
	boom := errors.New("boom")
	r.Remove(a, nil)
	r.Remove(b, boom)

	if names := r.Names(); len(names) != 0 {
		t.Fatalf("expected empty registry, got %v", names)
	}
	if cause, ok := r.Retired("a"); !ok || cause != nil {
		t.Fatalf("expected a retired cleanly, got %v %v", cause, ok)
	}
	if cause, ok := r.Retired("b"); !ok || !errors.Is(cause, boom) {
		t.Fatalf("expected b retired with boom, got %v %v", cause, ok)
	}
	if b.Err() == nil || b.State() != StateStopped {
		t.Fatalf("failed loop should keep its error and be stopped")
	}

	fresh, created, _ := r.Define("a", sleepOne)
	if !created || fresh == a {
		t.Fatalf("defining a retired name should create a new loop")
	}
	if _, ok := r.Retired("a"); ok {
		t.Fatalf("redefined loop must no longer be retired")
	}
	// Removing a stale instance is a no-op.
	r.Remove(a, boom)
	if !r.Current(fresh) {
		t.Fatalf("stale remove evicted the new loop")
	}
}

func TestStatusSortedByName(t *testing.T) {
	r := NewRegistry()
	r.Define("e", sleepOne, WithSync("b"))
	r.Define("b", sleepOne)
	r.Define("d", sleepOne, WithSync("b"))
	st := r.Status()
	if len(st) != 3 || st[0].Name != "b" || st[1].Name != "d" || st[2].Name != "e" {
		t.Fatalf("unexpected status %+v", st)
	}
	if st[1].Sync != "b" || st[0].State != StateStopped {
		t.Fatalf("unexpected status fields %+v", st[1])
	}
}

func TestIterationPlayAdvancesCursor(t *testing.T) {
	it := NewIteration(Config{Loop: "b", Cycle: 3, Start: 10 * time.Second, Synth: "saw"})
	if err := it.Play("0.25 0 1 2 4", Amp(0.25)); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	evs := it.Events()
	want := []int{60, 62, 64, 67}
	if len(evs) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(evs))
	}
	for i, ev := range evs {
		if ev.Note != want[i] || ev.Time != 10*time.Second+time.Duration(i)*250*time.Millisecond {
			t.Fatalf("event %d: %v", i, ev)
		}
		if ev.Duration != 250*time.Millisecond || ev.Amp != 0.25 || ev.Instrument != "saw" || ev.Cycle != 3 {
			t.Fatalf("event %d fields: %v", i, ev)
		}
	}
	if it.Elapsed() != time.Second {
		t.Fatalf("expected one second elapsed, got %v", it.Elapsed())
	}
}

func TestIterationPlayErrorLeavesBufferUntouched(t *testing.T) {
	it := NewIteration(Config{Loop: "b"})
	it.Sample("drum_bass_hard")
	err := it.Play("0.25 0 x")
	if !errors.Is(err, notation.ErrMalformedToken) {
		t.Fatalf("expected malformed token, got %v", err)
	}
	if len(it.Events()) != 1 || it.Elapsed() != 0 {
		t.Fatalf("partial play leaked: %d events, %v elapsed", len(it.Events()), it.Elapsed())
	}
}

func TestIterationSpan(t *testing.T) {
	it := NewIteration(Config{Loop: "n", Start: 4 * time.Second})
	it.Sample("bd_haus")
	if it.Span() != 0 {
		t.Fatalf("samples have no length, got %v", it.Span())
	}
	it.PlayNote(60, Length(0.5))
	it.PlayNote(62, Length(1.5))
	if it.Span() != 1500*time.Millisecond {
		t.Fatalf("expected the longest note, got %v", it.Span())
	}
	it.Sleep(0.25)
	if it.Span() != 250*time.Millisecond {
		t.Fatalf("once the cursor moves it sets the length, got %v", it.Span())
	}
}

func TestSyncWaitsCountTransitions(t *testing.T) {
	l := newLoop("b", sleepOne)
	l.SetState(StateWaitingSync)
	l.SetState(StateWaitingSync)
	l.SetState(StateRunning)
	l.SetState(StateWaitingSync)
	if l.SyncWaits() != 2 {
		t.Fatalf("expected two waits, got %d", l.SyncWaits())
	}
}

func TestIterationTempoAndSleep(t *testing.T) {
	it := NewIteration(Config{Loop: "d"})
	if err := it.UseBPM(120); err != nil {
		t.Fatalf("bpm: %v", err)
	}
	it.Sample("bd_haus")
	it.Sleep(0.5)
	it.Sample("sn_dolf", Amp(0.5))
	it.Sleep(1.5)
	evs := it.Events()
	if evs[0].Kind != event.KindSample || evs[1].Time != 250*time.Millisecond || evs[1].Amp != 0.5 {
		t.Fatalf("unexpected events %v", evs)
	}
	if it.Elapsed() != time.Second {
		t.Fatalf("expected 1s at 120 bpm, got %v", it.Elapsed())
	}
	if err := it.Sleep(-1); err == nil {
		t.Fatalf("negative sleep should fail")
	}
	if err := it.UseBPM(0); err == nil {
		t.Fatalf("zero bpm should fail")
	}
}

func TestIterationRingsShareTicks(t *testing.T) {
	ticks := tick.New()
	chords := ring.New(ring.Chord(60, 64, 67), ring.Scalar(62))
	var got [][]int
	for i := 0; i < 3; i++ {
		it := NewIteration(Config{Loop: "c", Ticks: ticks})
		if err := it.PlayRing(chords, "c", Length(0.5)); err != nil {
			t.Fatalf("play ring: %v", err)
		}
		var notes []int
		for _, ev := range it.Events() {
			notes = append(notes, ev.Note)
			if ev.Duration != 500*time.Millisecond {
				t.Fatalf("expected half beat length, got %v", ev.Duration)
			}
		}
		got = append(got, notes)
	}
	if len(got[0]) != 3 || len(got[1]) != 1 || len(got[2]) != 3 {
		t.Fatalf("unexpected selections %v", got)
	}
	if ticks.Look("c") != 3 {
		t.Fatalf("expected tick position 3, got %d", ticks.Look("c"))
	}

	it := NewIteration(Config{Loop: "c", Ticks: ticks})
	if err := it.PlayRing(nil, "empty"); !errors.Is(err, ring.ErrEmptyRing) {
		t.Fatalf("expected ErrEmptyRing, got %v", err)
	}
}

package barrier

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOnlyBoundariesAfterRegisterArePending(t *testing.T) {
	b := New()
	b.Arrive("a", 0)
	b.Register("b", "a")
	if b.Pending("b") {
		t.Fatalf("boundary before registration must not be pending")
	}
	b.Arrive("a", time.Second)
	if !b.Pending("b") {
		t.Fatalf("expected pending boundary")
	}
	if !b.Consume("b") {
		t.Fatalf("expected consume to succeed")
	}
	if b.Consume("b") {
		t.Fatalf("boundary must be consumed once")
	}
}

func TestMissedBoundariesCollapse(t *testing.T) {
	b := New()
	b.Register("b", "a")
	for i := 0; i < 4; i++ {
		b.Arrive("a", time.Duration(i)*time.Second)
	}
	if !b.Consume("b") {
		t.Fatalf("expected a pending boundary")
	}
	if b.Pending("b") {
		t.Fatalf("missed boundaries must not queue up")
	}
	gen, at := b.Generation("a")
	if gen != 4 || at != 3*time.Second {
		t.Fatalf("generation = %d at %v, want 4 at 3s", gen, at)
	}
}

func TestWaitIsReleasedByArrive(t *testing.T) {
	b := New()
	done := make(chan uint64, 1)
	go func() {
		gen, err := b.Wait(context.Background(), "a", 0)
		if err != nil {
			t.Errorf("wait failed: %v", err)
		}
		done <- gen
	}()
	time.Sleep(10 * time.Millisecond)
	b.Arrive("a", 0)
	select {
	case gen := <-done:
		if gen != 1 {
			t.Fatalf("expected generation 1, got %d", gen)
		}
	case <-time.After(time.Second):
		t.Fatalf("wait was not released")
	}
}

func TestWaitHonoursContextAndForget(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := b.Wait(ctx, "a", 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	errCh := make(chan error, 1)
	go func() {
		_, err := b.Wait(context.Background(), "x", 0)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	b.Forget("x")
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrGone) {
			t.Fatalf("expected ErrGone, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("forget did not release waiter")
	}
}

func TestTargetAndUnregister(t *testing.T) {
	b := New()
	b.Register("d", "b")
	if tgt, ok := b.Target("d"); !ok || tgt != "b" {
		t.Fatalf("target = %q,%v", tgt, ok)
	}
	b.Unregister("d")
	if _, ok := b.Target("d"); ok {
		t.Fatalf("expected no target after unregister")
	}
	if b.Pending("d") || b.Consume("d") {
		t.Fatalf("unregistered waiter must never be pending")
	}
}

func TestForgetKeepsGeneration(t *testing.T) {
	b := New()
	b.Arrive("a", 0)
	b.Arrive("a", time.Second)
	b.Register("b", "a")
	b.Forget("a")
	if gen, _ := b.Generation("a"); gen != 2 {
		t.Fatalf("expected generation 2 after forget, got %d", gen)
	}
	if b.Pending("b") {
		t.Fatalf("forget must not create a pending boundary")
	}
	b.Arrive("a", 2*time.Second)
	if !b.Consume("b") {
		t.Fatalf("boundary of the new incarnation should be pending")
	}
}

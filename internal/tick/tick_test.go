package tick

import (
	"sort"
	"sync"
	"testing"
)

func TestTickSequential(t *testing.T) {
	c := New()
	for i := 0; i < 10; i++ {
		if got := c.Tick("k"); got != i {
			t.Fatalf("tick %d returned %d", i, got)
		}
	}
	if got := c.Look("k"); got != 10 {
		t.Fatalf("look = %d, want 10", got)
	}
}

func TestTickKeysAreIndependent(t *testing.T) {
	c := New()
	c.Tick("a")
	c.Tick("a")
	if got := c.Tick("b"); got != 0 {
		t.Fatalf("fresh key should start at 0, got %d", got)
	}
	if got := c.Tick("a"); got != 2 {
		t.Fatalf("key a = %d, want 2", got)
	}
	c.Reset("a")
	if got := c.Tick("a"); got != 0 {
		t.Fatalf("reset key should restart at 0, got %d", got)
	}
	keys := c.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestTickConcurrentCallersNeverDuplicate(t *testing.T) {
	c := New()
	const workers, per = 8, 500
	results := make([][]int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				results[w] = append(results[w], c.Tick("shared"))
			}
		}(w)
	}
	wg.Wait()
	var all []int
	for _, r := range results {
		for i := 1; i < len(r); i++ {
			if r[i] <= r[i-1] {
				t.Fatalf("positions not monotonic within a caller: %v", r[i-1:i+1])
			}
		}
		all = append(all, r...)
	}
	sort.Ints(all)
	for i, v := range all {
		if v != i {
			t.Fatalf("expected positions 0..%d exactly once, mismatch at %d: %d", workers*per-1, i, v)
		}
	}
}

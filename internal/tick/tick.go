// Package tick keeps named cyclic counters used to walk through rings.
package tick

import (
	"sort"
	"sync"
)

// Cycler owns a namespace of counters. Counters are created on first use and
// only move forward unless Reset is called explicitly.
type Cycler struct {
	mu       sync.Mutex
	counters map[string]int
}

func New() *Cycler {
	return &Cycler{counters: make(map[string]int)}
}

// Tick returns the current position for key and advances it by one.
func (c *Cycler) Tick(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos := c.counters[key]
	c.counters[key] = pos + 1
	return pos
}

// Look returns the position the next Tick would return, without advancing.
func (c *Cycler) Look(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[key]
}

func (c *Cycler) Reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counters, key)
}

func (c *Cycler) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// Keys returns the known keys in sorted order.
func (c *Cycler) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.counters))
	for k := range c.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

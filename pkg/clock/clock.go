// Package clock provides the time source used for token refill math.
//
// Buckets are shared by every service instance through Redis, so timestamps
// must be comparable across processes: System reports wall-clock microseconds
// since the Unix epoch rather than a per-process monotonic reading. Refill math
// clamps negative deltas, which absorbs small backward steps of the wall clock.
//
// Tests use Manual to freeze and advance time deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time in microseconds.
type Clock interface {
	NowMicros() int64
}

// System implements Clock with time.Now.
type System struct{}

// NowMicros returns the wall-clock time in microseconds since the Unix epoch.
func (System) NowMicros() int64 {
	return time.Now().UnixMicro()
}

// Manual is a Clock that only moves when told to. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now int64
}

// NewManual creates a Manual clock frozen at startMicros.
func NewManual(startMicros int64) *Manual {
	return &Manual{now: startMicros}
}

func (c *Manual) NowMicros() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock by d. Negative durations move it backward, which
// tests use to simulate clock regression.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d.Microseconds()
	c.mu.Unlock()
}

// Set jumps to an absolute time.
func (c *Manual) Set(micros int64) {
	c.mu.Lock()
	c.now = micros
	c.mu.Unlock()
}

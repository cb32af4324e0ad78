// Package pulse
package pulse

import (
	"runtime"
	"sync/atomic"
)

// Counter accumulates edge events between drains.
//
// OnEdge is the only method safe to call from an interrupt handler. Drain is a
// single atomic swap, so an edge landing concurrently with a drain is counted
// either in the value returned or in the next one, never both and never
// neither. The counter is 64 bits wide and wraps on overflow, which at any
// physical pulse rate is unreachable between two drains.
//
// Drain must only be called from one goroutine at a time.
type Counter struct {
	pending atomic.Uint64

	// drained is only written by the draining goroutine. seq is odd while a
	// drain is moving pulses from pending into drained.
	drained atomic.Uint64
	seq     atomic.Uint64
}

func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) OnEdge() {
	c.pending.Add(1)
}

// Drain returns the pulses seen since the previous drain and resets the
// pending count to zero.
func (c *Counter) Drain() uint64 {
	c.seq.Add(1)
	n := c.pending.Swap(0)
	c.drained.Add(n)
	c.seq.Add(1)
	return n
}

// Pending reports the undrained count without resetting it.
func (c *Counter) Pending() uint64 {
	return c.pending.Load()
}

// Total is the lifetime pulse count, drained or not. It never decreases:
// a read that overlaps a drain is retried.
func (c *Counter) Total() uint64 {
	for {
		s := c.seq.Load()
		if s&1 == 1 {
			runtime.Gosched()
			continue
		}

		total := c.drained.Load() + c.pending.Load()
		if c.seq.Load() == s {
			return total
		}
	}
}

package testutil

import "sync"

// ManualClock is a settable wall clock for tests.
//
// It implements engine.Clock. Time only moves when the test calls Set or
// Advance, so Waiting to Ready transitions happen exactly where the test
// puts them.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

// NewManualClock creates a clock reading start.
func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current reading in seconds.
func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed.
func (c *ManualClock) Set(t uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d seconds and returns the new reading.
func (c *ManualClock) Advance(d uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

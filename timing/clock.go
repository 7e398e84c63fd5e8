package timing

import (
	"sync"
	"time"
)

// ManualClock is a TimeTeller whose time only moves when told to. Tests use
// it to drive expiry without an engine.
type ManualClock struct {
	lock sync.RWMutex
	now  VTime
}

// NewManualClock creates a ManualClock at time 0.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Now returns the current time.
func (c *ManualClock) Now() VTime {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.now
}

// Set moves the clock to t. Moving backwards is not allowed.
func (c *ManualClock) Set(t VTime) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if t < c.now {
		panic("manual clock cannot move backwards")
	}

	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) VTime {
	c.lock.Lock()
	defer c.lock.Unlock()

	if d < 0 {
		panic("manual clock cannot move backwards")
	}

	c.now = c.now.Add(d)

	return c.now
}

// WallClock reports the time elapsed since it was created.
type WallClock struct {
	epoch time.Time
}

// NewWallClock creates a WallClock whose epoch is now.
func NewWallClock() *WallClock {
	return &WallClock{epoch: time.Now()}
}

// Now returns the time elapsed since the epoch.
func (c *WallClock) Now() VTime {
	return VTime(time.Since(c.epoch))
}

// Epoch returns the wall time that maps to VTime 0.
func (c *WallClock) Epoch() time.Time {
	return c.epoch
}

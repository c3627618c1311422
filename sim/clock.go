package sim

import "sync"

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() Time
}

// A Clock keeps the simulated time. Only the owner of the simulation state is
// allowed to advance the clock, but any goroutine can read it.
type Clock struct {
	lock sync.RWMutex
	now  Time
}

// NewClock creates a clock that starts at time zero.
func NewClock() *Clock {
	return &Clock{}
}

// CurrentTime returns the current simulated time.
func (c *Clock) CurrentTime() Time {
	c.lock.RLock()
	t := c.now
	c.lock.RUnlock()

	return t
}

// Advance moves the clock forward by ns nanoseconds. Nanoseconds that add up
// to a full second are carried into the seconds field.
func (c *Clock) Advance(ns uint64) Time {
	c.lock.Lock()
	c.now = c.now.Add(ns)
	t := c.now
	c.lock.Unlock()

	return t
}

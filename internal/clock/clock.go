// Package clock lets ticket expiry and session validation run against a
// controllable time source in tests.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts time operations for testability
type Clock interface {
	// Now returns the current time
	Now() time.Time
}

// SystemClock uses the real system clock
type SystemClock struct{}

// NewSystemClock creates a clock that uses the real system time
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the current system time
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// FixtureClock is a controllable clock for testing.
// It is safe for concurrent use so that stores exercised from several
// goroutines can share one instance.
type FixtureClock struct {
	mu          sync.RWMutex
	currentTime time.Time
}

// NewFixtureClock creates a fixture clock starting at the given time.
// A zero start time means time.Now().
func NewFixtureClock(startTime time.Time) *FixtureClock {
	if startTime.IsZero() {
		startTime = time.Now()
	}
	return &FixtureClock{currentTime: startTime}
}

// Now returns the current fixture time
func (c *FixtureClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentTime
}

// Set moves the clock to t
func (c *FixtureClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = t
}

// Advance moves the clock forward by d
func (c *FixtureClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = c.currentTime.Add(d)
}

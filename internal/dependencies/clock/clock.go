package clock

import "time"

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time, carrying a monotonic reading
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Elapsed returns the time passed since start according to clk
func Elapsed(clk Clock, start time.Time) time.Duration {
	d := clk.Now().Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

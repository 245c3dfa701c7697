package spectator

import "time"

// Clock is the time source used by every meter and by the step engine.
// Production code uses SystemClock; tests use ManualClock so that step
// rollovers can be driven deterministically instead of racing real time.
type Clock interface {
	// Now returns the current wall-clock time in milliseconds since epoch.
	Now() int64
	// Monotonic returns a monotonic nanosecond timestamp suitable for
	// measuring elapsed durations (Timer, LongTaskTimer).
	Monotonic() int64
}

// SystemClock is the default Clock, backed by time.Now().
type SystemClock struct{}

func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

func (SystemClock) Monotonic() int64 {
	return time.Now().UnixNano()
}

// ManualClock is a Clock whose value only advances when told to. Used by
// tests that need to pin measurements to exact step boundaries.
type ManualClock struct {
	wallMillis int64
	monoNanos  int64
}

// NewManualClock returns a ManualClock initialized to time zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) Now() int64 {
	return c.wallMillis
}

func (c *ManualClock) Monotonic() int64 {
	return c.monoNanos
}

// SetWall sets the wall-clock time, in milliseconds since epoch.
func (c *ManualClock) SetWall(millis int64) {
	c.wallMillis = millis
}

// SetMonotonic sets the monotonic clock, in nanoseconds.
func (c *ManualClock) SetMonotonic(nanos int64) {
	c.monoNanos = nanos
}

// Advance moves both the wall and monotonic clocks forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.wallMillis += d.Milliseconds()
	c.monoNanos += d.Nanoseconds()
}

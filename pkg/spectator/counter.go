package spectator

// Counter tracks a monotonically increasing rate: how many events
// occurred per second during the last completed step. Negative or zero
// increments are ignored, matching a counter's monotonic contract.
type Counter struct {
	meterBase
	value *StepLong
}

func newCounter(id *Id, stepMillis int64, clock Clock) *Counter {
	return &Counter{
		meterBase: newMeterBase(id, clock),
		value:     NewStepLong(stepMillis),
	}
}

// Increment adds 1 to the counter.
func (c *Counter) Increment() {
	c.Add(1)
}

// Add increments the counter by delta. Values <= 0 are ignored.
func (c *Counter) Add(delta int64) {
	if delta <= 0 {
		return
	}
	now := c.clock.Now()
	c.touch(now)
	c.value.Add(now, delta)
}

// Count returns the raw, in-progress count for the current step,
// mainly useful in tests.
func (c *Counter) Count() int64 {
	return c.value.Current(c.clock.Now())
}

func (c *Counter) Measure(now int64) []Measurement {
	rate := c.value.PollAsRate(now, 1)
	return []Measurement{{Id: c.id.withStatistic(StatCount), Timestamp: now, Value: rate}}
}

package spectator

import "sync/atomic"

// StepLong is a step-rotated int64 accumulator used by sum-like
// statistics (counter increments, distribution/timer counts and totals).
// Writers call Add; the publisher calls PollAsRate once per completed
// step.
//
// Rollover policy (§4.2): on any operation whose timestamp falls in a
// bucket later than lastInit's bucket, the bucket is rolled forward. If
// more than one step elapsed since the last roll, the stale value in
// "previous" is discarded (reset to zero) along with "current" — a
// multi-step gap must read as empty, never as a stale reading (tested
// by property 3 in spec.md §8).
type StepLong struct {
	stepMillis int64
	current    atomic.Int64
	previous   atomic.Int64
	lastInit   atomic.Int64
}

// NewStepLong returns a StepLong with the given step size in milliseconds.
func NewStepLong(stepMillis int64) *StepLong {
	return &StepLong{stepMillis: stepMillis}
}

func boundary(now, stepMillis int64) int64 {
	if stepMillis <= 0 {
		return now
	}
	return now - (now % stepMillis)
}

// roll advances the bucket if now belongs to a later bucket than the
// one currently tracked. Only the goroutine that wins the CAS on
// lastInit performs the current/previous transition, so concurrent
// callers never double-roll.
func (s *StepLong) roll(now int64) {
	b := boundary(now, s.stepMillis)
	last := s.lastInit.Load()
	if b <= last {
		return
	}
	if !s.lastInit.CompareAndSwap(last, b) {
		return
	}

	if b-last > s.stepMillis {
		s.previous.Store(0)
		s.current.Store(0)
	} else {
		s.previous.Store(s.current.Swap(0))
	}
}

// Add rolls the bucket forward if needed, then adds delta to the
// current bucket, returning the new current value.
func (s *StepLong) Add(now, delta int64) int64 {
	s.roll(now)
	return s.current.Add(delta)
}

// Current returns the raw in-progress accumulator after rolling forward
// if needed. Exposed for tests and for LongTaskTimer-style gauges that
// sample the live value rather than a completed step.
func (s *StepLong) Current(now int64) int64 {
	s.roll(now)
	return s.current.Load()
}

// PollAsRate rolls forward if needed and returns the last completed
// bucket's value expressed as a per-second rate, after dividing the raw
// sum by unitScale (1 for counts/amounts, 1e9 for nanosecond timer
// sums so the published statistic is in seconds).
func (s *StepLong) PollAsRate(now int64, unitScale float64) float64 {
	s.roll(now)
	prev := s.previous.Load()
	stepSeconds := float64(s.stepMillis) / 1000.0
	if stepSeconds <= 0 {
		return 0
	}
	return (float64(prev) / unitScale) / stepSeconds
}

// StepDouble is a step-rotated float64 accumulator. UpdateMax and Poll
// serve gauge-like statistics that report the completed bucket's value
// rather than a rate (MaxGauge's per-step max, DistributionSummary's
// per-step max); UpdateAdd and PollAsRate serve float sums. identity is
// the value a freshly rolled bucket starts at (NaN for a max, so the
// first sample in a bucket always wins; 0 for a sum).
type StepDouble struct {
	stepMillis int64
	identity   float64
	current    AtomicDouble
	previous   AtomicDouble
	lastInit   atomic.Int64
}

// NewStepDouble returns a StepDouble with the given step size in
// milliseconds and bucket-reset identity value.
func NewStepDouble(stepMillis int64, identity float64) *StepDouble {
	sd := &StepDouble{stepMillis: stepMillis, identity: identity}
	sd.current.Set(identity)
	sd.previous.Set(identity)
	return sd
}

func (s *StepDouble) roll(now int64) {
	b := boundary(now, s.stepMillis)
	last := s.lastInit.Load()
	if b <= last {
		return
	}
	if !s.lastInit.CompareAndSwap(last, b) {
		return
	}

	if b-last > s.stepMillis {
		s.previous.Set(s.identity)
		s.current.Set(s.identity)
	} else {
		s.previous.Set(s.current.GetAndSet(s.identity))
	}
}

// UpdateMax rolls the bucket forward if needed and folds v into the
// current bucket via AtomicDouble.Max (NaN and negative values should be
// filtered by the caller before this is reached — see MaxGauge.Record).
func (s *StepDouble) UpdateMax(now int64, v float64) {
	s.roll(now)
	s.current.Max(v)
}

// UpdateAdd rolls the bucket forward if needed and adds delta into the
// current bucket. Used for float sums (distribution summary amounts)
// where identity is 0 rather than NaN.
func (s *StepDouble) UpdateAdd(now int64, delta float64) {
	s.roll(now)
	s.current.AddAndGet(delta)
}

// Poll rolls the bucket forward if needed and returns the last
// completed bucket's combined value (not a rate).
func (s *StepDouble) Poll(now int64) float64 {
	s.roll(now)
	return s.previous.Get()
}

// PollAsRate is Poll expressed as a per-second rate, for sum
// accumulators (totalAmount, totalOfSquares) that publish like counters
// rather than like a per-step maximum.
func (s *StepDouble) PollAsRate(now int64) float64 {
	s.roll(now)
	stepSeconds := float64(s.stepMillis) / 1000.0
	if stepSeconds <= 0 {
		return 0
	}
	return s.previous.Get() / stepSeconds
}

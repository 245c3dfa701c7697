package spectator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPolledMeterExpiration covers property 6: once a polled gauge's
// source becomes unreachable, the entry is removed within two polling
// intervals and the underlying gauge reads back NaN.
func TestPolledMeterExpiration(t *testing.T) {
	clock := NewManualClock()
	r := NewRegistry(1000, clock, nil)
	sched := NewPolledMeterScheduler(r, 0, clock)

	alive := true
	id := NewIdEmpty("pool.connections")
	sched.PollGauge(id, PredicateLiveness(func() bool { return alive }), func() float64 { return 7 })

	sched.tick()
	assert.Equal(t, 7.0, r.Gauge(id).Get(), "gauge should reflect the live source's value")

	alive = false
	sched.tick()
	sched.tick()

	assert.True(t, math.IsNaN(r.Gauge(id).Get()), "gauge should read NaN once its source is gone")
}

// TestPolledMonotonicDelta covers property 7: readings 10, 15, 12, 20
// from a polled counter source add deltas of 5, 0, 8 to the underlying
// counter (a decrease resets the baseline without emitting a delta).
func TestPolledMonotonicDelta(t *testing.T) {
	clock := NewManualClock()
	r := NewRegistry(1000, clock, nil)
	sched := NewPolledMeterScheduler(r, 0, clock)

	readings := []int64{10, 15, 12, 20}
	i := 0
	id := NewIdEmpty("source.events")
	sched.PollCounter(id, PredicateLiveness(func() bool { return true }), func() int64 {
		v := readings[i]
		i++
		return v
	})

	var deltas []int64
	prev := int64(0)
	for range readings {
		sched.tick()
		cur := r.Counter(id).Count()
		deltas = append(deltas, cur-prev)
		prev = cur
	}

	require.Len(t, deltas, 4)
	assert.Equal(t, []int64{0, 5, 0, 8}, deltas, "first tick establishes the baseline; later ticks report deltas 5, 0, 8")
}

func TestPolledGaugeSumsMultipleSources(t *testing.T) {
	clock := NewManualClock()
	r := NewRegistry(1000, clock, nil)
	sched := NewPolledMeterScheduler(r, 0, clock)

	id := NewIdEmpty("workers.queued")
	sched.PollGauge(id, PredicateLiveness(func() bool { return true }), func() float64 { return 3 })
	sched.PollGauge(id, PredicateLiveness(func() bool { return true }), func() float64 { return 4 })

	sched.tick()
	assert.Equal(t, 7.0, r.Gauge(id).Get(), "multiple sources under the same Id should sum")
}

func TestWeakLivenessAliveWhileReferenced(t *testing.T) {
	obj := new(int)
	l := WeakLiveness(obj)
	assert.True(t, l.alive())
}

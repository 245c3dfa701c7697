package spectator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCounterRateSemantics covers property 1: N increments totaling 10
// within a completed 5s step publish a count of 2.0 (10/5).
func TestCounterRateSemantics(t *testing.T) {
	clock := NewManualClock()
	c := newCounter(NewIdEmpty("requests"), 5000, clock)

	for i := 0; i < 10; i++ {
		c.Increment()
	}

	clock.SetWall(5000)
	ms := c.Measure(clock.Now())
	require.Len(t, ms, 1)
	assert.InDelta(t, 2.0, ms[0].Value, 1e-9, "count statistic should be N/S = 10/5")
}

func TestCounterIgnoresNonPositiveDeltas(t *testing.T) {
	clock := NewManualClock()
	c := newCounter(NewIdEmpty("x"), 1000, clock)

	c.Add(0)
	c.Add(-5)
	assert.Equal(t, int64(0), c.Count(), "non-positive deltas must be ignored")
}

// TestStepRollover covers property 2: writing 1 at t=5s with a 10s step,
// then polling at t=10s returns the completed step's value (1), and at
// t=20s returns 0 once the bucket has gone empty again.
func TestStepRollover(t *testing.T) {
	clock := NewManualClock()
	s := NewStepLong(10_000)

	clock.SetWall(5_000)
	s.Add(clock.Now(), 1)

	clock.SetWall(10_000)
	assert.Equal(t, 1.0, s.PollAsRate(clock.Now(), 1)*10, "completed step should read back the single write")

	clock.SetWall(20_000)
	assert.Equal(t, 0.0, s.PollAsRate(clock.Now(), 1), "empty step should report zero")
}

// TestStepGapSemantics covers property 3: a write at t=5s followed by a
// read at t=20s (a two-step gap under a 10s step) must not surface the
// stale value.
func TestStepGapSemantics(t *testing.T) {
	clock := NewManualClock()
	s := NewStepLong(10_000)

	clock.SetWall(5_000)
	s.Add(clock.Now(), 1)

	clock.SetWall(20_000)
	assert.Equal(t, 0.0, s.PollAsRate(clock.Now(), 1), "a multi-step gap must read as empty, not stale")
}

// TestMaxGaugeIgnoresNegativeAndNaN covers property 4: writing 42, 44, 43 within one step
// publishes a max of 44; negative values and NaN are ignored.
func TestMaxGaugeIgnoresNegativeAndNaN(t *testing.T) {
	clock := NewManualClock()
	g := newMaxGauge(NewIdEmpty("pool.size"), 10_000, clock)

	g.Update(42)
	g.Update(44)
	g.Update(43)
	g.Update(-1)
	g.Update(nan)

	clock.SetWall(10_000)
	ms := g.Measure(clock.Now())
	require.Len(t, ms, 1)
	assert.Equal(t, 44.0, ms[0].Value, "max gauge should report the largest non-negative, non-NaN sample")
}

// TestRegistryTypeSafety covers property 5: requesting a different meter
// kind for an already-bound Id returns a no-op meter of the requested
// kind, leaves the original meter in place, and reports the mismatch.
func TestRegistryTypeSafety(t *testing.T) {
	clock := NewManualClock()
	var reported *Id
	var reportedKind string
	r := NewRegistry(1000, clock, func(id *Id, kind string) {
		reported = id
		reportedKind = kind
	})

	id := NewIdEmpty("x")
	counter := r.Counter(id)
	counter.Increment()

	timer := r.Timer(id)
	require.NotNil(t, timer)
	timer.Record(0)

	assert.Same(t, id, reported, "mismatch handler should receive the conflicting Id")
	assert.Equal(t, "timer", reportedKind)

	again := r.Counter(id)
	assert.Same(t, counter, again, "the original counter must remain bound to the Id")
	assert.Equal(t, int64(1), again.Count())
}

func TestIdFromTagsRoundTripWithMultipleTags(t *testing.T) {
	original := NewId("server.requestCount", map[string]string{"method": "GET", "status": "200"})

	tags := make(map[string]string, len(original.Tags())+1)
	for _, tg := range original.Tags() {
		tags[tg.Key] = tg.Value
	}
	tags["name"] = original.Name()

	reparsed := IdFromTags(tags)
	assert.True(t, original.Equal(reparsed), "an Id's serialized tag form, re-parsed, should equal the original")
}

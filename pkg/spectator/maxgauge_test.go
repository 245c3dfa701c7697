package spectator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMaxGauge covers property 4: writing 42, 44, 43 within a single
// step yields a published max of 44, and negative values and NaN are
// ignored rather than resetting the running max.
func TestMaxGauge(t *testing.T) {
	clock := NewManualClock()
	g := newMaxGauge(NewIdEmpty("queueSize"), 10_000, clock)

	g.Update(42)
	g.Update(44)
	g.Update(43)
	g.Update(-1)
	g.Update(math.NaN())

	clock.SetWall(10_000)
	measurements := g.Measure(clock.Now())
	assert.Len(t, measurements, 1)
	assert.Equal(t, StatMax, mustTag(measurements[0].Id, "statistic"))
	assert.Equal(t, 44.0, measurements[0].Value)
}

func TestMaxGaugeEmptyStepReportsNaN(t *testing.T) {
	clock := NewManualClock()
	g := newMaxGauge(NewIdEmpty("queueSize"), 10_000, clock)

	clock.SetWall(20_000)
	measurements := g.Measure(clock.Now())
	assert.True(t, math.IsNaN(measurements[0].Value))
}

func mustTag(id *Id, key string) string {
	v, _ := id.TagValue(key)
	return v
}

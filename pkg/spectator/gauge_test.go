package spectator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGaugeLastWriteWins(t *testing.T) {
	clock := NewManualClock()
	g := newGauge(NewIdEmpty("queueDepth"), clock)

	assert.True(t, math.IsNaN(g.Get()))

	g.Set(3)
	g.Set(7)
	assert.Equal(t, 7.0, g.Get())

	ms := g.Measure(clock.Now())
	assert.Len(t, ms, 1)
	assert.Equal(t, StatGauge, mustTag(ms[0].Id, "statistic"))
	assert.Equal(t, 7.0, ms[0].Value)
}

func TestGaugeExpiresToNaN(t *testing.T) {
	clock := NewManualClock()
	g := newGauge(NewIdEmpty("queueDepth"), clock)
	g.Set(1)

	clock.Advance((time.Duration(expireAfterMillis) + 1) * time.Millisecond)
	assert.True(t, g.HasExpired(clock.Now()))
	assert.True(t, math.IsNaN(g.Measure(clock.Now())[0].Value))
}

package spectator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerRecordsDurationsInSeconds(t *testing.T) {
	clock := NewManualClock()
	tm := newTimer(NewIdEmpty("request"), 10_000, clock)

	tm.Record(100 * time.Millisecond)
	tm.Record(200 * time.Millisecond)
	tm.Record(-1 * time.Second) // ignored

	clock.SetWall(10_000)
	ms := tm.Measure(clock.Now())
	byStat := map[string]float64{}
	for _, m := range ms {
		byStat[mustTag(m.Id, "statistic")] = m.Value
	}

	assert.Equal(t, 0.2, byStat[StatCount])          // 2 events over a completed 10s step
	assert.InDelta(t, 0.03, byStat[StatTotalTime], 1e-9)   // (0.1+0.2)s summed, rate per second
	assert.InDelta(t, 0.2, byStat[StatMax], 1e-9)          // completed-step max, in seconds
	assert.Greater(t, byStat[StatTotalOfSquares], 0.0)
}

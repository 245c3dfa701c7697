package spectator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentileTimerBucketsAndBaseStats(t *testing.T) {
	clock := NewManualClock()
	pt := newPercentileTimer(NewIdEmpty("request"), 10_000, clock)

	pt.Record(5 * time.Millisecond)
	pt.Record(5 * time.Millisecond)
	pt.Record(500 * time.Millisecond)
	pt.Record(-1) // ignored by both the base Timer and the bucket array

	clock.SetWall(10_000)
	ms := pt.Measure(clock.Now())

	var bucketCount int
	var baseCount float64
	for _, m := range ms {
		stat, _ := m.Id.TagValue("statistic")
		if stat == StatPercentile {
			bucketCount++
			assert.Greater(t, m.Value, 0.0)
			_, hasBucket := m.Id.TagValue("percentile")
			assert.True(t, hasBucket)
		}
		if stat == StatCount {
			baseCount = m.Value
		}
	}

	assert.Equal(t, 0.3, baseCount) // 3 valid records / 10s
	// Two distinct bucket boundaries hit: one shared by the two 5ms
	// samples, one for the 500ms sample.
	assert.Equal(t, 2, bucketCount)
}

func TestPercentileDistributionSummaryBuckets(t *testing.T) {
	clock := NewManualClock()
	pd := newPercentileDistributionSummary(NewIdEmpty("payloadSize"), 10_000, clock)

	pd.Record(10)
	pd.Record(-5) // ignored

	clock.SetWall(10_000)
	ms := pd.Measure(clock.Now())

	found := false
	for _, m := range ms {
		if stat, _ := m.Id.TagValue("statistic"); stat == StatPercentile {
			found = true
			assert.Equal(t, 0.1, m.Value) // 1 record / 10s
		}
	}
	assert.True(t, found)
}

func TestBucketIndexClampsAboveRange(t *testing.T) {
	boundaries := []float64{1, 2, 4, 8}
	assert.Equal(t, 0, bucketIndex(boundaries, 0.5))
	assert.Equal(t, 1, bucketIndex(boundaries, 2))
	assert.Equal(t, 3, bucketIndex(boundaries, 1000))
}

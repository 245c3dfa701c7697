package spectator

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// newExponentialBuckets builds count boundaries log-spaced between min
// and max (inclusive), the fixed "exponentially-spaced bucket array
// over a bounded range" percentile meters require. Samples above max
// fall into the last bucket; the array never changes based on observed
// data.
func newExponentialBuckets(min, max float64, count int) []float64 {
	boundaries := make([]float64, count)
	logMin := math.Log(min)
	logMax := math.Log(max)
	step := (logMax - logMin) / float64(count-1)
	for i := 0; i < count; i++ {
		boundaries[i] = math.Exp(logMin + step*float64(i))
	}
	return boundaries
}

// bucketIndex returns the index of the smallest boundary >= v, or the
// last index if v exceeds every boundary.
func bucketIndex(boundaries []float64, v float64) int {
	idx := sort.Search(len(boundaries), func(i int) bool { return boundaries[i] >= v })
	if idx == len(boundaries) {
		return len(boundaries) - 1
	}
	return idx
}

var (
	timerBucketBoundaries       = newExponentialBuckets(1e6 /* 1ms in ns */, 3.6e12 /* 1h in ns */, 100)
	distSummaryBucketBoundaries = newExponentialBuckets(1, 1e9, 100)
)

// PercentileTimer wraps Timer with a fixed array of per-bucket counters
// so a backend can reconstruct an approximate percentile distribution
// without the client ever computing one itself.
type PercentileTimer struct {
	*Timer
	buckets []*StepLong
}

func newPercentileTimer(id *Id, stepMillis int64, clock Clock) *PercentileTimer {
	buckets := make([]*StepLong, len(timerBucketBoundaries))
	for i := range buckets {
		buckets[i] = NewStepLong(stepMillis)
	}
	return &PercentileTimer{Timer: newTimer(id, stepMillis, clock), buckets: buckets}
}

func (p *PercentileTimer) Record(d time.Duration) {
	p.Timer.Record(d)
	if d < 0 {
		return
	}
	idx := bucketIndex(timerBucketBoundaries, float64(d.Nanoseconds()))
	p.buckets[idx].Add(p.clock.Now(), 1)
}

func (p *PercentileTimer) Measure(now int64) []Measurement {
	ms := p.Timer.Measure(now)
	for i, b := range p.buckets {
		rate := b.PollAsRate(now, 1)
		if rate == 0 {
			continue
		}
		bucketID := p.id.WithTag("percentile", fmt.Sprintf("T%04X", i)).withStatistic(StatPercentile)
		ms = append(ms, Measurement{Id: bucketID, Timestamp: now, Value: rate})
	}
	return ms
}

// PercentileDistributionSummary is PercentileTimer's counterpart for
// arbitrary (non-duration) amounts.
type PercentileDistributionSummary struct {
	*DistributionSummary
	buckets []*StepLong
}

func newPercentileDistributionSummary(id *Id, stepMillis int64, clock Clock) *PercentileDistributionSummary {
	buckets := make([]*StepLong, len(distSummaryBucketBoundaries))
	for i := range buckets {
		buckets[i] = NewStepLong(stepMillis)
	}
	return &PercentileDistributionSummary{DistributionSummary: newDistributionSummary(id, stepMillis, clock), buckets: buckets}
}

func (p *PercentileDistributionSummary) Record(amount float64) {
	p.DistributionSummary.Record(amount)
	if amount < 0 {
		return
	}
	idx := bucketIndex(distSummaryBucketBoundaries, amount)
	p.buckets[idx].Add(p.clock.Now(), 1)
}

func (p *PercentileDistributionSummary) Measure(now int64) []Measurement {
	ms := p.DistributionSummary.Measure(now)
	for i, b := range p.buckets {
		rate := b.PollAsRate(now, 1)
		if rate == 0 {
			continue
		}
		bucketID := p.id.WithTag("percentile", fmt.Sprintf("D%04X", i)).withStatistic(StatPercentile)
		ms = append(ms, Measurement{Id: bucketID, Timestamp: now, Value: rate})
	}
	return ms
}

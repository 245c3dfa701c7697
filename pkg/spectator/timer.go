package spectator

import "time"

// Timer tracks the distribution of event durations. It is algebraically
// identical to DistributionSummary — amounts are nanoseconds internally,
// but totalTime, totalOfSquares and max are published in seconds (count
// is events per second), matching Atlas's wire convention of timing
// units in seconds.
type Timer struct {
	meterBase
	count          *StepLong
	totalTime      *StepDouble
	totalOfSquares *StepDouble
	max            *StepDouble
}

func newTimer(id *Id, stepMillis int64, clock Clock) *Timer {
	return &Timer{
		meterBase:      newMeterBase(id, clock),
		count:          NewStepLong(stepMillis),
		totalTime:      NewStepDouble(stepMillis, 0),
		totalOfSquares: NewStepDouble(stepMillis, 0),
		max:            NewStepDouble(stepMillis, 0),
	}
}

// Record adds one observed duration. Negative durations are ignored.
func (t *Timer) Record(d time.Duration) {
	if d < 0 {
		return
	}
	ns := float64(d.Nanoseconds())
	now := t.clock.Now()
	t.touch(now)
	t.count.Add(now, 1)
	t.totalTime.UpdateAdd(now, ns)
	t.totalOfSquares.UpdateAdd(now, ns*ns)
	t.max.UpdateMax(now, ns)
}

const (
	nanosPerSecond        = 1e9
	nanosPerSecondSquared = 1e18
)

func (t *Timer) Measure(now int64) []Measurement {
	return []Measurement{
		{Id: t.id.withStatistic(StatCount), Timestamp: now, Value: t.count.PollAsRate(now, 1)},
		{Id: t.id.withStatistic(StatTotalTime), Timestamp: now, Value: t.totalTime.PollAsRate(now) / nanosPerSecond},
		{Id: t.id.withStatistic(StatTotalOfSquares), Timestamp: now, Value: t.totalOfSquares.PollAsRate(now) / nanosPerSecondSquared},
		{Id: t.id.withStatistic(StatMax), Timestamp: now, Value: t.max.Poll(now) / nanosPerSecond},
	}
}

package spectator

// MaxGauge reports the largest value observed during a step, then
// resets for the next one — a gauge with per-step max-folding instead
// of last-write-wins. Negative values and NaN are ignored, since a
// max-gauge's domain (queue depth, pool size, watermark) is never
// negative.
type MaxGauge struct {
	meterBase
	value *StepDouble
}

func newMaxGauge(id *Id, stepMillis int64, clock Clock) *MaxGauge {
	return &MaxGauge{
		meterBase: newMeterBase(id, clock),
		value:     NewStepDouble(stepMillis, nan),
	}
}

// Update folds v into the current step's max if v is non-negative.
func (g *MaxGauge) Update(v float64) {
	if v < 0 {
		return
	}
	now := g.clock.Now()
	g.touch(now)
	g.value.UpdateMax(now, v)
}

func (g *MaxGauge) Measure(now int64) []Measurement {
	return []Measurement{{Id: g.id.withStatistic(StatMax), Timestamp: now, Value: g.value.Poll(now)}}
}

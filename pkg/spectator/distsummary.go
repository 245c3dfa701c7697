package spectator

// DistributionSummary tracks the distribution of sampled amounts
// (payload sizes, queue lengths, anything non-negative). Each completed
// step publishes four measurements: count, totalAmount, totalOfSquares,
// and max.
type DistributionSummary struct {
	meterBase
	count          *StepLong
	totalAmount    *StepDouble
	totalOfSquares *StepDouble
	max            *StepDouble
}

func newDistributionSummary(id *Id, stepMillis int64, clock Clock) *DistributionSummary {
	return &DistributionSummary{
		meterBase:      newMeterBase(id, clock),
		count:          NewStepLong(stepMillis),
		totalAmount:    NewStepDouble(stepMillis, 0),
		totalOfSquares: NewStepDouble(stepMillis, 0),
		max:            NewStepDouble(stepMillis, 0),
	}
}

// Record adds one sample of amount. Negative amounts are ignored.
func (d *DistributionSummary) Record(amount float64) {
	if amount < 0 {
		return
	}
	now := d.clock.Now()
	d.touch(now)
	d.count.Add(now, 1)
	d.totalAmount.UpdateAdd(now, amount)
	d.totalOfSquares.UpdateAdd(now, amount*amount)
	d.max.UpdateMax(now, amount)
}

func (d *DistributionSummary) Measure(now int64) []Measurement {
	return []Measurement{
		{Id: d.id.withStatistic(StatCount), Timestamp: now, Value: d.count.PollAsRate(now, 1)},
		{Id: d.id.withStatistic(StatTotalAmount), Timestamp: now, Value: d.totalAmount.PollAsRate(now)},
		{Id: d.id.withStatistic(StatTotalOfSquares), Timestamp: now, Value: d.totalOfSquares.PollAsRate(now)},
		{Id: d.id.withStatistic(StatMax), Timestamp: now, Value: d.max.Poll(now)},
	}
}
